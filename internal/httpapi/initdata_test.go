package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const testToken = "123456:TEST-token"

// signedInitData builds init data the way Telegram clients receive it.
func signedInitData(t *testing.T, token string, userID int64, authDate time.Time) string {
	t.Helper()
	payload := map[string]string{
		"query_id": "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":     `{"id":` + strconv.FormatInt(userID, 10) + `,"first_name":"Ann","username":"ann"}`,
	}
	v := url.Values{}
	for k, val := range payload {
		v.Set(k, val)
	}
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("hash", initdata.Sign(payload, token, authDate))
	return v.Encode()
}

func TestVerifyInitData(t *testing.T) {
	now := time.Unix(1_790_000_000, 0)
	raw := signedInitData(t, testToken, 42, now.Add(-time.Minute))

	got, err := VerifyInitData(raw, testToken, time.Hour, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.User.ID != 42 || got.User.Username != "ann" || got.QueryID == "" {
		t.Fatalf("init data = %+v", got)
	}
	if !got.AuthDate.Equal(now.Add(-time.Minute)) {
		t.Fatalf("auth date = %v", got.AuthDate)
	}
}

func TestVerifyInitDataRejects(t *testing.T) {
	now := time.Unix(1_790_000_000, 0)
	valid := signedInitData(t, testToken, 42, now.Add(-time.Minute))

	tampered, _ := url.ParseQuery(valid)
	tampered.Set("user", `{"id":1,"first_name":"Mallory"}`)

	cases := []struct {
		name string
		raw  string
		tok  string
		age  time.Duration
		want error
	}{
		{"empty", "", testToken, time.Hour, ErrInitDataMissing},
		{"wrong token", valid, "other:token", time.Hour, ErrInitDataInvalid},
		{"tampered", tampered.Encode(), testToken, time.Hour, ErrInitDataInvalid},
		{"no hash", "auth_date=1&user=%7B%7D", testToken, time.Hour, ErrInitDataInvalid},
		{"expired", valid, testToken, 30 * time.Second, ErrInitDataExpired},
	}
	for _, tc := range cases {
		if _, err := VerifyInitData(tc.raw, tc.tok, tc.age, now); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := VerifyInitData(valid, testToken, 0, now.Add(365*24*time.Hour)); err != nil {
		t.Fatalf("zero max age must skip the age check: %v", err)
	}
}
