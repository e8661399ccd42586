package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

// InitDataHeader carries Telegram.WebApp.initData on every Mini App request.
const InitDataHeader = "X-Telegram-Init-Data"

var (
	// ErrInitDataMissing reports a request without init data.
	ErrInitDataMissing = errors.New("httpapi: init data missing")
	// ErrInitDataInvalid reports a malformed payload or a bad signature.
	ErrInitDataInvalid = errors.New("httpapi: init data invalid")
	// ErrInitDataExpired reports an auth_date older than the allowed age.
	ErrInitDataExpired = errors.New("httpapi: init data expired")
)

// WebAppUser is the user object embedded in init data.
type WebAppUser struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// InitData is a verified init data payload.
type InitData struct {
	User     WebAppUser
	AuthDate time.Time
	QueryID  string
}

// VerifyInitData checks the signature of raw against botToken and, when
// maxAge is positive, that auth_date is no older than maxAge at now.
func VerifyInitData(raw, botToken string, maxAge time.Duration, now time.Time) (InitData, error) {
	if strings.TrimSpace(raw) == "" {
		return InitData{}, ErrInitDataMissing
	}
	// Age is checked below against the injected clock.
	if err := initdata.Validate(raw, botToken, 0); err != nil {
		return InitData{}, fmt.Errorf("%w: %v", ErrInitDataInvalid, err)
	}
	parsed, err := initdata.Parse(raw)
	if err != nil {
		return InitData{}, fmt.Errorf("%w: %v", ErrInitDataInvalid, err)
	}
	if parsed.AuthDateRaw <= 0 {
		return InitData{}, fmt.Errorf("%w: bad auth_date", ErrInitDataInvalid)
	}

	authDate := parsed.AuthDate().UTC()
	if maxAge > 0 && now.Sub(authDate) > maxAge {
		return InitData{}, fmt.Errorf("%w: issued %s", ErrInitDataExpired, authDate.Format(time.RFC3339))
	}
	return InitData{
		AuthDate: authDate,
		QueryID:  parsed.QueryID,
		User: WebAppUser{
			ID:           parsed.User.ID,
			FirstName:    parsed.User.FirstName,
			LastName:     parsed.User.LastName,
			Username:     parsed.User.Username,
			LanguageCode: parsed.User.LanguageCode,
		},
	}, nil
}
