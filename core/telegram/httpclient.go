package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/telegram/netutil"
)

const (
	defaultClientTimeout = 30 * time.Second
	pollTimeoutHeadroom  = 10 * time.Second
	responseHeadroom     = 5 * time.Second
	wireRetries          = 3
	wireBackoff          = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. The client
// timeout always exceeds the getUpdates timeout so an idle long poll is not
// reported as a failure. Dial errors and timeouts are retried on the wire.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: longPoll + responseHeadroom,
		ExpectContinueTimeout: time.Second,
	}
	timeout := max(defaultClientTimeout, longPoll+pollTimeoutHeadroom)
	return &http.Client{
		Timeout:   timeout,
		Transport: &retryTransport{base: base, maxRetries: wireRetries, backoff: wireBackoff},
	}
}

// retryTransport repeats a round trip on transient errors. Requests whose
// body cannot be rewound are sent once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err == nil || attempt > t.maxRetries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		next, ok := rewind(req)
		if !ok {
			return nil, err
		}
		delay := t.backoff * time.Duration(attempt)
		logger.Warn(ctx, logger.ComponentTGWire, "wire.retry",
			slog.String("method", path.Base(req.URL.Path)),
			slog.Int("attempt", attempt),
			slog.String("err_code", netutil.Classify(err)),
			slog.Duration("delay", delay),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
		req = next
	}
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
