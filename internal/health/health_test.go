package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/internal/resilience"
	"github.com/MrWong99/audiosession/pkg/session"
	"github.com/MrWong99/audiosession/pkg/session/mock"
)

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, fn http.HandlerFunc, ctx context.Context) (int, result) {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	fn(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New(Checker{Name: "platform", Check: failing("down")})

	code, body := serve(t, h.Healthz, context.Background())
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("got %d %q, want 200 ok", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{},
		},
		{
			name:       "all pass",
			checkers:   []Checker{{"platform", ok}, {"monitoring", ok}},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"platform": "ok", "monitoring": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{{"platform", failing("query breaker open")}, {"monitoring", ok}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{"platform": "fail: query breaker open", "monitoring": "ok"},
		},
		{
			name:       "all fail",
			checkers:   []Checker{{"platform", failing("a")}, {"monitoring", failing("b")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{"platform": "fail: a", "monitoring": "fail: b"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := serve(t, New(tc.checkers...).Readyz, context.Background())
			if code != tc.wantStatus {
				t.Errorf("status = %d, want %d", code, tc.wantStatus)
			}
			if body.Status != tc.wantBody {
				t.Errorf("body status = %q, want %q", body.Status, tc.wantBody)
			}
			for name, want := range tc.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code, _ := serve(t, h.Readyz, ctx); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	mux := http.NewServeMux()
	New(Checker{Name: "test", Check: ok}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
		})
	}
}

func TestPlatformCheck(t *testing.T) {
	p := &mock.Platform{}
	m := monitor.New(p, monitor.WithQueryBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	}))
	check := PlatformCheck(m).Check

	if err := check(context.Background()); err != nil {
		t.Fatalf("healthy platform: %v", err)
	}

	p.SetQueryErr(session.ErrQueryFailed)
	if err := check(context.Background()); !errors.Is(err, session.ErrQueryFailed) {
		t.Fatalf("err = %v, want ErrQueryFailed", err)
	}

	// One failed on-demand read opens the breaker.
	_ = m.Settings(context.Background())
	p.SetQueryErr(nil)
	if err := check(context.Background()); err == nil {
		t.Fatal("check passed with the breaker open")
	}
}

func TestMonitoringCheck(t *testing.T) {
	m := monitor.New(&mock.Platform{})
	t.Cleanup(func() { _ = m.Stop() })
	check := MonitoringCheck(m).Check

	if err := check(context.Background()); err == nil {
		t.Fatal("check passed while stopped")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := check(context.Background()); err != nil {
		t.Fatalf("check while monitoring: %v", err)
	}
}
