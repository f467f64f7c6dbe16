package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/takastudio/taka-agent/internal/db"
	"github.com/takastudio/taka-agent/internal/demo"
)

func newAuthRepo(t *testing.T, token string) demo.Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	repo := demo.NewRepository(database.Conn())
	if token != "" {
		if err := repo.SetConfig(context.Background(), "auth_token", token); err != nil {
			t.Fatalf("SetConfig() error = %v", err)
		}
	}
	return repo
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	repo := newAuthRepo(t, "secret-token")
	handler := AuthMiddleware(repo, discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/demos", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	repo := newAuthRepo(t, "secret-token")
	handler := AuthMiddleware(repo, discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/demos", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestAuthMiddleware_NoStoredToken(t *testing.T) {
	repo := newAuthRepo(t, "")
	handler := AuthMiddleware(repo, discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/demos", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestRequestIDMiddleware_SetsHeader(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	})
	handler := RequestIDMiddleware()(inner)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rr.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if seen != header {
		t.Errorf("context request id %q != header %q", seen, header)
	}
	if len(header) != 8 {
		t.Errorf("request id length = %d, want 8", len(header))
	}
}

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}
