package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionMiddleware_WithValidCookie(t *testing.T) {
	m := NewSessionMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetSessionIDFromContext(r.Context())
		if !ok {
			t.Fatalf("session id not in context")
		}
		if id != "session-42" {
			t.Fatalf("session id from context = %q, want session-42", id)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/session", nil)

	m.SetSessionCookie(w, "session-42")
	res := w.Result()
	resCookies := res.Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetSessionCookie")
	}

	r.AddCookie(resCookies[0])

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestSessionMiddleware_WithoutCookie(t *testing.T) {
	m := NewSessionMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/session", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_TamperedCookie(t *testing.T) {
	m := NewSessionMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	m.SetSessionCookie(w, "session-42")
	cookie := w.Result().Cookies()[0]

	// Подмена идентификатора при сохранении чужой подписи.
	cookie.Value = "session-43" + cookie.Value[len("session-42"):]

	r := httptest.NewRequest(http.MethodGet, "/session", nil)
	r.AddCookie(cookie)

	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_DifferentSecrets(t *testing.T) {
	issuer := NewSessionMiddleware("secret-a")
	verifier := NewSessionMiddleware("secret-b")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	issuer.SetSessionCookie(w, "session-42")

	r := httptest.NewRequest(http.MethodGet, "/session", nil)
	r.AddCookie(w.Result().Cookies()[0])

	rec := httptest.NewRecorder()
	verifier.Middleware(next).ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}
