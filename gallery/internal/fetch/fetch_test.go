package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// WHAT: a successful fetch returns the body and sends a browser User-Agent.
func TestHTTPClientFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := NewHTTPClient()
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(string(body), "ok") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(gotUA, "Chrome") {
		t.Errorf("user agent = %q, want a browser UA", gotUA)
	}
}

// WHAT: non-2xx responses surface as *Error with the status code attached.
// WHY: the orchestrator retries on 5xx but not on 404.
func TestHTTPClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPClient().Fetch(context.Background(), srv.URL)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", fe.StatusCode)
	}
}

// WHAT: bodies larger than the cap are truncated, not errors.
func TestHTTPClientMaxBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithMaxBody(100))
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("body length = %d, want capped at 100", len(body))
	}
}

// WHAT: a cancelled context aborts the request with a transport-level Error.
func TestHTTPClientContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient().Fetch(ctx, srv.URL)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for a pre-response failure", fe.StatusCode)
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{URL: "https://example.com/g", StatusCode: 503}
	if !strings.Contains(e.Error(), "503") {
		t.Errorf("Error() = %q, want status in message", e.Error())
	}
	wrapped := &Error{URL: "https://example.com/g", Err: errors.New("dial refused")}
	if !strings.Contains(wrapped.Error(), "dial refused") {
		t.Errorf("Error() = %q, want cause in message", wrapped.Error())
	}
}
