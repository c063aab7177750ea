package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/courtside/matchpoint"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, baseURL string, timeoutMillis int64, opts ...Option) *Client {
	t.Helper()

	c, err := New(Config{BaseURL: baseURL, TimeoutMillis: timeoutMillis}, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return c
}

// slowHandler answers after delay unless the client goes away first.
func slowHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("done"))
		case <-r.Context().Done():
		}
	}
}

func TestNewValidation(t *testing.T) {
	type Test struct {
		Name   string
		Config Config
		Valid  bool
	}

	testCases := []Test{
		{"Default config", DefaultConfig(), true},
		{"Base URL with path", Config{BaseURL: "https://api.example.com/v1", TimeoutMillis: 10}, true},
		{"Zero timeout", Config{BaseURL: "http://localhost:7771"}, true},
		{"Empty base URL", Config{BaseURL: "", TimeoutMillis: 10}, false},
		{"Whitespace base URL", Config{BaseURL: "   ", TimeoutMillis: 10}, false},
		{"Missing scheme", Config{BaseURL: "localhost:7771", TimeoutMillis: 10}, false},
		{"Unsupported scheme", Config{BaseURL: "ftp://localhost", TimeoutMillis: 10}, false},
		{"Missing host", Config{BaseURL: "http://", TimeoutMillis: 10}, false},
		{"Query in base URL", Config{BaseURL: "http://localhost:7771?x=1", TimeoutMillis: 10}, false},
		{"Unparsable base URL", Config{BaseURL: "http://[::1", TimeoutMillis: 10}, false},
		{"Negative timeout", Config{BaseURL: "http://localhost:7771", TimeoutMillis: -1}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			c, err := New(tc.Config)
			if tc.Valid {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if c == nil {
					t.Fatal("expected client, got nil")
				}
				return
			}

			if !errors.Is(err, matchpoint.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got: %v", err)
			}
			if c != nil {
				t.Error("expected nil client on error")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := MustNew(DefaultConfig())

	if c.BaseURL() != "http://localhost:7771" {
		t.Errorf("unexpected base url: %s", c.BaseURL())
	}

	if c.Timeout() != 100*time.Second {
		t.Errorf("unexpected timeout: %v", c.Timeout())
	}
}

func TestResolveURL(t *testing.T) {
	type Test struct {
		Name     string
		Base     string
		Ref      string
		Expected string
	}

	testCases := []Test{
		{"Relative path", "http://localhost:7771", "/health", "http://localhost:7771/health"},
		{"Relative path without slash", "http://localhost:7771", "players", "http://localhost:7771/players"},
		{"Base path prefix", "http://localhost:7771/api/", "/evaluate/svm", "http://localhost:7771/api/evaluate/svm"},
		{"Query is kept", "http://localhost:7771", "/players?limit=3", "http://localhost:7771/players?limit=3"},
		{"Empty path", "http://localhost:7771", "", "http://localhost:7771"},
		{"Absolute URL overrides base", "http://localhost:7771", "http://other-host/x", "http://other-host/x"},
		{"Protocol-relative inherits scheme", "https://localhost:7771", "//other-host/x", "https://other-host/x"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			c := newTestClient(t, tc.Base, 0)

			u, err := c.ResolveURL(tc.Ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if u.String() != tc.Expected {
				t.Errorf("got %s, want %s", u, tc.Expected)
			}
		})
	}
}

func TestRequestResolvesAgainstBase(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1000)

	res, err := c.Get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = res.Body.Close()

	if gotPath.Load() != "/health" {
		t.Errorf("server saw path %v", gotPath.Load())
	}

	if res.Request.URL.String() != srv.URL+"/health" {
		t.Errorf("unexpected effective url: %s", res.Request.URL)
	}
}

func TestDoResolvesRelativeRequest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1000)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "/health", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do should not reject non-2xx responses, got: %v", err)
	}
	_ = res.Body.Close()

	if res.StatusCode != http.StatusTeapot {
		t.Errorf("unexpected status: %d", res.StatusCode)
	}

	if hits.Load() != 1 {
		t.Errorf("expected 1 hit, got %d", hits.Load())
	}
}

func TestAbsoluteURLOverridesBase(t *testing.T) {
	var baseHits, otherHits atomic.Int64

	base := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		baseHits.Add(1)
	}))
	defer base.Close()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherHits.Add(1)
	}))
	defer other.Close()

	c := newTestClient(t, base.URL, 1000)

	res, err := c.Get(context.Background(), other.URL+"/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = res.Body.Close()

	if baseHits.Load() != 0 || otherHits.Load() != 1 {
		t.Errorf("expected request on other host only, got base=%d other=%d", baseHits.Load(), otherHits.Load())
	}
}

func TestDefaultTimeout(t *testing.T) {
	srv := httptest.NewServer(slowHandler(3 * time.Second))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100)

	start := time.Now()
	_, err := c.Get(context.Background(), "/slow")
	elapsed := time.Since(start)

	if !errors.Is(err, matchpoint.ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got: %v", err)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the transport cause to be kept, got: %v", err)
	}

	if elapsed < 100*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("timeout fired after %v", elapsed)
	}
}

func TestTimeoutOverride(t *testing.T) {
	srv := httptest.NewServer(slowHandler(300 * time.Millisecond))
	defer srv.Close()

	t.Run("Longer override wins", func(t *testing.T) {
		c := newTestClient(t, srv.URL, 50)

		res, err := c.Get(context.Background(), "/slow", Timeout(5*time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = res.Body.Close()
	})

	t.Run("Shorter override wins", func(t *testing.T) {
		c := newTestClient(t, srv.URL, 5000)

		_, err := c.Get(context.Background(), "/slow", Timeout(50*time.Millisecond))
		if !errors.Is(err, matchpoint.ErrRequestTimeout) {
			t.Fatalf("expected ErrRequestTimeout, got: %v", err)
		}
	})

	t.Run("Zero override disables the timeout", func(t *testing.T) {
		c := newTestClient(t, srv.URL, 50)

		res, err := c.Get(context.Background(), "/slow", Timeout(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = res.Body.Close()
	})

	t.Run("Context override applies to Do", func(t *testing.T) {
		c := newTestClient(t, srv.URL, 50)

		ctx := ContextWithTimeout(context.Background(), 5*time.Second)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/slow", http.NoBody)
		if err != nil {
			t.Fatal(err)
		}

		res, err := c.Do(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = res.Body.Close()
	})
}

func TestZeroTimeoutMeansNone(t *testing.T) {
	srv := httptest.NewServer(slowHandler(200 * time.Millisecond))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	if c.Timeout() != 0 {
		t.Fatalf("expected no timeout, got %v", c.Timeout())
	}

	res, err := c.Get(context.Background(), "/slow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = res.Body.Close()
}

func TestBodyReadableAfterReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1000)

	res, err := c.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("body read failed: %v", err)
	}

	if string(b) != "payload" {
		t.Errorf("unexpected body: %q", b)
	}
}

func TestStatusValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such model"))
	}))
	defer srv.Close()

	t.Run("Default rejects non-2xx", func(t *testing.T) {
		c := newTestClient(t, srv.URL, 1000)

		res, err := c.Get(context.Background(), "/evaluate/unknown")
		if !IsStatus(err, http.StatusNotFound) {
			t.Fatalf("expected 404 StatusError, got: %v", err)
		}

		if !errors.Is(err, matchpoint.ErrTransport) {
			t.Errorf("expected ErrTransport, got: %v", err)
		}

		se, _ := AsStatusError(err)
		if string(se.Body) != "no such model" {
			t.Errorf("unexpected error body: %q", se.Body)
		}

		if res == nil {
			t.Fatal("expected the rejected response to be returned")
		}

		b, _ := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if string(b) != "no such model" {
			t.Errorf("unexpected response body: %q", b)
		}
	})

	t.Run("Custom validator", func(t *testing.T) {
		c := newTestClient(t, srv.URL, 1000, WithValidateStatus(func(status int) bool {
			return status < 500
		}))

		res, err := c.Get(context.Background(), "/evaluate/unknown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = res.Body.Close()
	})
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := newTestClient(t, addr, 1000)

	_, err := c.Get(context.Background(), "/players")
	if !errors.Is(err, matchpoint.ErrTransport) {
		t.Fatalf("expected ErrTransport, got: %v", err)
	}

	if errors.Is(err, matchpoint.ErrRequestTimeout) {
		t.Errorf("connection failure reported as timeout: %v", err)
	}
}

func TestCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(slowHandler(3 * time.Second))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Get(ctx, "/slow")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestDefaultHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:       srv.URL,
		TimeoutMillis: 1000,
		UserAgent:     "matchpoint-test",
		Headers:       map[string]string{"X-Client": "cli", "X-Team": "atp"},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Get(context.Background(), "/", Header("X-Team", "wta"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = res.Body.Close()

	got := <-headers
	expected := map[string]string{
		"X-Client":   "cli",
		"X-Team":     "wta",
		"User-Agent": "matchpoint-test",
		"Accept":     defaultAccept,
	}

	for k, v := range expected {
		if got.Get(k) != v {
			t.Errorf("header %s: got %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestQueryOption(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1000)

	res, err := c.Get(context.Background(), "/players?surface=Clay", Query("limit", "5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = res.Body.Close()

	if got := <-queries; got != "limit=5&surface=Clay" {
		t.Errorf("unexpected query: %s", got)
	}
}

func TestPostBodies(t *testing.T) {
	type echo struct {
		ContentType string `json:"content_type"`
		Body        string `json:"body"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo{ContentType: r.Header.Get("Content-Type"), Body: string(b)})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1000)

	type Test struct {
		Name     string
		Data     any
		Expected echo
	}

	testCases := []Test{
		{"Struct as JSON", map[string]string{"surface": "Clay"}, echo{"application/json", `{"surface":"Clay"}`}},
		{"String as text", "hello", echo{"text/plain; charset=utf-8", "hello"}},
		{"Bytes as octet stream", []byte{'h', 'i'}, echo{"application/octet-stream", "hi"}},
		{"Reader as-is", strings.NewReader("raw"), echo{"", "raw"}},
		{"Nil as empty", nil, echo{"", ""}},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			res, err := c.Post(context.Background(), "/echo", tc.Data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got echo
			err = json.NewDecoder(res.Body).Decode(&got)
			_ = res.Body.Close()
			if err != nil {
				t.Fatal(err)
			}

			if got != tc.Expected {
				t.Errorf("got %+v, want %+v", got, tc.Expected)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != jsonAccept {
			w.WriteHeader(http.StatusNotAcceptable)
			return
		}

		switch r.URL.Path {
		case "/players":
			_, _ = w.Write([]byte(`[{"name":"Sinner"},{"name":"Alcaraz"}]`))
		case "/predict":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["surface"]})
		case "/broken":
			_, _ = w.Write([]byte(`{`))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1000)
	ctx := context.Background()

	var players []struct {
		Name string `json:"name"`
	}
	if err := c.GetJSON(ctx, "/players", &players); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(players) != 2 || players[1].Name != "Alcaraz" {
		t.Errorf("unexpected players: %+v", players)
	}

	var out map[string]string
	if err := c.PostJSON(ctx, "/predict", map[string]string{"surface": "Grass"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["echo"] != "Grass" {
		t.Errorf("unexpected echo: %v", out)
	}

	err := c.GetJSON(ctx, "/broken", &out)
	if !errors.Is(err, matchpoint.ErrFatal) {
		t.Errorf("expected ErrFatal on bad JSON, got: %v", err)
	}

	err = c.PostJSON(ctx, "/predict", func() {}, &out)
	if !errors.Is(err, matchpoint.ErrFatal) {
		t.Errorf("expected ErrFatal on unencodable body, got: %v", err)
	}
}

func TestBodyReadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":`))
		w.(http.Flusher).Flush()

		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100)

	var players []struct {
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), "/players", &players)
	if !errors.Is(err, matchpoint.ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got: %v", err)
	}
	if errors.Is(err, matchpoint.ErrFatal) {
		t.Errorf("a timeout while reading is not a decode failure: %v", err)
	}

	res, err := c.Get(context.Background(), "/players")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	if _, err := io.ReadAll(res.Body); !errors.Is(err, matchpoint.ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout from Read, got: %v", err)
	}
}

func TestWithTransport(t *testing.T) {
	var seen string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("{}")),
			Request:    r,
		}, nil
	})

	c := newTestClient(t, "http://localhost:7771", 1000, WithTransport(rt))

	res, err := c.Get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = res.Body.Close()

	if seen != "http://localhost:7771/health" {
		t.Errorf("unexpected effective url: %s", seen)
	}
}

func TestConcurrentRequests(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5000)

	const goroutines = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var out map[string]bool
			errs <- c.GetJSON(context.Background(), "/players", &out)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if hits.Load() != goroutines {
		t.Errorf("expected %d hits, got %d", goroutines, hits.Load())
	}
}
