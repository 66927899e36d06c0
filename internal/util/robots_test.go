package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func robotsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRobotsChecker_Check(t *testing.T) {
	srv, hits := robotsServer(t, http.StatusOK, `
User-agent: feedharvest
Disallow: /private/
Crawl-delay: 2

User-agent: *
Disallow: /
`)

	r := NewRobotsChecker("feedharvest/1.0 (+https://example.com)", 5*time.Second, nil)
	ctx := context.Background()

	v, err := r.Check(ctx, srv.URL+"/@shop/video/1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !v.Allowed {
		t.Error("expected public item to be allowed")
	}
	if v.CrawlDelay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", v.CrawlDelay)
	}

	v, err = r.Check(ctx, srv.URL+"/private/thing")
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed {
		t.Error("expected private path to be disallowed")
	}

	if hits.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", hits.Load())
	}

	r.Clear()
	_, _ = r.Check(ctx, srv.URL+"/x")
	if hits.Load() != 2 {
		t.Errorf("expected refetch after Clear, got %d fetches", hits.Load())
	}
}

func TestRobotsChecker_MissingFileAllowsAll(t *testing.T) {
	srv, _ := robotsServer(t, http.StatusNotFound, "")
	r := NewRobotsChecker("feedharvest", 5*time.Second, nil)

	v, err := r.Check(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed {
		t.Error("expected missing robots.txt to allow everything")
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	srv, _ := robotsServer(t, http.StatusOK, "")
	addr := srv.URL
	srv.Close()

	r := NewRobotsChecker("feedharvest", time.Second, nil)
	v, err := r.Check(context.Background(), addr+"/x")
	if err == nil {
		t.Error("expected fetch error to be reported")
	}
	if !v.Allowed {
		t.Error("expected unreachable robots.txt to allow")
	}
}

func TestRobotsChecker_UsesProxy(t *testing.T) {
	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	}))
	defer proxy.Close()

	proxyFunc, err := NewProxyFunc(proxy.URL)
	if err != nil {
		t.Fatal(err)
	}

	r := NewRobotsChecker("feedharvest", 5*time.Second, proxyFunc)
	v, err := r.Check(context.Background(), "http://unresolvable.invalid/x")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Allowed {
		t.Error("expected proxy-served robots.txt to disallow")
	}
	if proxied.Load() != 1 {
		t.Errorf("expected request through proxy, got %d", proxied.Load())
	}
}

func TestNewProxyFunc(t *testing.T) {
	fn, err := NewProxyFunc("")
	if err != nil || fn == nil {
		t.Fatalf("expected environment fallback, got err=%v", err)
	}

	fn, err = NewProxyFunc("http://127.0.0.1:3128")
	if err != nil {
		t.Fatal(err)
	}
	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "example.com"}}
	got, err := fn(req)
	if err != nil || got.Host != "127.0.0.1:3128" {
		t.Errorf("unexpected proxy %v (err=%v)", got, err)
	}

	for _, bad := range []string{"127.0.0.1:3128", "::bad"} {
		if _, err := NewProxyFunc(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"feedharvest/1.0 (+https://example.com)", "feedharvest"},
		{"feedharvest", "feedharvest"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeUserAgent(tt.in); got != tt.want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
