package adminapi

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/config"
)

func reserveLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve a loopback port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServerHealthReadyAndMetrics(t *testing.T) {
	addr := reserveLoopbackAddr(t)
	srv := New(
		config.AdminConfig{ListenAddr: addr, ReadTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second},
		config.CORSConfig{AllowedOrigins: []string{"*"}},
		true,
		Deps{},
	)

	errs := make(chan error, 1)
	srv.Start(errs)
	defer srv.Shutdown(2 * time.Second)

	url := fmt.Sprintf("http://%s", addr)
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health with no audit DB or status cache configured, got %d", resp.StatusCode)
	}

	resp, err = http.Get(url + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /ready, got %d", resp.StatusCode)
	}

	resp, err = http.Get(url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics when metrics are enabled, got %d", resp.StatusCode)
	}

	resp, err = http.Get(url + "/api/v1/series/ChRIS/1.2.3")
	if err != nil {
		t.Fatalf("GET series: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for series lookup with no status cache configured, got %d", resp.StatusCode)
	}
}
