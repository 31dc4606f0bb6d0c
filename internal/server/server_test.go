package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/projecthelena/hello-backend/internal/api"
	"github.com/projecthelena/hello-backend/internal/config"
	"github.com/projecthelena/hello-backend/internal/logging"
	"github.com/projecthelena/hello-backend/internal/metrics"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.LogRequests = false
	return cfg
}

// start runs srv in the background and returns a stop func that cancels it
// and waits for Run to return.
func start(t *testing.T, srv *Server) func() error {
	t.Helper()
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestRun_ServesOnConfiguredPort(t *testing.T) {
	port := freePort(t)
	cfg := loadConfig(t, map[string]string{"PORT": strconv.Itoa(port)})

	var logs bytes.Buffer
	srv := New(cfg, api.NewRouter(cfg, api.Deps{}), nil, logging.NewWriter("test", &logs))
	stop := start(t, srv)

	if got := srv.Addr().(*net.TCPAddr).Port; got != port {
		t.Fatalf("expected to bind port %d, got %d", port, got)
	}

	status, body := get(t, "http://127.0.0.1:"+strconv.Itoa(port)+"/api/message")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body != `{"message":"Hello from Express backend!"}` {
		t.Errorf("unexpected body %q", body)
	}

	status, _ = get(t, "http://127.0.0.1:"+strconv.Itoa(port)+"/api/unknown")
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}

	if err := stop(); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	if !strings.Contains(logs.String(), "Server running on port "+strconv.Itoa(port)) {
		t.Errorf("expected readiness log with port, got %q", logs.String())
	}
}

func TestRun_DefaultPort(t *testing.T) {
	cfg := loadConfig(t, nil)
	if cfg.Port != config.DefaultPort {
		t.Fatalf("expected port %d, got %d", config.DefaultPort, cfg.Port)
	}

	srv := New(cfg, api.NewRouter(cfg, api.Deps{}), nil, logging.Discard())
	if err := srv.Listen(); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			t.Skipf("port %d in use on this machine", config.DefaultPort)
		}
		t.Fatalf("listen: %v", err)
	}
	stop := start(t, srv)
	defer func() { _ = stop() }()

	status, _ := get(t, "http://127.0.0.1:5000/api/message")
	if status != http.StatusOK {
		t.Errorf("expected 200, got %d", status)
	}
}

func TestListen_PortInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer occupied.Close()

	cfg := config.Default()
	cfg.Port = occupied.Addr().(*net.TCPAddr).Port

	srv := New(&cfg, http.NotFoundHandler(), nil, logging.Discard())
	err = srv.Run(context.Background())
	if err == nil {
		t.Fatal("expected bind error")
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Errorf("expected EADDRINUSE, got %v", err)
	}
	if srv.Addr() != nil {
		t.Error("expected no bound address after failure")
	}
}

func TestRun_MetricsListener(t *testing.T) {
	port := freePort(t)
	cfg := loadConfig(t, map[string]string{
		"PORT":         strconv.Itoa(port),
		"METRICS_ADDR": "127.0.0.1:0",
	})

	ms := metrics.NewService()
	srv := New(cfg, api.NewRouter(cfg, api.Deps{Metrics: ms}), api.NewOpsRouter(ms), logging.Discard())
	stop := start(t, srv)
	defer func() { _ = stop() }()

	if srv.MetricsAddr() == nil {
		t.Fatal("expected metrics listener")
	}

	status, _ := get(t, "http://127.0.0.1:"+strconv.Itoa(port)+"/api/message")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	// The counter is bumped after the response is flushed, so poll briefly.
	want := `http_requests_total{endpoint="/api/message",method="GET",status_code="200"} 1`
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, body := get(t, "http://"+srv.MetricsAddr().String()+"/metrics")
		if status != http.StatusOK {
			t.Fatalf("expected 200 from metrics, got %d", status)
		}
		if strings.Contains(body, want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %q in metrics output", want)
		}
		time.Sleep(20 * time.Millisecond)
	}

	status, _ = get(t, "http://127.0.0.1:"+strconv.Itoa(port)+"/metrics")
	if status != http.StatusNotFound {
		t.Errorf("metrics must not be served on the responder port, got %d", status)
	}
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Port = freePort(t)
	srv := New(&cfg, http.NotFoundHandler(), api.NewOpsRouter(metrics.NewService()), logging.Discard())
	stop := start(t, srv)
	defer func() { _ = stop() }()

	if srv.MetricsAddr() != nil {
		t.Errorf("expected metrics listener to be disabled, got %v", srv.MetricsAddr())
	}
}
