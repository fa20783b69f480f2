package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/otcheredev/oxidicom-go/internal/scp"
)

// acquireLoopback finds a free loopback port by binding to :0 and
// immediately releasing it, so the test doesn't hardcode a port that
// might already be in use on the runner.
func acquireLoopback(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve a loopback port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestListenerAcceptsAndStopsOnCancel(t *testing.T) {
	addr := acquireLoopback(t)

	events := make(chan domain.AssociationEvent, 8)
	handler := scp.NewHandler(scp.Config{AET: "OXIDICOM", MaxPDULength: 16384}, events, nil)
	l := New(Config{Address: addr, Workers: 2}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(ctx) }()

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	conn.Close()

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("expected Run to return nil after cancellation, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
