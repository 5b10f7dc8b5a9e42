package printer

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// listen starts a one-shot TCP printer that hands the accepted socket to serve.
func listen(t *testing.T, serve func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestNetworkConnection_Write(t *testing.T) {
	received := make(chan []byte, 1)
	host, port := listen(t, func(c net.Conn) {
		data, _ := io.ReadAll(c)
		received <- data
	})

	conn, err := ConnectNetwork(context.Background(), host, port, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	payload := []byte{0x1B, 0x40, 'o', 'k', 0x0A}
	n, err := conn.Write(context.Background(), payload)
	if err != nil || n != len(payload) {
		t.Fatalf("Expected %d bytes written, got %d (%v)", len(payload), n, err)
	}
	conn.Close()

	select {
	case got := <-received:
		if !bytes.Equal(got, payload) {
			t.Errorf("Expected % X, got % X", payload, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected printer to receive data")
	}
}

func TestNetworkConnection_ReadStatus(t *testing.T) {
	host, port := listen(t, func(c net.Conn) {
		req := make([]byte, 3)
		if _, err := io.ReadFull(c, req); err != nil {
			return
		}
		if bytes.Equal(req, escpos.StatusRequest(escpos.StatusKindOffline)) {
			// fixed bits plus cover open
			c.Write([]byte{0x12 | 0x04})
		}
	})

	conn, err := ConnectNetwork(context.Background(), host, port, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer conn.Close()

	status, err := conn.ReadStatus(context.Background(), escpos.StatusKindOffline)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if status != escpos.StatusCoverOpen {
		t.Errorf("Expected %s, got %s", escpos.StatusCoverOpen, status)
	}
}

func TestConnectNetwork_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if _, err := ConnectNetwork(context.Background(), "127.0.0.1", port, time.Second, time.Second); err == nil {
		t.Error("Expected error connecting to closed port")
	}
}

func TestWriteAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := writeAll(ctx, func(b []byte) (int, error) {
		called = true
		return len(b), nil
	}, []byte{1})
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("Expected no write after cancellation")
	}
}
