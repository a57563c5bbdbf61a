package redis

import (
	"net"
	"testing"
	"time"
)

func TestNewClientFailsWhenServerIsDown(t *testing.T) {
	// reserve a port, then free it so nothing is listening there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c, err := NewClient("127.0.0.1", port, "", 0, time.Minute)
	if err == nil {
		c.Close()
		t.Fatal("expected connection error")
	}
}
