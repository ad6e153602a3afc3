package main

import (
	"io"
	"testing"
)

func TestDaemonSocketFlagReachesClient(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"version", "--daemon-socket", "/tmp/perch-test.sock"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if got := apiClient.SocketPath(); got != "/tmp/perch-test.sock" {
		t.Fatalf("client socket path = %q, want flag value", got)
	}
}

func TestDefaultSocketPath(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"version", "--daemon-socket", "/var/run/perch.sock"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if got := apiClient.SocketPath(); got != "/var/run/perch.sock" {
		t.Fatalf("client socket path = %q, want /var/run/perch.sock", got)
	}
}
