package config_test

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkoncek/daiyousei/config"
)

func TestResolveSocketPath_FlagWinsOverEnv(t *testing.T) {
	t.Setenv(config.SocketEnvVar, "/from/env")
	got, err := config.ResolveSocketPath("/from/flag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/from/flag" {
		t.Fatalf("got %q want /from/flag", got)
	}
}

func TestResolveSocketPath_FallsBackToEnv(t *testing.T) {
	t.Setenv(config.SocketEnvVar, "/from/env")
	got, err := config.ResolveSocketPath("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/from/env" {
		t.Fatalf("got %q want /from/env", got)
	}
}

func TestResolveSocketPath_NeitherSet(t *testing.T) {
	t.Setenv(config.SocketEnvVar, "")
	_, err := config.ResolveSocketPath("")
	if err != config.ErrSocketNotConfigured {
		t.Fatalf("err=%v want ErrSocketNotConfigured", err)
	}
}

func TestDial_MissingSocketReportsUnderlyingOSError(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.sock")

	_, err := config.Dial(missing)
	if err == nil {
		t.Fatalf("expected an error dialing a nonexistent socket")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "no such file or directory") {
		t.Fatalf("err=%v want substring 'no such file or directory'", err)
	}
}

func TestDial_ConnectsToListeningSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	defer os.Remove(path)

	accepted := make(chan struct{})
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
		close(accepted)
	}()

	conn, err := config.Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	<-accepted
}
