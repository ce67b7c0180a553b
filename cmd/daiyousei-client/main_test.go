package main

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkoncek/daiyousei/config"
)

func TestRun_SocketNotConfigured(t *testing.T) {
	t.Setenv(config.SocketEnvVar, "")
	code, err := run("")
	if code != internalFailureExitCode || err == nil {
		t.Fatalf("run()=(%d,%v) want (%d, non-nil)", code, err, internalFailureExitCode)
	}
}

func TestRun_DialFailureReportsOSError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.sock")
	code, err := run(missing)
	if code != internalFailureExitCode || err == nil {
		t.Fatalf("run()=(%d,%v) want (%d, non-nil)", code, err, internalFailureExitCode)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "no such file or directory") {
		t.Fatalf("err=%v want substring 'no such file or directory'", err)
	}
}

func TestRun_EndToEnd_ExitCodeAndOutput(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "daiyousei.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte("l6:stdout5:hello8:exitcodei7ee"))
	}()

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	stdinW.Close() // no local input for this run

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}

	origStdin, origStdout := os.Stdin, os.Stdout
	os.Stdin, os.Stdout = stdinR, stdoutW
	defer func() { os.Stdin, os.Stdout = origStdin, origStdout }()

	type result struct {
		code int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		code, err := run(sockPath)
		resCh <- result{code, err}
	}()

	select {
	case res := <-resCh:
		stdoutW.Close()
		if res.err != nil {
			t.Fatalf("run() error: %v", res.err)
		}
		if res.code != 7 {
			t.Fatalf("code=%d want 7", res.code)
		}
		out, _ := io.ReadAll(stdoutR)
		if string(out) != "hello" {
			t.Fatalf("stdout=%q want %q", out, "hello")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run() did not complete in time")
	}

	<-serverDone
}
