// Package config resolves where the server's listening socket lives and
// dials it.
package config

import (
	"net"
	"os"

	"github.com/pkg/errors"
)

// SocketEnvVar is the environment variable carrying the Unix domain
// socket path when the -socket flag is not given.
const SocketEnvVar = "DAIYOUSEI_UNIX_SOCKET"

// ErrSocketNotConfigured is returned when neither the flag nor the
// environment variable names a socket path.
var ErrSocketNotConfigured = errors.Errorf("socket path not set: pass -socket or set %s", SocketEnvVar)

// ResolveSocketPath picks the socket path to dial: flagValue wins when
// non-empty, otherwise the SocketEnvVar environment variable.
func ResolveSocketPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(SocketEnvVar); v != "" {
		return v, nil
	}
	return "", ErrSocketNotConfigured
}

// Dial connects to the Unix domain socket at path. Errors are wrapped with
// github.com/pkg/errors so the underlying OS error text (e.g. "no such
// file or directory", "connection refused") survives unchanged for the
// caller to report.
func Dial(path string) (*net.UnixConn, error) {
	addr := &net.UnixAddr{Name: path, Net: "unix"}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", path)
	}
	return conn, nil
}
