// Command daiyousei-client bridges the local process's stdin, stdout,
// stderr and exit code to a server reachable over a Unix domain socket.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/mkoncek/daiyousei/config"
	"github.com/mkoncek/daiyousei/mux"
)

// internalFailureExitCode mirrors mux's reserved code: every failure this
// command detects before the event loop starts (no socket path, a dial
// failure) exits the same way the loop itself would. A bad flag is
// handled by the flag package, which exits with its own status.
const internalFailureExitCode = 255

func main() {
	fs := flag.NewFlagSet("daiyousei-client", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "daiyousei-client — pipe stdin/stdout/stderr/exit code through a Unix domain socket\n\nUsage:\n  daiyousei-client [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n  %s    Unix domain socket path, used when -socket is not given\n", config.SocketEnvVar)
	}

	socketFlag := fs.String("socket", "", "Unix domain socket path (overrides "+config.SocketEnvVar+")")
	_ = fs.Parse(os.Args[1:])

	code, err := run(*socketFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func run(socketFlag string) (int, error) {
	path, err := config.ResolveSocketPath(socketFlag)
	if err != nil {
		return internalFailureExitCode, err
	}

	conn, err := config.Dial(path)
	if err != nil {
		return internalFailureExitCode, err
	}

	sockFile, err := conn.File()
	if err != nil {
		conn.Close()
		return internalFailureExitCode, errors.Wrap(err, "extract socket descriptor")
	}
	// conn.File dup()s the descriptor; the original net.UnixConn is no
	// longer needed once the loop owns the duplicate directly.
	conn.Close()
	defer sockFile.Close()

	loop, err := mux.NewLoop(int(sockFile.Fd()), int(os.Stdin.Fd()), int(os.Stdout.Fd()), int(os.Stderr.Fd()))
	if err != nil {
		return internalFailureExitCode, errors.Wrap(err, "create event loop")
	}

	return loop.Run(), nil
}
