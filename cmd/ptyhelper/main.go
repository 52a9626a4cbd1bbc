// Command ptyhelper is the out-of-process binary that owns a real PTY
// master (spec.md §4.1, component C1). It is spawned by internal/ptyhost
// with the target command as its own argv, inherits env+cwd, and speaks a
// tiny opcode protocol on its stdin while mirroring raw PTY output to its
// stdout. It never touches the control plane directly.
package main

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"

	"github.com/agentharness/harness/internal/ptyproto"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		os.Stderr.WriteString("ptyhelper: usage: ptyhelper <command> [args...]\n")
		return 2
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Env = os.Environ()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		os.Stderr.WriteString("ptyhelper: pty.Start: " + err.Error() + "\n")
		return 1
	}
	defer ptmx.Close()

	// If our own process is signaled (the daemon is killed or this helper
	// is orphaned), forward SIGTERM to the child rather than leaving it
	// running detached.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		if _, ok := <-sigCh; ok {
			cmd.Process.Signal(syscall.SIGTERM)
		}
	}()
	defer signal.Stop(sigCh)

	// Mirror PTY output to our stdout, unframed, for as long as it's open.
	copyDone := make(chan struct{})
	go func() {
		io.Copy(os.Stdout, ptmx)
		close(copyDone)
	}()

	// Read framed opcodes from stdin until EOF, error, or OpClose.
	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		r := bufio.NewReader(os.Stdin)
		for {
			fr, err := ptyproto.Decode(r)
			if err != nil {
				if err != io.EOF {
					// A malformed or truncated frame terminates the helper.
					ptmx.Close()
					cmd.Process.Kill()
				}
				return
			}
			switch fr.Op {
			case ptyproto.OpData:
				ptmx.Write(fr.Payload)
			case ptyproto.OpResize:
				pty.Setsize(ptmx, &pty.Winsize{
					Cols: fr.Cols,
					Rows: fr.Rows,
				})
			case ptyproto.OpClose:
				ptmx.Close()
				cmd.Process.Kill()
				return
			}
		}
	}()

	err = cmd.Wait()

	// Drain whichever side hasn't finished; both close when the PTY hits EOF.
	<-copyDone
	select {
	case <-stdinDone:
	default:
	}

	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
