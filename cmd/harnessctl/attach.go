package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentharness/harness/internal/streamclient"
	"github.com/agentharness/harness/internal/streamserver"
)

// attachCmd puts the local terminal into raw mode and pipes stdin/stdout
// to a session's PTY, the way the teacher's own interactive passthrough
// mode swapped a client into direct byte-forwarding.
func attachCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <sessionId>",
		Short: "Attach the local terminal to a live session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			fd := int(os.Stdin.Fd())
			oldState, err := term.MakeRaw(fd)
			if err != nil {
				return fmt.Errorf("enter raw mode: %w", err)
			}
			defer term.Restore(fd, oldState)

			var c *streamclient.Client
			onEnvelope := func(env streamclient.Envelope) {
				switch env.Kind {
				case streamserver.KindPTYOutput:
					if env.SessionID != sessionID {
						return
					}
					data, err := base64.StdEncoding.DecodeString(env.ChunkBase64)
					if err == nil {
						os.Stdout.Write(data)
					}
				case streamserver.KindPTYExit:
					if env.SessionID == sessionID {
						fmt.Fprintf(os.Stderr, "\r\nsession %s exited\r\n", sessionID)
					}
				}
			}

			c, err = streamclient.Connect(cmd.Context(), streamclient.Options{
				Addr:       mustAddr(cmd),
				Token:      mustToken(cmd),
				OnEnvelope: onEnvelope,
			})
			if err != nil {
				term.Restore(fd, oldState)
				return err
			}
			defer c.Close()

			if _, err := c.SendCommand(cmd.Context(), streamserver.CmdPTYAttach, map[string]any{"sessionId": sessionID}); err != nil {
				return err
			}
			defer c.SendCommand(context.Background(), streamserver.CmdPTYDetach, map[string]any{"sessionId": sessionID})

			if w, h, err := term.GetSize(fd); err == nil {
				c.SendResize(sessionID, w, h)
			}

			resizeCh := make(chan os.Signal, 1)
			signal.Notify(resizeCh, syscall.SIGWINCH)
			defer signal.Stop(resizeCh)
			go func() {
				for range resizeCh {
					if w, h, err := term.GetSize(fd); err == nil {
						c.SendResize(sessionID, w, h)
					}
				}
			}()

			buf := make([]byte, 4096)
			for {
				n, err := os.Stdin.Read(buf)
				if n > 0 {
					c.SendInput(sessionID, buf[:n])
				}
				if err != nil {
					return nil
				}
			}
		},
	}
}

func mustAddr(cmd *cobra.Command) string {
	addr, _ := cmd.Root().PersistentFlags().GetString("addr")
	return addr
}

func mustToken(cmd *cobra.Command) string {
	token, _ := cmd.Root().PersistentFlags().GetString("token")
	return token
}
