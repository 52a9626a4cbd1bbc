// Command harnessctl is the thin CLI for a running harnessd (spec.md §2,
// §6): start/attach/list/snapshot/claim/release/remove sessions over the
// stream protocol, plus `serve` to run the daemon itself.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentharness/harness/internal/streamclient"
	"github.com/agentharness/harness/internal/streamserver"
)

func main() {
	var addr string
	var token string

	root := &cobra.Command{
		Use:   "harnessctl",
		Short: "control a running harnessd",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7777", "harnessd address")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token")

	connect := func(ctx context.Context) (*streamclient.Client, error) {
		return streamclient.Connect(ctx, streamclient.Options{Addr: addr, Token: token})
	}

	root.AddCommand(
		serveCmd(),
		startCmd(connect),
		attachCmd(connect),
		lsCmd(connect),
		snapshotCmd(connect),
		claimCmd(connect),
		releaseCmd(connect),
		rmCmd(connect),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type connector func(ctx context.Context) (*streamclient.Client, error)

func startCmd(connect connector) *cobra.Command {
	var tenant, user, workspace, worktree, directory, conversation string
	var cols, rows int
	var notifyPath string
	var snapshotEnabled bool

	cmd := &cobra.Command{
		Use:   "start -- <command> [args...]",
		Short: "Start a new PTY session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			env, err := c.SendCommand(cmd.Context(), streamserver.CmdPTYStart, map[string]any{
				"tenantId":        tenant,
				"userId":          user,
				"workspaceId":     workspace,
				"worktreeId":      worktree,
				"directoryId":     directory,
				"conversationId":  conversation,
				"command":         args[0],
				"args":            args[1:],
				"initialCols":     cols,
				"initialRows":     rows,
				"notifyPath":      notifyPath,
				"snapshotEnabled": snapshotEnabled,
			})
			if err != nil {
				return err
			}
			return printResult(env.Result)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "tenant id")
	cmd.Flags().StringVar(&user, "user", "default", "user id")
	cmd.Flags().StringVar(&workspace, "workspace", "default", "workspace id")
	cmd.Flags().StringVar(&worktree, "worktree", "", "worktree id")
	cmd.Flags().StringVar(&directory, "directory", "", "directory id")
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id")
	cmd.Flags().IntVar(&cols, "cols", 80, "initial terminal columns")
	cmd.Flags().IntVar(&rows, "rows", 24, "initial terminal rows")
	cmd.Flags().StringVar(&notifyPath, "notify-path", "", "adapter notify file to tail")
	cmd.Flags().BoolVar(&snapshotEnabled, "snapshot", true, "enable the snapshot oracle")
	return cmd
}

func lsCmd(connect connector) *cobra.Command {
	var tenant, user, workspace string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			env, err := c.SendCommand(cmd.Context(), streamserver.CmdSessionList, map[string]any{
				"tenantId": tenant, "userId": user, "workspaceId": workspace,
			})
			if err != nil {
				return err
			}
			var result struct {
				Sessions []struct {
					SessionID       string    `json:"sessionId"`
					Status          string    `json:"status"`
					Live            bool      `json:"live"`
					AttentionReason string    `json:"attentionReason"`
					StartedAt       time.Time `json:"startedAt"`
				} `json:"sessions"`
			}
			if err := decodeResult(env.Result, &result); err != nil {
				return err
			}
			if len(result.Sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTATUS\tLIVE\tATTENTION\tSTARTED")
			for _, s := range result.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", s.SessionID, s.Status, s.Live, s.AttentionReason, humanize.Time(s.StartedAt))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "filter by tenant id")
	cmd.Flags().StringVar(&user, "user", "", "filter by user id")
	cmd.Flags().StringVar(&workspace, "workspace", "", "filter by workspace id")
	return cmd
}

func snapshotCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <sessionId>",
		Short: "Print the current screen snapshot of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			env, err := c.SendCommand(cmd.Context(), streamserver.CmdSessionSnapshot, map[string]any{"sessionId": args[0]})
			if err != nil {
				return err
			}
			var frame struct {
				Lines []string `json:"Lines"`
			}
			if err := decodeResult(env.Result, &frame); err != nil {
				return err
			}
			for _, l := range frame.Lines {
				fmt.Println(l)
			}
			return nil
		},
	}
}

func claimCmd(connect connector) *cobra.Command {
	var label string
	var takeover bool

	cmd := &cobra.Command{
		Use:   "claim <sessionId>",
		Short: "Claim a session as the controlling client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if label == "" {
				label = "harnessctl"
			}
			env, err := c.SendCommand(cmd.Context(), streamserver.CmdSessionClaim, map[string]any{
				"sessionId":       args[0],
				"controllerId":    uuid.NewString(),
				"controllerType":  "human",
				"controllerLabel": label,
				"takeover":        takeover,
			})
			if err != nil {
				return err
			}
			return printResult(env.Result)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "controller label to show other clients")
	cmd.Flags().BoolVar(&takeover, "takeover", false, "steal the claim from an existing controller")
	return cmd
}

func releaseCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "release <sessionId>",
		Short: "Release a claimed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			env, err := c.SendCommand(cmd.Context(), streamserver.CmdSessionRelease, map[string]any{"sessionId": args[0]})
			if err != nil {
				return err
			}
			return printResult(env.Result)
		},
	}
}

func rmCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <sessionId>",
		Short: "Remove a session's registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			env, err := c.SendCommand(cmd.Context(), streamserver.CmdSessionRemove, map[string]any{"sessionId": args[0]})
			if err != nil {
				return err
			}
			return printResult(env.Result)
		},
	}
}

func decodeResult(result any, dst any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func printResult(result any) error {
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
