package main

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/pkg/concurrent"
)

var (
	sendTimeout     time.Duration
	sendAriaContext []string
)

func init() {
	sendCmd.PersistentFlags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "handshake timeout")
	sendAriaCmd.Flags().StringSliceVar(&sendAriaContext, "context", nil, "context entries as key=value")

	sendCmd.AddCommand(sendJoinCmd, sendLeaveCmd, sendMessageCmd, sendStatusCmd, sendAriaCmd)
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Emit a single client event over a short-lived connection",
}

var sendJoinCmd = &cobra.Command{
	Use:   "join <room>...",
	Short: "Join one or more live session rooms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(cmd.Context(), func(m *realtime.Manager) error {
			return concurrent.Concurrent(args, 4, func(room string) error {
				return emitted(m.JoinRoom(room), realtime.EventJoinRoom)
			})
		})
	},
}

var sendLeaveCmd = &cobra.Command{
	Use:   "leave <room>...",
	Short: "Leave one or more live session rooms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(cmd.Context(), func(m *realtime.Manager) error {
			return concurrent.Concurrent(args, 4, func(room string) error {
				return emitted(m.LeaveRoom(room), realtime.EventLeaveRoom)
			})
		})
	},
}

var sendMessageCmd = &cobra.Command{
	Use:   "message <room> <text>...",
	Short: "Post a chat message in a room",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(cmd.Context(), func(m *realtime.Manager) error {
			return emitted(m.SendRoomMessage(args[0], strings.Join(args[1:], " ")), realtime.EventRoomMessage)
		})
	},
}

var sendStatusCmd = &cobra.Command{
	Use:   "status <status>",
	Short: "Announce presence (online, away, busy, ...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(cmd.Context(), func(m *realtime.Manager) error {
			return emitted(m.UpdateStatus(args[0]), realtime.EventUpdateStatus)
		})
	},
}

var sendAriaCmd = &cobra.Command{
	Use:   "aria <text>...",
	Short: "Ask the ARIA assistant; replies arrive on `listen` as ariaResponse",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxMap, err := parseContext(sendAriaContext)
		if err != nil {
			return err
		}
		return withConnection(cmd.Context(), func(m *realtime.Manager) error {
			return emitted(m.SendAriaMessage(strings.Join(args, " "), ctxMap), realtime.EventAriaMessage)
		})
	},
}

// withConnection connects, runs fn and disconnects.
func withConnection(ctx context.Context, fn func(*realtime.Manager) error) error {
	client, release, err := openClient()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := start(ctx, client); err != nil {
		return err
	}
	if st := client.Manager.State(); !st.Connected() {
		if st.LastError != nil {
			return errors.Wrapf(st.LastError, "not connected (%s)", st.Status)
		}
		return errors.Errorf("not connected (%s)", st.Status)
	}
	return fn(client.Manager)
}

func emitted(ok bool, event string) error {
	if !ok {
		return errors.Errorf("%s was not sent", event)
	}
	return nil
}

func parseContext(entries []string) (map[string]any, error) {
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.Errorf("invalid context entry %q, expected key=value", e)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
