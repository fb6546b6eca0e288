package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nexus-reussite/nexus-realtime/internal/app"
	"github.com/nexus-reussite/nexus-realtime/internal/bridge"
	"github.com/nexus-reussite/nexus-realtime/internal/core/events/bus"
	"github.com/nexus-reussite/nexus-realtime/internal/realtime"
	"github.com/nexus-reussite/nexus-realtime/pkg/concurrent"
)

var (
	listenRooms  []string
	listenStatus string
)

func init() {
	listenCmd.Flags().StringSliceVar(&listenRooms, "join", nil, "rooms to join after every (re)connection")
	listenCmd.Flags().StringVar(&listenStatus, "status", "", "presence to announce after every (re)connection")
	rootCmd.AddCommand(listenCmd)
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect and print every real-time event as a JSON line",
	Long: "Open the push channel with the stored token and print bus events to stdout until interrupted.\n" +
		"Reconnection follows the configured backoff. The command fails once the channel gives up or the server rejects the token.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, release, err := openClient()
		if err != nil {
			return err
		}
		defer release()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events := make(chan eventLine, 256)
		statuses := make(chan eventLine, 16)
		watch := newPresence(client.Manager, listenRooms, listenStatus)

		if err := forwardEvents(client.Bus, events); err != nil {
			return err
		}
		_, err = bridge.Subscribe(client.Bus, bridge.EventConnectionStatus, func(s bridge.ConnectionStatus) {
			offer(statuses, eventLine{Event: bridge.EventConnectionStatus, Time: time.Now(), Data: statusView(s)})
			watch.handle(s)
		})
		if err != nil {
			return err
		}

		return concurrent.Run(ctx,
			func(ctx context.Context) error {
				return start(ctx, client)
			},
			func(ctx context.Context) error {
				return printLines(ctx, cmd.OutOrStdout(), concurrent.Merge[eventLine](events, statuses))
			},
			func(ctx context.Context) error {
				select {
				case <-ctx.Done():
					return nil
				case err := <-watch.Done():
					return err
				}
			},
		)
	},
}

type eventLine struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

var forwarded = []string{
	bridge.EventNewNotification,
	bridge.EventProgressUpdate,
	bridge.EventAriaResponse,
	bridge.EventUserStatusUpdate,
	bridge.EventClassSessionUpdate,
}

func forwardEvents(b bus.EventBus, out chan<- eventLine) error {
	for _, name := range forwarded {
		_, err := b.Subscribe(name, func(e bus.Event) error {
			offer(out, eventLine{Event: e.Type(), Time: e.Timestamp(), Data: e.Data()})
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "subscribing to %s", name)
		}
	}
	return nil
}

// offer never blocks the reader goroutine; a stalled stdout loses lines.
func offer(ch chan<- eventLine, l eventLine) {
	select {
	case ch <- l:
	default:
	}
}

func statusView(s bridge.ConnectionStatus) map[string]any {
	v := map[string]any{
		"connected": s.Connected,
		"status":    s.Status.String(),
		"attempt":   s.Attempt,
	}
	if s.Error != nil {
		v["error"] = s.Error.Error()
	}
	return v
}

// presence re-announces rooms and status after every connection and
// reports the first status the manager will not recover from on its own.
type presence struct {
	manager *realtime.Manager
	rooms   []string
	status  string
	done    chan error
}

func newPresence(m *realtime.Manager, rooms []string, status string) *presence {
	return &presence{manager: m, rooms: rooms, status: status, done: make(chan error, 1)}
}

func (p *presence) handle(s bridge.ConnectionStatus) {
	if s.Status == realtime.StatusConnected {
		for _, room := range p.rooms {
			p.manager.JoinRoom(room)
		}
		if p.status != "" {
			p.manager.UpdateStatus(p.status)
		}
		return
	}
	if err := terminalError(s); err != nil {
		select {
		case p.done <- err:
		default:
		}
	}
}

// Done yields the terminal error once.
func (p *presence) Done() <-chan error {
	return p.done
}

// terminalError is nil while the manager is still connected or retrying.
func terminalError(s bridge.ConnectionStatus) error {
	switch {
	case s.Status == realtime.StatusFailed:
		if s.Error == nil {
			return errors.Errorf("real-time channel failed after %d attempts", s.Attempt-1)
		}
		return errors.Wrapf(s.Error, "real-time channel failed after %d attempts", s.Attempt-1)
	case s.Status == realtime.StatusDisconnected && errors.Is(s.Error, realtime.ErrUnauthorized):
		return errors.Wrap(s.Error, "session rejected, run `nexus-realtime token set` with a fresh token")
	}
	return nil
}

// start connects and reports why nothing happened when the manager stays
// disconnected.
func start(ctx context.Context, client *app.Client) error {
	if err := client.Start(ctx); err != nil {
		return err
	}
	st := client.Manager.State()
	if st.Status != realtime.StatusDisconnected {
		return nil
	}
	if st.LastError != nil {
		return errors.Wrap(st.LastError, "connecting")
	}
	return errors.New("no auth token stored, run `nexus-realtime token set` first")
}

func printLines(ctx context.Context, w io.Writer, lines <-chan eventLine) error {
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case l := <-lines:
			if err := enc.Encode(l); err != nil {
				return errors.Wrap(err, "writing event")
			}
		}
	}
}
