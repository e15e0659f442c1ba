package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/cardroom/pkg/client"
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/messages"
	"github.com/cbodonnell/cardroom/pkg/queue"
	"github.com/cbodonnell/cardroom/pkg/rooms"
	"github.com/spf13/cobra"
)

type options struct {
	serverAddr string
	gameID     string
	playerID   string
	username   string
	team       string
	ready      bool
	compress   bool
	logLevel   string
}

// A headless player: joins a room, optionally picks a team and readies up,
// then prints every server message as a JSON line until interrupted.
func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "cardroom-client",
		Short:        "Join a card room from the command line",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.serverAddr, "server", "ws://localhost:8080/ws", "server WebSocket url")
	cmd.Flags().StringVar(&opts.gameID, "game", "", "room to join")
	cmd.Flags().StringVar(&opts.playerID, "player", "", "player id")
	cmd.Flags().StringVar(&opts.username, "username", "", "display name")
	cmd.Flags().StringVar(&opts.team, "team", "", "team to pick (A or B)")
	cmd.Flags().BoolVar(&opts.ready, "ready", false, "mark the player ready after joining")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "ask for zstd compressed frames")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	cmd.MarkFlagRequired("game")
	cmd.MarkFlagRequired("player")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts *options) error {
	parsedLogLevel, err := log.ParseLogLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	log.SetDefaultLogger(log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel))

	team := rooms.Team(opts.team)
	if !team.Valid() {
		return fmt.Errorf("invalid team %q", opts.team)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox := queue.NewInMemoryQueue[*messages.Message](queue.QueueBufferSize)
	c := client.NewWSClient(client.NewWSClientOptions{
		ServerAddr:   opts.serverAddr,
		Compress:     opts.compress,
		AutoConfirm:  true,
		MessageQueue: inbox,
	})
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	errChan := make(chan error, 1)
	go func() { errChan <- c.HandleMessages(ctx) }()

	if err := c.JoinRoom(ctx, opts.gameID, opts.playerID, opts.username); err != nil {
		return err
	}
	if team != rooms.TeamNone {
		if err := c.AssignTeam(ctx, opts.gameID, opts.playerID, team); err != nil {
			return err
		}
	}
	if opts.ready {
		if err := c.ToggleReady(ctx, opts.gameID); err != nil {
			return err
		}
	}

	out := json.NewEncoder(os.Stdout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errChan:
			return err
		case <-ticker.C:
			for _, msg := range inbox.ReadAllMessages() {
				if err := out.Encode(msg); err != nil {
					return err
				}
			}
		}
	}
}
