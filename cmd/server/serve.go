package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cbodonnell/cardroom/pkg/api"
	"github.com/cbodonnell/cardroom/pkg/config"
	"github.com/cbodonnell/cardroom/pkg/lobby"
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/network"
	"github.com/cbodonnell/cardroom/pkg/queue"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
	"github.com/cbodonnell/cardroom/pkg/reliability"
	"github.com/cbodonnell/cardroom/pkg/repositories"
	"github.com/cbodonnell/cardroom/pkg/scheduler"
	"github.com/cbodonnell/cardroom/pkg/state"
	"github.com/cbodonnell/cardroom/pkg/workers"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	var wsPort, apiPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if cmd.Flags().Changed("ws-port") {
				cfg.WSPort = wsPort
			}
			if cmd.Flags().Changed("api-port") {
				cfg.APIPort = apiPort
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&wsPort, "ws-port", 8080, "WebSocket port to listen on, overrides CARDROOM_WS_PORT")
	cmd.Flags().IntVar(&apiPort, "api-port", 9090, "API port to listen on, overrides CARDROOM_API_PORT")
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting cardroom server version %s", version)
	clock := clockwork.NewRealClock()

	repository, err := repositories.Open(ctx, cfg.DatabaseURL, clock)
	if err != nil {
		return fmt.Errorf("failed to open repository: %v", err)
	}

	store := state.NewInMemoryRoomStore(clock)
	registry := network.NewConnectionRegistry()
	hub := network.NewHub(registry)

	delivery := reliability.NewService(reliability.NewServiceOptions{
		Emitter:             hub,
		Clock:               clock,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		MaxAttempts:         cfg.MaxDeliveryAttempts,
		CriticalEvents:      cfg.CriticalEvents,
	})

	changes := queue.NewInMemoryQueue[repositories.Change](cfg.PersistQueueSize)
	lobbyService := lobby.NewService(lobby.NewServiceOptions{
		Store:      store,
		Changes:    changes,
		Publisher:  delivery,
		Clock:      clock,
		MaxPlayers: cfg.MaxPlayers,
	})

	var wg sync.WaitGroup
	persistWorker := workers.NewPersistWorker(workers.NewPersistWorkerOptions{
		Repository: repository,
		Queue:      changes,
		Interval:   cfg.PersistInterval,
		Clock:      clock,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		persistWorker.Start(ctx)
	}()

	connectionEventWorker := workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ConnectionEventChan: registry.GetConnectionEventChan(),
		Disconnecter:        lobbyService,
	})
	go connectionEventWorker.Start(ctx)

	engine := reconcile.NewEngine(reconcile.NewEngineOptions{
		Repository: repository,
		Live:       store,
		Clock:      clock,
	})
	reconciler := scheduler.NewScheduler(scheduler.NewSchedulerOptions{
		Store:       store,
		Engine:      engine,
		Repository:  repository,
		Connections: registry,
		Broadcaster: hub,
		Clock:       clock,
		Config:      cfg.Scheduler(),
	})
	reconciler.Start(ctx)

	var tls *network.TLSConfig
	var apiTLS *api.TLSConfig
	if cfg.TLSEnabled() {
		tls = &network.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
		apiTLS = &api.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
	}

	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		Registry:       registry,
		Hub:            hub,
		Lobby:          lobbyService,
		Reliability:    delivery,
		WSPort:         cfg.WSPort,
		WSServerTLS:    tls,
		OriginPatterns: cfg.AllowedOrigins,
	})
	networkManager.Start(ctx)

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:        cfg.APIPort,
		TLS:         apiTLS,
		AdminToken:  cfg.AdminToken,
		Scheduler:   reconciler,
		Reliability: delivery,
	})
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	reconciler.Stop()
	delivery.Stop()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn("Failed to stop API server: %v", err)
	}
	// the persist worker flushes what is left in the queue before returning
	wg.Wait()
	if err := repository.Close(shutdownCtx); err != nil {
		log.Warn("Failed to close repository: %v", err)
	}
	log.Info("Server stopped")
	return nil
}
