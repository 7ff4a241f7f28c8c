package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MatusOllah/slogcolor"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/samsameer/meshriderwave-sub002/pkg/adapters/mcptt"
	"github.com/samsameer/meshriderwave-sub002/pkg/config"
	"github.com/samsameer/meshriderwave-sub002/pkg/gateway"
	"github.com/samsameer/meshriderwave-sub002/pkg/hooks"
	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
	"github.com/samsameer/meshriderwave-sub002/pkg/routes"
	"github.com/samsameer/meshriderwave-sub002/pkg/selector"
	"github.com/samsameer/meshriderwave-sub002/pkg/store"
	"github.com/samsameer/meshriderwave-sub002/pkg/translate"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	opts := slogcolor.DefaultOptions
	opts.Level = logLevel(cfg.LogLevel)
	log := slog.New(slogcolor.NewHandler(os.Stderr, opts))
	slog.SetDefault(log)

	dsn := cfg.Database.DSN()
	if err := store.RunMigrations(dsn); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	stores, err := store.Connect(dsn)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mapper := identity.NewMapper(log)
	if err := mapper.Load(ctx, stores.Identities); err != nil {
		log.Error("failed to load identity mappings", "error", err)
		os.Exit(1)
	}

	sel := selector.New(cfg.Selector, stores.GatewayNodes, log)
	sel.Start(ctx)

	core := gateway.New(cfg, translate.New(mapper, log), sel, stores.CallRecords, log)

	statusRouter := routes.NewStatusRouter(core, sel, mapper, stores)
	core.SetNotifier(statusRouter.Notifier)

	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       log.With("component", "broker"),
	})
	hook := new(hooks.PTTHook)
	err = server.AddHook(hook, &hooks.PTTHookOptions{
		Server:   server,
		Config:   cfg,
		Core:     core,
		Selector: sel,
		Mapper:   mapper,
		Storage:  stores,
	})
	if err != nil {
		log.Error("failed to add broker hook", "error", err)
		os.Exit(1)
	}
	core.RegisterAdapter(hook)

	tcp := listeners.NewTCP(listeners.Config{ID: "mesh-tcp", Address: cfg.ListenAddr})
	if err := server.AddListener(tcp); err != nil {
		log.Error("failed to add broker listener", "error", err)
		os.Exit(1)
	}

	mcpttClient, err := mcptt.NewClient(cfg.Mcptt, core, log)
	if err != nil {
		log.Error("failed to connect MCPTT adapter", "error", err)
		os.Exit(1)
	}
	core.RegisterAdapter(mcpttClient)

	core.Start()

	go func() {
		if err := server.Serve(); err != nil {
			log.Error("broker stopped", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := statusRouter.HandleRequests(cfg.APIListenAddr); err != nil {
			log.Error("status API stopped", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("gateway running",
		"mesh_listen", cfg.ListenAddr,
		"api_listen", cfg.APIListenAddr,
		"mcptt_broker", cfg.Mcptt.BrokerURL,
		"identities", mapper.Count())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	core.Shutdown()
	mcpttClient.Close()
	_ = server.Close()
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
