package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rtsgo/server/internal/config"
	"github.com/rtsgo/server/internal/data"
	gonet "github.com/rtsgo/server/internal/net"
	"github.com/rtsgo/server/internal/persist"
	"github.com/rtsgo/server/internal/scripting"
	"github.com/rtsgo/server/internal/sim"
	"github.com/rtsgo/server/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              rtsgo  v0.1.0                \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      tick-based unit simulation server    \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(3, 46-len(title)-1)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(3, 42-len(label)-len(numStr))
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	hashKey := flag.String("hash-key", "", "print the bcrypt hash of an admin key for admin.reset_key_hash and exit")
	flag.Parse()
	if *hashKey != "" {
		hash, err := gonet.HashKey(*hashKey)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}

	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("RTSGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Optional PostgreSQL: client registry and tick-stat history
	printSection("database")
	var (
		clients  gonet.ClientRegistry = gonet.NewMemoryClients()
		tickSink system.TickSink
		sinkDone = make(chan struct{})
	)
	if cfg.Database.DSN != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(connectCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		err = persist.RunMigrations(connectCtx, db.Pool)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		clients = persist.NewClientRepo(db)
		sink := persist.NewTickStatSink(persist.NewTickStatRepo(db), cfg.Metrics.SinkBuffer, log)
		tickSink = sink
		go func() {
			defer close(sinkDone)
			sink.Run(ctx)
		}()
	} else {
		close(sinkDone)
		printOK("no dsn, client registry kept in memory")
	}
	fmt.Println()

	// 4. Simulation
	printSection("simulation")
	loop, err := sim.NewLoop(cfg.Simulation, tickSink, cfg.Metrics.SampleEveryTicks, log)
	if err != nil {
		return err
	}
	printStat("tick interval (ms)", int(cfg.Simulation.TickInterval.Milliseconds()))
	printStat("command queue", cfg.Simulation.CommandQueueSize)

	// 5. Network
	guard, err := gonet.NewAdminGuard(cfg.Admin.ResetKeyHash)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	srv := gonet.NewServer(cfg.Network, loop, clients, guard, log)
	srv.Subscribe(loop.Engine().Bus())

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	// 6. Seed the world once the loop is draining the queue
	go seed(ctx, cfg, loop, log)
	fmt.Println()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", cfg.Network.BindAddress))
	printReady(fmt.Sprintf("clients connect via %s/ws/<id>", cfg.Network.PublicURL))
	if !guard.Enabled() {
		printReady("reset endpoint is open (no admin key configured)")
	}
	fmt.Println()

	serveErr := srv.ListenAndServe(ctx)
	stop()
	loopErr := <-loopDone
	<-sinkDone
	log.Info("server stopped", zap.Uint64("ticks", loop.Stats().Ticks))
	return errors.Join(serveErr, loopErr)
}

// seed submits the spawn list, then runs the startup scenario.
func seed(ctx context.Context, cfg *config.Config, loop *sim.Loop, log *zap.Logger) {
	if path := cfg.Data.SpawnList; path != "" {
		list, err := data.LoadSpawnList(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("spawn list not found, starting empty", zap.String("path", path))
		case err != nil:
			log.Error("spawn list", zap.Error(err))
		default:
			n := 0
			for _, cmd := range list.Commands() {
				if err := loop.Submit(ctx, cmd); err != nil {
					log.Warn("spawn list interrupted", zap.Int("submitted", n), zap.Error(err))
					return
				}
				n++
			}
			log.Info("spawn list submitted", zap.Int("units", list.Count()), zap.Int("commands", n))
		}
	}

	if path := cfg.Scripting.Scenario; path != "" {
		lua := scripting.NewEngine(loop, log)
		defer lua.Close()
		if err := lua.RunScenario(ctx, path); err != nil {
			log.Error("scenario", zap.String("path", path), zap.Error(err))
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
