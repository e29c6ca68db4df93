package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/slighter12/cocos-mcp-go/config"
	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/reconcile"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	"github.com/slighter12/cocos-mcp-go/tools"
	"github.com/slighter12/cocos-mcp-go/transport/http"
	"github.com/slighter12/cocos-mcp-go/transport/shared"
	"github.com/slighter12/cocos-mcp-go/transport/stdio"
)

func main() {
	var (
		configPath  string
		useStdio    bool
		debug       bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("cocos-mcp-go", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (JSON, JSONC or YAML)")
	flagSet.BoolVar(&useStdio, "stdio", os.Getenv("MCP_USE_STDIO") == "true", "serve agents over stdio in addition to HTTP")
	flagSet.BoolVar(&debug, "debug", os.Getenv("MCP_DEBUG") == "true", "enable debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("Failed to parse flags: %+v", err)
	}

	if showVersion {
		fmt.Printf("%s %s\n", shared.ServerName, shared.ServerVersion)
		return
	}

	// Load configuration
	if configPath == "" {
		resolved, err := config.ResolveConfigPath()
		if err != nil {
			log.Fatalf("Failed to resolve config path: %+v", err)
		}
		configPath = resolved
		if err := config.EnsureDefaultConfig(configPath); err != nil {
			log.Fatalf("Failed to create default config: %+v", err)
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %+v", err)
	}
	if debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
	}

	// Initialize logger
	if err := logger.Init(logger.GetLevelFromString(cfg.Logging.Level), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		log.Fatalf("Failed to initialize logger: %+v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Watch(ctx, configPath, func(next *config.Config) {
		if debug {
			return
		}
		logger.SetDefaultLevel(logger.GetLevelFromString(next.Logging.Level))
		logger.Info("Configuration reloaded", "path", configPath, "log_level", next.Logging.Level)
	}); err != nil {
		logger.Warn("Config watch disabled", "path", configPath, "error", err)
	}

	// Wire the editor bridge and the reconciliation engine
	runtimebridge.SetDefaultStore(runtimebridge.NewStore(cfg.Bridge.StaleAfter()))
	runtimebridge.SetDefaultCommandBroker(runtimebridge.NewCommandBroker(cfg.Bridge.CommandTimeout()))
	bridge := runtimebridge.NewSceneBridge(nil, nil,
		runtimebridge.WithRateLimit(cfg.Bridge.MaxRequestsPerSecond, cfg.Bridge.Burst),
		runtimebridge.WithCommandTimeout(cfg.Bridge.CommandTimeout()),
		runtimebridge.WithBridgeLogger(logger.With("component", "scene_bridge")),
	)
	engine := reconcile.NewEngine(bridge,
		reconcile.WithTiming(reconcile.Timing{
			WriteSettle:   cfg.Engine.WriteSettle(),
			RemovalSettle: cfg.Engine.RemovalSettle(),
		}),
		reconcile.WithLogger(logger.With("component", "reconcile")),
	)

	toolManager := tools.NewManager()
	toolManager.RegisterDefaultTools(engine)

	// The editor plugin always connects over HTTP; agents may also use stdio.
	if useStdio {
		go func() {
			logger.Info("Starting MCP server in stdio mode")
			if err := stdio.NewStdioServer(toolManager).Start(ctx); err != nil {
				logger.Error("Stdio server error", "error", err)
			}
			stop()
		}()
	}

	server := http.NewServer(cfg, toolManager)
	if err := server.Start(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
