package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonrowsell/chirpstore/internal/cache"
	"github.com/jasonrowsell/chirpstore/internal/config"
	"github.com/jasonrowsell/chirpstore/internal/logging"
	"github.com/jasonrowsell/chirpstore/internal/server"
	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

type options struct {
	configPath string
	listenAddr string
	shardCount int
	revision   string
	seedFile   string
	logLevel   string
	logFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newCommand(&options{})
}

// newCommand binds the command's flags to o.
func newCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chirpstored",
		Short:         "In-memory chirpstore reference server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&o.listenAddr, "listen", config.DefaultAddr, "Address to listen on (e.g., :7380 or 127.0.0.1:7380)")
	f.IntVar(&o.shardCount, "shards", config.DefaultShards, "Number of cache shards (must be power of 2)")
	f.StringVarP(&o.revision, "revision", "r", config.DefaultRevision, "Protocol revision (v1 or legacy)")
	f.StringVar(&o.seedFile, "seed", "", "YAML file of keys and values loaded at startup")
	f.StringVar(&o.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&o.logFile, "log-file", "", "Also write JSON logs to this rotating file")
	return cmd
}

// load reads the configuration file and applies explicitly set flags.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Server.Listen = o.listenAddr
	}
	if flags.Changed("shards") {
		cfg.Server.Shards = o.shardCount
	}
	if flags.Changed("revision") {
		cfg.Server.Revision = o.revision
	}
	if flags.Changed("seed") {
		cfg.Server.SeedFile = o.seedFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = o.logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newServer builds the cache and server described by cfg.
func newServer(cfg *config.Config, log *zap.Logger) (*server.Server, error) {
	rev, err := protocol.RevisionByName(cfg.Server.Revision)
	if err != nil {
		return nil, err
	}

	c := cache.NewWithShardCount(cfg.Server.Shards)
	if cfg.Server.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.Server.SeedFile)
		if err != nil {
			return nil, err
		}
		for k, v := range seed {
			c.Set(k, []byte(v))
		}
		log.Info("seeded cache", zap.String("file", cfg.Server.SeedFile), zap.Int("keys", len(seed)))
	}

	return server.New(c, &server.Options{
		Revision:  rev,
		ListLimit: cfg.Server.ListLimit,
		Logger:    log,
	}), nil
}

func serve(cfg *config.Config) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting chirpstore server",
		zap.String("listen", cfg.Server.Listen),
		zap.Int("shards", cfg.Server.Shards),
		zap.String("revision", cfg.Server.Revision),
	)

	svr, err := newServer(cfg, log)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- svr.ListenAndServe(cfg.Server.Listen)
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received, shutting down", zap.Stringer("signal", sig))
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	}

	if err := svr.Shutdown(); err != nil {
		log.Warn("error during shutdown", zap.Error(err))
	}
	log.Info("chirpstore server stopped")
	return nil
}
