package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jasonrowsell/chirpstore/internal/config"
	"github.com/jasonrowsell/chirpstore/internal/logging"
	"github.com/jasonrowsell/chirpstore/pkg/client"
	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

// app holds the settings shared by every command.
type app struct {
	configPath  string
	addr        string
	revision    string
	logLevel    string
	timeout     time.Duration
	dialTimeout time.Duration

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "chirpcli",
		Short: "Command line client for a chirpstore server",
		Long: `chirpcli talks to a chirpstore server over TCP.

Run a single command:
  chirpcli get fruit
  chirpcli list --count 10 b

Run without a command to start an interactive session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(func(cli *client.Client) error {
				return runInteractiveMode(cli, a.cfg.Client.Addr, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&a.addr, "addr", "a", config.DefaultAddr, "Server address (host:port)")
	pf.StringVarP(&a.revision, "revision", "r", config.DefaultRevision, "Protocol revision (v1 or legacy)")
	pf.StringVar(&a.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	pf.DurationVar(&a.timeout, "timeout", 0, "Per-call timeout (0 waits indefinitely)")
	pf.DurationVar(&a.dialTimeout, "dial-timeout", config.DefaultDialTimeout, "Connection timeout")

	root.AddCommand(
		a.statusCmd(),
		a.lenCmd(),
		a.listCmd(),
		a.getCmd(),
		a.sizeCmd(),
	)
	return root
}

// setup loads the configuration file and applies explicitly set flags on
// top of it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Client.Addr = a.addr
	}
	if flags.Changed("revision") {
		cfg.Client.Revision = a.revision
	}
	if flags.Changed("timeout") {
		cfg.Client.CallTimeout = a.timeout
	}
	if flags.Changed("dial-timeout") {
		cfg.Client.DialTimeout = a.dialTimeout
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) options() (*client.Options, error) {
	rev, err := protocol.RevisionByName(a.cfg.Client.Revision)
	if err != nil {
		return nil, err
	}
	return &client.Options{
		Revision:    rev,
		DialTimeout: a.cfg.Client.DialTimeout,
		CallTimeout: a.cfg.Client.CallTimeout,
		Logger:      a.log,
	}, nil
}

// withClient connects to the configured server for the duration of fn.
func (a *app) withClient(fn func(*client.Client) error) error {
	opts, err := a.options()
	if err != nil {
		return err
	}
	if err := client.With(a.cfg.Client.Addr, opts, fn); err != nil {
		return fmt.Errorf("%s: %w", a.cfg.Client.Addr, err)
	}
	return nil
}
