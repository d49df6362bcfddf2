package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/actionflow/internal/config"
	"github.com/alexisbeaulieu97/actionflow/internal/engine"
	"github.com/alexisbeaulieu97/actionflow/internal/handlers/builtin"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

type rootFlags struct {
	verbose   bool
	logLevel  string
	logFormat string
}

// app is the state shared by subcommands once the root pre-run has loaded
// configuration.
type app struct {
	cfg    config.Config
	logger ports.Logger
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	a := &app{logger: logging.NewNoOpLogger()}

	cmd := &cobra.Command{
		Use:           "actionflow",
		Short:         "Actionflow dispatches declarative UI actions from documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, flags)
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides ACTIONFLOW_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (text, json); overrides ACTIONFLOW_LOG_FORMAT")

	cmd.AddCommand(newDispatchCmd(a))
	cmd.AddCommand(newValidateCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) init(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Writer:    cmd.ErrOrStderr(),
		Level:     cfg.LogLevel,
		Format:    logging.Format(cfg.LogFormat),
		Layer:     "application",
		Component: "cli",
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ports.WithCorrelationID(ctx, ports.NewCorrelationID()))
	return nil
}

// registry builds a registry holding every built-in handler.
func (a *app) registry() (*engine.Registry, *builtin.Handlers, error) {
	opts := builtin.Options{}
	if a.cfg.APIBaseURL != "" {
		base, err := url.Parse(a.cfg.APIBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse api base url: %w", err)
		}
		opts.BaseURL = base
	}
	reg := engine.NewRegistry()
	handlers, err := builtin.Register(reg, opts)
	if err != nil {
		return nil, nil, err
	}
	return reg, handlers, nil
}
