package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/amirbrooks/taskping/internal/command"
	"github.com/amirbrooks/taskping/internal/config"
	"github.com/amirbrooks/taskping/internal/notify"
	"github.com/amirbrooks/taskping/internal/phonedir"
	"github.com/amirbrooks/taskping/internal/reminder"
	"github.com/amirbrooks/taskping/internal/server"
	"github.com/amirbrooks/taskping/internal/store"
)

const version = "0.1.0"

var (
	cfgPath string
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taskping",
	Short: "WhatsApp task manager with reminder notifications",
	Long: `taskping turns WhatsApp messages into task-store operations and runs a
background scanner that sends reminder notifications, with support for
recurring tasks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and the reminder scanner",
	RunE:  runServe,
}

var processCmd = &cobra.Command{
	Use:   "process [message]",
	Short: "Process one command locally and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

var processFrom string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the taskping version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("taskping", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	processCmd.Flags().StringVar(&processFrom, "from", "", "Sender phone number")
	_ = processCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(serveCmd, processCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	taskStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	phones := phonedir.Open(cfg.PhoneDir)
	handler := command.NewHandler(taskStore, phones, logger)
	sender := openSender(cfg)
	scanner := reminder.NewScanner(taskStore, phones, sender, reminder.NewMemoryFired(), reminder.Config{
		Interval: cfg.Reminder.Interval,
		Lead:     cfg.Reminder.Lead,
		Window:   cfg.Reminder.Window,
	}, logger)
	srv := server.New(cfg.ListenAddr, cfg.AuthToken, handler, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return scanner.Run(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	taskStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	phones := phonedir.Open(cfg.PhoneDir)
	handler := command.NewHandler(taskStore, phones, logger)
	fmt.Println(handler.Process(cmd.Context(), strings.Join(args, " "), processFrom))
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "property":
		return store.NewPropertyStore(store.PropertyStoreConfig{
			BaseURL:    cfg.Store.BaseURL,
			APIKey:     cfg.Store.APIKey,
			DatabaseID: cfg.Store.DatabaseID,
			Version:    cfg.Store.Version,
		}, logger)
	case "docstore", "":
		return store.OpenDocStore(cfg.Store.Root, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openSender(cfg *config.Config) notify.Sender {
	sender, err := notify.NewCarrierSender(notify.CarrierConfig{
		AccountSID: cfg.Carrier.AccountSID,
		AuthToken:  cfg.Carrier.AuthToken,
		FromNumber: cfg.Carrier.FromNumber,
		BaseURL:    cfg.Carrier.BaseURL,
	}, logger)
	if err != nil {
		logger.Warn("carrier not configured, logging notifications instead", zap.Error(err))
		return notify.NewLogSender(logger)
	}
	return sender
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "taskping:", err)
		os.Exit(1)
	}
}
