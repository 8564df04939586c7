package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/argo-shortbot/internal/app"
	"github.com/rxtech-lab/argo-shortbot/internal/config"
	"github.com/rxtech-lab/argo-shortbot/internal/logger"
	"github.com/rxtech-lab/argo-shortbot/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// runAction loads the configuration and runs the bot until SIGINT or SIGTERM.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	l, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := app.New(cfg, l)
	if err != nil {
		l.Error("Failed to build bot", zap.Error(err))

		return err
	}

	l.Info("Bot starting",
		zap.String("version", version.GetVersion()),
		zap.Bool("live", cfg.LiveTradingAvailable()),
		zap.String("api", cfg.API.Listen),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	return bot.Run(ctx)
}

// schemaAction prints the JSON schema of the configuration file.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.Schema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

func main() {
	cmd := &cli.Command{
		Name:    "shortbot",
		Usage:   "Short overheated Binance futures on RSI alerts",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the bot",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML configuration `FILE`",
						Value:   "config.yaml",
					},
					&cli.StringFlag{
						Name:    "env-file",
						Aliases: []string{"e"},
						Usage:   "Path to a .env file with secrets",
						Value:   ".env",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "Override the log level (debug, info, warn, error)",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
