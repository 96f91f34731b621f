package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"yolka-fest/internal/config"
	"yolka-fest/internal/hype"
	"yolka-fest/internal/ledger"
	"yolka-fest/internal/registration"
	"yolka-fest/internal/server"
	"yolka-fest/internal/sheets"
	"yolka-fest/internal/tgbot"
	"yolka-fest/internal/yadisk"
)

var verbose bool

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "yolka",
		Short:        "ЙОЛКА FEST registration service",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the registration page, API and Telegram bot",
		RunE:  runServe,
	})

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the registration ledger as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), out)
		},
	}
	export.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	root.AddCommand(export)

	return root
}

func newLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func setup() (config.Config, *zap.Logger, error) {
	_ = godotenv.Load()

	log, err := newLogger()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, log, fmt.Errorf("config: %w", err)
	}
	return cfg, log, nil
}

func buildLedger(ctx context.Context, cfg config.Config, log *zap.Logger) (ledger.Ledger, error) {
	switch cfg.LedgerBackend {
	case config.BackendGoogleSheets:
		sh, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID, cfg.SpreadsheetSheet, cfg.Location, log)
		if err != nil {
			return nil, fmt.Errorf("sheets: %w", err)
		}
		if err := sh.EnsureHeaders(ctx); err != nil {
			return nil, fmt.Errorf("sheets headers: %w", err)
		}
		return sh, nil
	default:
		disk := yadisk.NewClient(cfg.YandexDiskAPI, cfg.YandexDiskToken, &http.Client{Timeout: cfg.HTTPTimeout})
		return ledger.NewDiskLedger(disk, ledger.Config{Path: cfg.YandexFilePath, Location: cfg.Location}, log), nil
	}
}

func buildLimiter(ctx context.Context, cfg config.Config, log *zap.Logger) server.Limiter {
	if cfg.RedisAddr == "" {
		return server.NewMemoryLimiter()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, using in-memory rate limit", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return server.NewMemoryLimiter()
	}
	return server.NewRedisLimiter(rdb)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if log != nil {
		defer log.Sync()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	led, err := buildLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	gen := hype.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, &http.Client{Timeout: cfg.HTTPTimeout}, log)
	log.Debug("hype generator ready", zap.Bool("gemini", gen.Enabled()), zap.String("model", cfg.GeminiModel))
	sub := registration.NewSubmitter(led, gen, log)

	httpSrv := server.New(cfg, server.Deps{
		Submitter: sub,
		Ledger:    led,
		Limiter:   buildLimiter(ctx, cfg, log),
		Log:       log,
	})

	var botApp *tgbot.App
	if cfg.TelegramToken != "" {
		botApp, err = tgbot.New(cfg, sub, server.ExportURL(cfg), log)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	} else {
		log.Info("TELEGRAM_BOT_TOKEN is empty, bot disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("ledger", cfg.LedgerBackend))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if botApp != nil {
		g.Go(func() error {
			if err := botApp.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bot: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("bye")
	return err
}

func runExport(ctx context.Context, out string) error {
	cfg, log, err := setup()
	if log != nil {
		defer log.Sync()
	}
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	led, err := buildLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	sheet, err := led.Sheet(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := sheet.WriteCSV(w); err != nil {
		return err
	}
	log.Info("exported registrations", zap.Int("rows", len(sheet.Rows)), zap.String("sheet", sheet.Name))
	return nil
}
