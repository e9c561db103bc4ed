// Command bot оповещает подписчиков Telegram о свободных слотах вакцинации CoWin.
//
//	cowin-alert-bot serve --config config/example.yaml
//	cowin-alert-bot migrate
//	cowin-alert-bot export --out subscribers.xlsx
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
	"github.com/Spok95/cowin-alert-bot/internal/bot"
	"github.com/Spok95/cowin-alert-bot/internal/clock"
	"github.com/Spok95/cowin-alert-bot/internal/config"
	"github.com/Spok95/cowin-alert-bot/internal/cowin"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
	"github.com/Spok95/cowin-alert-bot/internal/infra/db"
	httpx "github.com/Spok95/cowin-alert-bot/internal/infra/http"
	"github.com/Spok95/cowin-alert-bot/internal/infra/logger"
	"github.com/Spok95/cowin-alert-bot/internal/infra/metrics"
	"github.com/Spok95/cowin-alert-bot/internal/infra/telegram"
	"github.com/Spok95/cowin-alert-bot/internal/poller"
	"github.com/Spok95/cowin-alert-bot/internal/report"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "cowin-alert-bot",
		Short:         "CoWin vaccination slot alerts over Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config/example.yaml", "path to YAML config (empty: env only)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run pollers, bot and HTTP endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cfgPath)
			if err != nil {
				return err
			}
			return db.Migrate(cmd.Context(), cfg.Postgres.DSN, log)
		},
	})
	root.AddCommand(exportCmd(&cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func setup(cfgPath string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger.New(cfg.App.Env, cfg.App.LogFormat), nil
}

func exportCmd(cfgPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all subscribers to an xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			pool, err := db.Connect(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			list, err := subscribers.NewRepo(pool).ListAll(cmd.Context())
			if err != nil {
				return err
			}
			data, err := report.Subscribers(list, loc)
			if err != nil {
				return err
			}
			if out == "" {
				out = report.FileName(time.Now().In(loc))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			log.Info("subscribers exported", "file", out, "count", len(list))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default subscribers_<time>.xlsx)")
	return cmd
}

func serve(ctx context.Context, cfgPath string) error {
	cfg, log, err := setup(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	classes, err := cfg.Classes()
	if err != nil {
		return err
	}

	if err := db.Migrate(ctx, cfg.Postgres.DSN, log); err != nil {
		log.Error("migrations failed", "err", err)
		return err
	}

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return err
	}
	defer pool.Close()
	log.Info("db connected")

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram authorized", "bot", api.Self.UserName)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = reg
	}

	clk := clock.SystemClock{}
	repo := subscribers.NewRepo(pool)
	client := cowin.NewClient(cowin.Config{
		BaseURL:        cfg.Cowin.BaseURL,
		AcceptLanguage: cfg.Cowin.AcceptLanguage,
		UserAgent:      cfg.Cowin.UserAgent,
		Timeout:        cfg.Cowin.Timeout,
		Location:       loc,
	}, clk, log)
	dispatcher := alerts.NewDispatcher(telegram.NewSender(api), repo, clk, cfg.Alerts.MaxMessageLen, log)
	sched, err := poller.New(client, repo, dispatcher, alerts.NewPolicy(classes, cfg.Poller.FavorFastBand),
		poller.Config{Classes: classes, Pacing: cfg.Poller.Pacing}, clk, metrics.NewPoller(reg), log)
	if err != nil {
		return err
	}
	b := bot.New(api, log, repo, client, cfg.Telegram.AdminChatID, cfg.Alerts.MaxMessageLen, loc)
	srv := httpx.New(cfg.HTTP.Addr, pool, gatherer)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return b.Run(ctx, cfg.Telegram.UpdateTimeout) })
	g.Go(func() error {
		log.Info("HTTP server started", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		api.StopReceivingUpdates()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("graceful shutdown complete")
	return err
}
