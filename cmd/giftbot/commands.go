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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/gift-bot/internal/api"
	"github.com/xaenox/gift-bot/internal/bot"
	"github.com/xaenox/gift-bot/internal/cache"
	"github.com/xaenox/gift-bot/internal/models"
)

const shutdownTimeout = 10 * time.Second

// run wires the app and hands it to fn with a context canceled on
// SIGINT or SIGTERM.
func run(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var withBot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return serveHTTP(ctx, a) })
				if withBot {
					g.Go(func() error { return runBot(ctx, a) })
				}
				return g.Wait()
			})
		},
	}
	cmd.Flags().BoolVar(&withBot, "bot", false, "also run the Telegram bot")
	return cmd
}

func serveHTTP(ctx context.Context, a *app) error {
	sc := a.cfg.Server
	handler := api.NewServer(a.pipeline, a.store, a.backend, api.Options{
		MaxUploadBytes: sc.MaxUploadBytes,
		RequestTimeout: sc.RequestTimeout,
		RateLimit:      sc.RateLimit,
		AllowedOrigins: sc.AllowedOrigins,
	}, a.logger)

	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", sc.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newBotCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, runBot)
		},
	}
}

func runBot(ctx context.Context, a *app) error {
	if a.cfg.Telegram.Token == "" {
		return errors.New("telegram token is not set, use TELEGRAM_TOKEN")
	}
	b, err := bot.New(a.cfg.Telegram.Token, a.cfg.Telegram.Debug, a.store, a.pipeline, a.logger)
	if err != nil {
		return err
	}
	return b.Start(ctx)
}

func newBuildCacheCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build-cache",
		Short: "Embed the catalog CSV files into the product cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				builder := cache.NewBuilder(a.products, a.embedder, a.cfg.Cache.BuildBatch, a.logger)
				res, err := builder.Build(ctx, a.cfg.Catalog.Dir)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "built: %d, skipped: %d, failed: %d\n", len(res.Built), len(res.Skipped), len(res.Failed))
				for _, key := range res.Failed {
					fmt.Fprintf(out, " - failed: %s\n", key)
				}
				if len(res.Failed) > 0 {
					return fmt.Errorf("%d catalog files failed", len(res.Failed))
				}
				return nil
			})
		},
	}
}

func newAnalyzeCommand(opts *rootOptions) *cobra.Command {
	var withProducts bool

	cmd := &cobra.Command{
		Use:   "analyze <chat-export.txt>",
		Short: "Print the per-date analysis of a chat export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return run(cmd, opts, func(ctx context.Context, a *app) error {
				analyses, err := a.pipeline.Analyze(ctx, f)
				if err != nil {
					return err
				}
				var products ranker
				if withProducts {
					products = a.recommender
				}
				for _, an := range analyses {
					printAnalysis(ctx, cmd.OutOrStdout(), products, an)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withProducts, "recommend", true, "also print the top products per date")
	return cmd
}

// ranker ranks cached products for one analysed date.
type ranker interface {
	Recommend(ctx context.Context, keywords []models.Keyword, category string, intimacy float64) ([]models.RankedProduct, error)
}

// printAnalysis writes one date-group. A failure is printed in place of
// that date's output. Products are listed only when products is set.
func printAnalysis(ctx context.Context, w io.Writer, products ranker, an models.GroupAnalysis) {
	if an.Err != nil {
		fmt.Fprintf(w, "\n📅 %s  분석 실패: %v\n", an.Date, an.Err)
		return
	}

	fmt.Fprintf(w, "\n📅 %s  주제:%s  대분류:%s  친밀도:%.2f\n", an.Date, an.Subject, an.Category, an.Intimacy)
	for i, k := range an.Keywords {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, " - %s: %.2f\n", k.Name, k.Score)
	}
	if products == nil {
		return
	}

	ranked, err := products.Recommend(ctx, an.Keywords, an.Category, an.Intimacy)
	if err != nil {
		fmt.Fprintf(w, "\n🎁 추천 실패: %v\n", err)
		return
	}
	fmt.Fprintln(w, "\n🎁 추천 TOP 5:")
	for _, rp := range ranked {
		fmt.Fprintf(w, " - %s (%.2f)\n", rp.Product.Name, rp.Similarity)
	}
}
