// readerstore gRPC server
// Serves cascade maintenance and quality recomputation over the content store
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/readerstore/internal/config"
	"github.com/nainya/readerstore/internal/logger"
	"github.com/nainya/readerstore/internal/metrics"
	"github.com/nainya/readerstore/internal/server"
	"github.com/nainya/readerstore/pkg/async"
	"github.com/nainya/readerstore/pkg/bookstore"
	"github.com/nainya/readerstore/pkg/catalog"
	"github.com/nainya/readerstore/pkg/content"
	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/memstore"
	"github.com/nainya/readerstore/pkg/docstore/mongostore"
	"github.com/nainya/readerstore/pkg/docstore/sqlitestore"
	"github.com/nainya/readerstore/pkg/docstore/surrealstore"
	"github.com/nainya/readerstore/pkg/quality"
)

var (
	envFile = flag.String("env-file", ".env", "Dotenv file loaded before the environment")
	seed    = flag.String("seed", "", "Catalog YAML imported at startup")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "readerstore:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	log := logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	log.LogServerStart(cfg.Server.GrpcPort, cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	schema := docstore.MustSchema(append(bookstore.Tables(), content.Tables()...)...)
	backend, err := open(ctx, cfg.Store, schema)
	if err != nil {
		return err
	}
	defer backend.Close()
	client := metrics.InstrumentClient(backend, m, log.Component("docstore"))

	books := bookstore.New(client, bookstore.WithLogger(log.Zerolog()))
	cs := content.New(client, content.WithLogger(log.Zerolog()))

	if *seed != "" {
		if err := importCatalog(ctx, books, *seed, log); err != nil {
			return err
		}
	}

	weights := quality.DefaultWeights().WithHalfLife(cfg.Quality.HalfLifeDays)
	recomputer, err := content.NewRecomputer(cs, weights)
	if err != nil {
		return fmt.Errorf("quality weights: %w", err)
	}

	svc := server.NewService(books, cs, weights, m, log)
	grpcServer, health := server.NewGRPCServer(svc, m, log.Component("grpc"))
	obs := server.NewObservabilityServer(cfg.Server.MetricsPort, reg, client.Ping, log.Component("observability"))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GrpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.LogServerReady(cfg.Server.GrpcPort)
		return grpcServer.Serve(lis)
	})
	g.Go(obs.Start)
	g.Go(func() error {
		m.RunUptime(gctx, 15*time.Second)
		return nil
	})
	if cfg.Sweeper.Interval > 0 {
		g.Go(func() error {
			every(gctx, cfg.Sweeper.Interval, func(ctx context.Context) {
				res, err := books.Sweep(ctx, bookstore.SweepOptions{Limit: cfg.Sweeper.Batch, MinAge: cfg.Sweeper.MinAge})
				if err != nil {
					log.Warn().Err(err).Msg("cascade sweep failed")
					return
				}
				m.RecordSweep(res.Resumed+res.Failed+res.Skipped, res.Resumed, res.Failed)
			})
			return nil
		})
	}
	if cfg.Quality.Interval > 0 {
		g.Go(func() error {
			every(gctx, cfg.Quality.Interval, func(ctx context.Context) {
				res, err := recomputer.Run(ctx, content.Status(cfg.Quality.Status), cfg.Quality.Batch)
				if err != nil {
					log.Warn().Err(err).Msg("quality recompute failed")
					return
				}
				m.RecordRecompute(res.Posts, res.Comments, res.Replies)
			})
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return obs.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// open connects the configured backend.
func open(ctx context.Context, cfg config.StoreConfig, schema *docstore.Schema) (docstore.Client, error) {
	switch cfg.Backend {
	case "memory":
		return memstore.New(schema), nil
	case "sqlite":
		return sqlitestore.Open(ctx, sqlitestore.FileDSN(cfg.SQLitePath), schema)
	case "surrealdb":
		return surrealstore.Open(ctx, surrealstore.Config{
			URL:       cfg.Surreal.URL,
			Namespace: cfg.Surreal.Namespace,
			Database:  cfg.Surreal.Database,
			Username:  cfg.Surreal.Username,
			Password:  cfg.Surreal.Password,
		}, schema)
	case "mongodb":
		return mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, schema)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func importCatalog(ctx context.Context, books *bookstore.Store, path string, log *logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	// Await returns on signal even while a slow backend is still writing.
	sum, err := async.Await(ctx, async.Go(ctx, func(ctx context.Context) (catalog.Summary, error) {
		return catalog.Import(ctx, books, f)
	}))
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	log.Info().
		Str("path", path).
		Int("books", sum.Books).
		Int("volumes", sum.Volumes).
		Int("chapters", sum.Chapters).
		Int("paragraphs", sum.Paragraphs).
		Msg("catalog imported")
	return nil
}

// every runs fn each interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
