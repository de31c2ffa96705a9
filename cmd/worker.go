package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/backstage/services/repeater/config"
	"example.com/backstage/services/repeater/internal/cache"
	"example.com/backstage/services/repeater/internal/database"
	"example.com/backstage/services/repeater/internal/repository"
	"example.com/backstage/services/repeater/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// metricsOverviewCacheKey holds the precomputed fleet metrics for dashboards
const metricsOverviewCacheKey = "repeater:metrics:overview"

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that periodically recomputes fleet-wide
metrics and caches them for the dashboard.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return errors.Wrap(err, "failed to connect to Redis")
	}
	defer redisClient.Close()

	repo := repository.NewRepository(db)
	svc, err := service.NewService(service.ServiceConfig{
		Repository: repo,
		Cache:      redisClient,
		Logger:     log,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize service")
	}

	refreshInterval := time.Duration(cfg.Worker.MetricsRefreshSeconds) * time.Second

	g.Go(func() error {
		log.WithField("interval", refreshInterval).Info("Starting metrics refresh job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return errors.Wrap(err, "failed to create scheduler")
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(refreshInterval),
			gocron.NewTask(func() {
				if err := refreshFleetMetrics(ctx, svc, redisClient); err != nil {
					log.WithError(err).Error("Failed to refresh fleet metrics")
				}
			}),
		)
		if err != nil {
			return errors.Wrap(err, "failed to schedule metrics refresh job")
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Worker error")
		return err
	}

	log.Info("Worker shutting down gracefully")
	return nil
}

// refreshFleetMetrics recomputes the fleet-wide 24h metrics view and caches
// the serialized result. The cache entry outlives two refresh intervals so a
// slow run does not leave the dashboard empty.
func refreshFleetMetrics(ctx context.Context, svc service.Service, redisClient cache.RedisClient) error {
	view, err := svc.Metrics(ctx, "", "24h", time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "failed to compute fleet metrics")
	}

	data, err := json.Marshal(view)
	if err != nil {
		return errors.Wrap(err, "failed to marshal fleet metrics")
	}

	if err := redisClient.Set(ctx, metricsOverviewCacheKey, string(data), 5*time.Minute); err != nil {
		return errors.Wrap(err, "failed to cache fleet metrics")
	}

	log.WithField("timeline_buckets", len(view.Timeline)).Debug("Fleet metrics refreshed")
	return nil
}
