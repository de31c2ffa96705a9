package service

import (
	"context"
	"errors"
	"math"
	"time"

	"example.com/backstage/services/repeater/internal/cache"
	"example.com/backstage/services/repeater/internal/messaging"
	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"
	"example.com/backstage/services/repeater/internal/search"

	"github.com/sirupsen/logrus"
)

// Pagination bounds. Raw listings are capped harder than correlated history
// because pairing cost grows with page size.
const (
	defaultPageLimit = 50
	maxListingLimit  = 500
	maxHistoryLimit  = 200
)

// Service defines the business logic operations.
//
// Every operation that depends on the current time takes it as an explicit
// parameter so that callers (and tests) control the clock.
type Service interface {
	// Ingestion
	AuthorizeDevice(ctx context.Context, deviceID, presentedKey string) error
	IngestActivity(ctx context.Context, payload *models.ActivityPayload, now time.Time) (*IngestResult, error)

	// Query views
	Status(ctx context.Context, device string, now time.Time) ([]StatusView, error)
	History(ctx context.Context, device string, limit, offset int) (*HistoryView, error)
	Metrics(ctx context.Context, device, period string, now time.Time) (*MetricsView, error)
	ListActivities(ctx context.Context, device string, limit, offset int) (*ActivityPage, error)
}

// service is an implementation of the Service interface
type service struct {
	repo      repository.Repository
	cache     cache.RedisClient
	messaging messaging.ServiceBusClient
	search    search.Client
	log       *logrus.Logger
}

// ServiceConfig holds the configuration for the service
type ServiceConfig struct {
	Repository repository.Repository
	Cache      cache.RedisClient
	Messaging  messaging.ServiceBusClient
	Search     search.Client // optional
	Logger     *logrus.Logger
}

// NewService creates a new service instance
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &service{
		repo:      cfg.Repository,
		cache:     cfg.Cache,
		messaging: cfg.Messaging,
		search:    cfg.Search,
		log:       cfg.Logger,
	}, nil
}

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// clampLimit normalizes a page limit against a hard cap
func clampLimit(limit, max int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > max {
		return max
	}
	return limit
}
