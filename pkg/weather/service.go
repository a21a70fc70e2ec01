package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/heliowatch/heliowatch-go/internal/config"
	"github.com/heliowatch/heliowatch-go/internal/models"
)

// Provider is the interface the detection and forecast services consume.
// Implementations must be safe for concurrent use.
type Provider interface {
	GetCurrent(ctx context.Context, systemID string) (*models.WeatherSample, error)
	GetForecast(ctx context.Context, systemID string, hours int) ([]models.WeatherSample, error)
	GetHistory(ctx context.Context, systemID string, from, to time.Time) ([]models.WeatherSample, error)
	HealthCheck(ctx context.Context) error
}

// Service wraps the weather client with circuit breaker protection.
type Service struct {
	client  *Client
	breaker *CircuitBreaker
	logger  *logrus.Logger
}

// NewService creates a weather service backed by the HTTP client.
func NewService(cfg *config.WeatherConfig, logger *logrus.Logger) *Service {
	return &Service{
		client:  NewClient(cfg),
		breaker: NewCircuitBreaker("weather-service", CircuitBreakerConfig{}, logger),
		logger:  logger,
	}
}

// NewServiceWithClient creates a weather service with an explicit client,
// used by tests.
func NewServiceWithClient(client *Client, logger *logrus.Logger) *Service {
	return &Service{
		client:  client,
		breaker: NewCircuitBreaker("weather-service", CircuitBreakerConfig{}, logger),
		logger:  logger,
	}
}

// GetCurrent returns the latest observation for a site.
func (s *Service) GetCurrent(ctx context.Context, systemID string) (*models.WeatherSample, error) {
	var sample *models.WeatherSample
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := s.client.GetCurrent(ctx, systemID)
		if err != nil {
			return err
		}
		sample = &resp.Sample
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch current weather for %s: %w", systemID, err)
	}
	return sample, nil
}

// GetForecast returns hourly forecast samples for a site.
func (s *Service) GetForecast(ctx context.Context, systemID string, hours int) ([]models.WeatherSample, error) {
	var samples []models.WeatherSample
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := s.client.GetForecast(ctx, systemID, hours)
		if err != nil {
			return err
		}
		samples = resp.Samples
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather forecast for %s: %w", systemID, err)
	}
	return samples, nil
}

// GetHistory returns observed samples between from and to.
func (s *Service) GetHistory(ctx context.Context, systemID string, from, to time.Time) ([]models.WeatherSample, error) {
	var samples []models.WeatherSample
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := s.client.GetHistory(ctx, systemID, from, to)
		if err != nil {
			return err
		}
		samples = resp.Samples
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather history for %s: %w", systemID, err)
	}
	return samples, nil
}

// HealthCheck probes the upstream weather service.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.client.HealthCheck(ctx)
		return err
	})
}

// BreakerStats exposes circuit breaker statistics for the health endpoint.
func (s *Service) BreakerStats() CircuitBreakerStats {
	return s.breaker.GetStats()
}

// Close releases resources held by the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}
