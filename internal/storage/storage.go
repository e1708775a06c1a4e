// AngelaMos | 2026
// storage.go

// Package storage holds the content stores thesis PDFs live in. The
// database only ever keeps the public URL a store hands back.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/tfg-registry/internal/config"
)

type FileStore interface {
	// Upload stores data and returns the URL it is reachable at.
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
	Backend() string
}

// Recorder receives per-call metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveStorage(backend, op string, start time.Time, err error)
	SetBreakerState(name string, state float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStorage(string, string, time.Time, error) {}
func (nopRecorder) SetBreakerState(string, float64)                {}

const (
	opUpload = "upload"
	opFetch  = "fetch"
	opDelete = "delete"
)

// New builds the store selected by cfg.Backend.
func New(
	ctx context.Context,
	cfg config.StorageConfig,
	maxBytes int64,
	logger *slog.Logger,
	rec Recorder,
) (FileStore, error) {
	switch cfg.Backend {
	case config.StorageBackendPinata:
		return NewPinataStore(PinataOptions{
			Config:   cfg.Pinata,
			Timeout:  cfg.Timeout,
			MaxBytes: maxBytes,
			Logger:   logger,
			Recorder: rec,
		}), nil
	case config.StorageBackendS3:
		return NewS3Store(ctx, S3Options{
			Config:   cfg.S3,
			Timeout:  cfg.Timeout,
			MaxBytes: maxBytes,
			Logger:   logger,
			Recorder: rec,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
