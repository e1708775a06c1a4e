// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/reference"
	"github.com/carterperez-dev/tfg-registry/internal/tfg"
	"github.com/carterperez-dev/tfg-registry/internal/user"
)

type TFGStats interface {
	Stats(ctx context.Context) (tfg.Stats, error)
}

type UserCounter interface {
	Counts(ctx context.Context, lockAt int) (user.Counts, error)
}

type ReferenceCounter interface {
	Counts(ctx context.Context) (reference.Counts, error)
}

type Handler struct {
	tfgs       TFGStats
	users      UserCounter
	references map[string]ReferenceCounter
	lockAt     int
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	dbPing     func(ctx context.Context) error
	redisPing  func(ctx context.Context) error
	logger     *slog.Logger
}

type HandlerConfig struct {
	TFGs       TFGStats
	Users      UserCounter
	References map[string]ReferenceCounter
	// LockAt is the failed login count at which an account counts as locked.
	LockAt     int
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
	Logger     *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		tfgs:       cfg.TFGs,
		users:      cfg.Users,
		references: cfg.References,
		lockAt:     cfg.LockAt,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		dbPing:     cfg.DBPing,
		redisPing:  cfg.RedisPing,
		logger:     cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetStats)
		r.Get("/stats/system", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

// GetStats reports the registry's content: theses by state, accounts by
// role and reference entries.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	var (
		resp StatsResponse
		refs = make([]reference.Counts, 0, len(h.references))
		keys = make([]string, 0, len(h.references))
	)
	for key := range h.references {
		keys = append(keys, key)
		refs = append(refs, reference.Counts{})
	}

	g, ctx := errgroup.WithContext(r.Context())

	if h.tfgs != nil {
		g.Go(func() error {
			st, err := h.tfgs.Stats(ctx)
			resp.TFGs = st
			return err
		})
	}
	if h.users != nil {
		g.Go(func() error {
			c, err := h.users.Counts(ctx, h.lockAt)
			resp.Users = c
			return err
		})
	}
	for i, key := range keys {
		g.Go(func() error {
			c, err := h.references[key].Counts(ctx)
			refs[i] = c
			return err
		})
	}

	if err := g.Wait(); err != nil {
		h.logger.ErrorContext(r.Context(), "collecting admin stats", "error", err)
		core.Error(w, err)
		return
	}

	resp.References = make(map[string]ReferenceStats, len(keys))
	for i, key := range keys {
		resp.References[key] = ReferenceStats{Total: refs[i].Total, Active: refs[i].Active}
	}

	core.OK(w, resp)
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	core.OK(w, SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: ping(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: ping(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntime(),
	})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntime())
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func readRuntime() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type StatsResponse struct {
	TFGs       tfg.Stats                 `json:"tfgs"`
	Users      user.Counts               `json:"users"`
	References map[string]ReferenceStats `json:"references"`
}

type ReferenceStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
