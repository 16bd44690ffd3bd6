// Package sequence allocates consultation numbers from an atomic remote
// counter, degrading to a local label when the counter is unreachable.
package sequence

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"lead-intake/internal/common/crm"
	"lead-intake/internal/common/database"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/intake/errorlog"
	"lead-intake/internal/models"
)

// Backend returns the next counter value. Concurrent callers must never see
// the same value.
type Backend interface {
	Next(ctx context.Context) (int64, error)
	Name() string
}

type PostgresBackend struct {
	db *database.PostgresClient
}

func NewPostgresBackend(db *database.PostgresClient) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Next(ctx context.Context) (int64, error) {
	var n int64
	if err := b.db.QueryRow(ctx, `SELECT next_consultation_number()`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next_consultation_number: %w", err)
	}
	return n, nil
}

type RedisBackend struct {
	client *database.RedisClient
	key    string
}

func NewRedisBackend(client *database.RedisClient, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Next(ctx context.Context) (int64, error) {
	n, err := b.client.Incr(ctx, b.key)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", b.key, err)
	}
	return n, nil
}

// Scanner finds the highest number already handed out locally.
type Scanner interface {
	HighestNumber(ctx context.Context, prefix string) (int64, error)
}

// Allocation is one allocated consultation number.
type Allocation struct {
	Label    string
	Value    int64 // 0 for temporary labels
	Degraded bool
}

type Config struct {
	Prefix string
	// Scan, when set, is tried before the timestamp label on degraded
	// allocations.
	Scan Scanner
}

type Allocator struct {
	backend  Backend
	prefix   string
	scan     Scanner
	errorLog errorlog.Sink
	logger   logger.Logger

	mu           sync.Mutex
	lastFallback int64

	now     func() time.Time
	randomN func(n int) int
}

func NewAllocator(backend Backend, cfg Config, sink errorlog.Sink, log logger.Logger) *Allocator {
	return &Allocator{
		backend:  backend,
		prefix:   cfg.Prefix,
		scan:     cfg.Scan,
		errorLog: sink,
		logger:   log.WithFields(map[string]interface{}{"component": "sequence", "backend": backend.Name()}),
		now:      time.Now,
		randomN:  rand.IntN,
	}
}

// Allocate returns the next consultation number. It never fails: when the
// backend errors the result is marked Degraded and an error-log entry is
// written. contact and source only annotate that entry.
func (a *Allocator) Allocate(ctx context.Context, contact models.Contact, source models.AcquisitionSource) Allocation {
	n, err := a.backend.Next(ctx)
	if err == nil {
		return Allocation{Label: a.prefix + strconv.FormatInt(n, 10), Value: n}
	}

	alloc, method := a.fallback(ctx)
	a.logger.Warn("consultation number degraded", map[string]interface{}{
		"error":    err.Error(),
		"fallback": alloc.Label,
		"method":   method,
	})
	a.errorLog.Record(ctx, errorlog.Entry{
		ErrorType:          apperrors.ErrCodeNumberGenerationDegraded,
		ConsultationNumber: alloc.Label,
		Phone:              contact.Phone,
		Residence:          contact.Residence,
		AcquisitionSource:  string(source),
		Message:            err.Error(),
		Details: map[string]interface{}{
			"backend": a.backend.Name(),
			"method":  method,
		},
	})
	return alloc
}

// fallback scans the local cache when configured, else builds a temporary
// label. Scanned numbers carry models.LocalNumberSuffix so the counter can
// never issue the same label once it recovers. They are unique within this
// process only.
func (a *Allocator) fallback(ctx context.Context) (Allocation, string) {
	if a.scan != nil {
		highest, err := a.scan.HighestNumber(ctx, a.prefix)
		if err == nil && highest > 0 {
			a.mu.Lock()
			if highest < a.lastFallback {
				highest = a.lastFallback
			}
			n := highest + 1
			a.lastFallback = n
			a.mu.Unlock()
			label := a.prefix + strconv.FormatInt(n, 10) + models.LocalNumberSuffix
			return Allocation{Label: label, Value: n, Degraded: true}, "scan"
		}
		if err != nil {
			a.logger.Warn("local number scan failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return Allocation{Label: a.temporaryLabel(), Degraded: true}, "timestamp"
}

// temporaryLabel is <prefix>T<yyMMddHHmmss><3 random digits>.
func (a *Allocator) temporaryLabel() string {
	stamp := a.now().In(crm.Seoul()).Format("060102150405")
	return fmt.Sprintf("%sT%s%03d", a.prefix, stamp, a.randomN(1000))
}
