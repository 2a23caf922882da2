package persist

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rtsgo/server/internal/system"
	"go.uber.org/zap"
)

// TickStatRepo writes cadence samples to tick_stats.
type TickStatRepo struct {
	db *DB
}

func NewTickStatRepo(db *DB) *TickStatRepo {
	return &TickStatRepo{db: db}
}

// InsertTickStats bulk-copies samples in one round trip.
func (r *TickStatRepo) InsertTickStats(ctx context.Context, samples []system.TickSample) error {
	rows := make([][]any, len(samples))
	for i, s := range samples {
		rows[i] = []any{int64(s.Tick), s.Work.Nanoseconds(), int64(s.Overruns), int32(s.Units), s.At}
	}
	_, err := r.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"tick_stats"},
		[]string{"tick", "work_ns", "overruns", "units", "sampled_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy tick stats: %w", err)
	}
	return nil
}

// Recent returns the newest samples, newest first.
func (r *TickStatRepo) Recent(ctx context.Context, limit int) ([]system.TickSample, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT tick, work_ns, overruns, units, sampled_at
		 FROM tick_stats ORDER BY sampled_at DESC, id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tick stats: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (system.TickSample, error) {
		var (
			s                     system.TickSample
			tick, workNs, overrun int64
			units                 int32
		)
		err := row.Scan(&tick, &workNs, &overrun, &units, &s.At)
		s.Tick = uint64(tick)
		s.Work = time.Duration(workNs)
		s.Overruns = uint64(overrun)
		s.Units = int(units)
		return s, err
	})
}

// TickStatWriter persists a batch of samples.
type TickStatWriter interface {
	InsertTickStats(ctx context.Context, samples []system.TickSample) error
}

// TickStatSink buffers samples from the simulation goroutine and writes them
// in batches from its own goroutine. Record never blocks: when the buffer is
// full the sample is dropped and counted.
type TickStatSink struct {
	w       TickStatWriter
	ch      chan system.TickSample
	batch   int
	flush   time.Duration
	dropped atomic.Uint64
	written atomic.Uint64
	log     *zap.Logger
}

// NewTickStatSink creates a sink holding up to buffer pending samples.
func NewTickStatSink(w TickStatWriter, buffer int, log *zap.Logger) *TickStatSink {
	if buffer < 1 {
		buffer = 1
	}
	return &TickStatSink{
		w:     w,
		ch:    make(chan system.TickSample, buffer),
		batch: max(1, buffer/4),
		flush: 5 * time.Second,
		log:   log,
	}
}

// Record implements system.TickSink.
func (s *TickStatSink) Record(sample system.TickSample) {
	select {
	case s.ch <- sample:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many samples were discarded because the buffer was full.
func (s *TickStatSink) Dropped() uint64 { return s.dropped.Load() }

// Written returns how many samples reached the writer successfully.
func (s *TickStatSink) Written() uint64 { return s.written.Load() }

// Run writes samples until ctx is cancelled, then writes whatever is still
// buffered.
func (s *TickStatSink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flush)
	defer ticker.Stop()

	pending := make([]system.TickSample, 0, s.batch)
	write := func(wctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := s.w.InsertTickStats(wctx, pending); err != nil {
			s.log.Warn("tick stats write failed", zap.Int("samples", len(pending)), zap.Error(err))
		} else {
			s.written.Add(uint64(len(pending)))
		}
		pending = pending[:0]
	}

	for {
		select {
		case sample := <-s.ch:
			pending = append(pending, sample)
			if len(pending) >= s.batch {
				write(ctx)
			}
		case <-ticker.C:
			write(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case sample := <-s.ch:
					pending = append(pending, sample)
				default:
					break drain
				}
			}
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			write(final)
			cancel()
			if d := s.dropped.Load(); d > 0 {
				s.log.Warn("tick stats dropped", zap.Uint64("samples", d))
			}
			return
		}
	}
}
