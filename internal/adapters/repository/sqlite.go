package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/metrics"
)

// SQLiteStore is a Store backed by one SQLite table of bucket rows. Each
// row holds its items as an encoded payload, so a stream is read back by
// decoding its buckets in bucket order.
type SQLiteStore struct {
	db   *sql.DB
	opts options

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path, applies
// migrations and starts the metrics updater.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, opts: o, stopChan: make(chan struct{})}
	metrics.UpdateRepositoryShardCount(1)
	s.startMetricsUpdater(ctx)
	return s, nil
}

const selectLastBucket = `
SELECT id, bucket_number, count, is_full, first_tms, last_tms, created_at, payload
FROM buckets WHERE subject_id = ? AND kind = ?
ORDER BY bucket_number DESC LIMIT 1`

const insertBucket = `
INSERT INTO buckets (id, subject_id, kind, bucket_number, count, is_full, first_tms, last_tms, created_at, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateBucket = `
UPDATE buckets SET count = ?, is_full = ?, first_tms = ?, last_tms = ?, payload = ?
WHERE id = ?`

type row struct {
	meta    BucketMeta
	payload []byte
}

func scanMeta(sc interface{ Scan(...any) error }) (row, error) {
	var (
		r         row
		full      int
		first     sql.NullFloat64
		last      sql.NullFloat64
		createdAt int64
	)
	if err := sc.Scan(&r.meta.BucketRef, &r.meta.BucketNumber, &r.meta.Count, &full, &first, &last, &createdAt, &r.payload); err != nil {
		return row{}, err
	}
	r.meta.IsFull = full != 0
	if first.Valid {
		r.meta.FirstTms = &first.Float64
	}
	if last.Valid {
		r.meta.LastTms = &last.Float64
	}
	r.meta.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}

func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// appendStream writes items into the subject's stream inside one
// transaction, topping up the last bucket before opening new ones.
func appendStream[T any](ctx context.Context, s *SQLiteStore, subjectID string, kind Kind, items []T, tms func(T) float64) (meta BucketMeta, err error) {
	defer observe(time.Now(), metrics.RecordRepositoryAppendLatency)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BucketMeta{}, fmt.Errorf("append %s: begin: %w", kind, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cur *bucket[T]
	r, err := scanMeta(tx.QueryRowContext(ctx, selectLastBucket, subjectID, string(kind)))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return BucketMeta{}, fmt.Errorf("append %s: load bucket: %w", kind, err)
	default:
		existing, derr := decodePayload[T](r.payload)
		if derr != nil {
			return BucketMeta{}, fmt.Errorf("append %s: %w", kind, derr)
		}
		cur = &bucket[T]{meta: r.meta, items: existing}
	}

	now := s.opts.now()
	var opened []*bucket[T]
	open := func(number int) *bucket[T] {
		b := newBucket[T](number, now)
		opened = append(opened, b)
		return b
	}
	touched := spill(cur, items, tms, s.opts.capacity[kind], open)

	for _, b := range touched {
		payload, perr := encodePayload(b.items)
		if perr != nil {
			return BucketMeta{}, fmt.Errorf("append %s: %w", kind, perr)
		}
		m := b.meta
		if b == cur {
			_, err = tx.ExecContext(ctx, updateBucket,
				m.Count, boolInt(m.IsFull), nullable(m.FirstTms), nullable(m.LastTms), payload, m.BucketRef)
		} else {
			_, err = tx.ExecContext(ctx, insertBucket,
				m.BucketRef, subjectID, string(kind), m.BucketNumber, m.Count, boolInt(m.IsFull),
				nullable(m.FirstTms), nullable(m.LastTms), m.CreatedAt.UnixNano(), payload)
		}
		if err != nil {
			return BucketMeta{}, fmt.Errorf("append %s: write bucket %d: %w", kind, m.BucketNumber, err)
		}
	}

	var total int
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM buckets WHERE subject_id = ? AND kind = ?`,
		subjectID, string(kind)).Scan(&total); err != nil {
		return BucketMeta{}, fmt.Errorf("append %s: total: %w", kind, err)
	}
	if err = tx.Commit(); err != nil {
		return BucketMeta{}, fmt.Errorf("append %s: commit: %w", kind, err)
	}

	rollovers := len(opened)
	if cur == nil && rollovers > 0 {
		rollovers--
	}
	recordRollovers(kind, rollovers)

	if len(touched) > 0 {
		meta = touched[len(touched)-1].meta
	}
	meta.Total = total
	return meta, nil
}

// loadStream decodes every bucket of the subject's stream in bucket order.
func loadStream[T any](ctx context.Context, s *SQLiteStore, subjectID string, kind Kind) ([]T, error) {
	defer observe(time.Now(), metrics.RecordRepositoryQueryLatency)

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM buckets WHERE subject_id = ? AND kind = ? ORDER BY bucket_number`,
		subjectID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("load %s: scan: %w", kind, err)
		}
		items, err := decodePayload[T](payload)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		out = append(out, items...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	return out, nil
}

// AppendSamples implements Store.
func (s *SQLiteStore) AppendSamples(ctx context.Context, subjectID string, samples []model.PointerSample) (BucketMeta, error) {
	return appendStream(ctx, s, subjectID, KindSamples, samples, sampleTms)
}

// Samples implements Store.
func (s *SQLiteStore) Samples(ctx context.Context, subjectID string, round int) ([]model.PointerSample, error) {
	all, err := loadStream[model.PointerSample](ctx, s, subjectID, KindSamples)
	if err != nil {
		return nil, err
	}
	return orderSamples(all, round), nil
}

// AppendAttempts implements Store.
func (s *SQLiteStore) AppendAttempts(ctx context.Context, subjectID string, attempts []model.Attempt) (BucketMeta, error) {
	return appendStream(ctx, s, subjectID, KindAttempts, attempts, attemptTms)
}

// Attempts implements Store.
func (s *SQLiteStore) Attempts(ctx context.Context, subjectID string, round int) ([]model.Attempt, error) {
	all, err := loadStream[model.Attempt](ctx, s, subjectID, KindAttempts)
	if err != nil {
		return nil, err
	}
	return orderAttempts(all, round), nil
}

// AppendInteractions implements Store.
func (s *SQLiteStore) AppendInteractions(ctx context.Context, subjectID string, xs []model.GlobalInteraction) (BucketMeta, error) {
	return appendStream(ctx, s, subjectID, KindInteractions, xs, interactionTms)
}

// Interactions implements Store.
func (s *SQLiteStore) Interactions(ctx context.Context, subjectID string) ([]model.GlobalInteraction, error) {
	all, err := loadStream[model.GlobalInteraction](ctx, s, subjectID, KindInteractions)
	if err != nil {
		return nil, err
	}
	return orderInteractions(all), nil
}

// PurgeBefore implements Store.
func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM buckets WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return int(n), nil
}

// Subjects implements Store.
func (s *SQLiteStore) Subjects(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT subject_id) FROM buckets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return n, nil
}

// Close stops the metrics updater and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if n, err := s.Subjects(ctx); err == nil {
					metrics.UpdateRepositorySubjects(n)
					metrics.UpdateRepositoryShardSubjects("shard_0", n)
				}
			}
		}
	}()
}
