package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/speakwise/speakwise/internal/store"
	"github.com/speakwise/speakwise/pkg/types"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed persistence layer. All methods are safe for
// concurrent use; per-session write serialisation is the caller's concern.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the database at dsn,
// and runs [Migrate] to ensure all tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSession implements store.SessionStore.
func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	return s.saveWhole(ctx, sess, "create session")
}

// SaveSession implements store.SessionStore. The session row is upserted and
// the turn list rewritten in one transaction, so the last writer wins whole.
func (s *Store) SaveSession(ctx context.Context, sess *types.Session) error {
	return s.saveWhole(ctx, sess, "save session")
}

func (s *Store) saveWhole(ctx context.Context, sess *types.Session, op string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session store: %s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO sessions (id, user_id, title, correction_count, final_report, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    title            = EXCLUDED.title,
		    correction_count = EXCLUDED.correction_count,
		    final_report     = EXCLUDED.final_report,
		    updated_at       = EXCLUDED.updated_at`

	if _, err := tx.Exec(ctx, upsert,
		sess.ID, sess.UserID, sess.Title, sess.CorrectionCount,
		sess.FinalReport, sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		return fmt.Errorf("session store: %s: upsert: %w", op, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM turns WHERE session_id = $1`, sess.ID); err != nil {
		return fmt.Errorf("session store: %s: clear turns: %w", op, err)
	}

	if len(sess.Turns) > 0 {
		rows := make([][]any, len(sess.Turns))
		for i, t := range sess.Turns {
			rows[i] = []any{sess.ID, i, string(t.Role), t.Text, t.Audio, t.CreatedAt}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"turns"},
			[]string{"session_id", "seq", "role", "text", "audio", "created_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("session store: %s: copy turns: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session store: %s: commit: %w", op, err)
	}
	return nil
}

// GetSession implements store.SessionStore.
func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	const q = `
		SELECT id, user_id, title, correction_count, final_report, created_at, updated_at
		FROM   sessions
		WHERE  id = $1`

	var sess types.Session
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&sess.ID, &sess.UserID, &sess.Title, &sess.CorrectionCount,
		&sess.FinalReport, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: get: %w", err)
	}

	const turnsQ = `
		SELECT role, text, audio, created_at
		FROM   turns
		WHERE  session_id = $1
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, turnsQ, id)
	if err != nil {
		return nil, fmt.Errorf("session store: get turns: %w", err)
	}
	sess.Turns, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Turn, error) {
		var (
			t    types.Turn
			role string
		)
		if err := row.Scan(&role, &t.Text, &t.Audio, &t.CreatedAt); err != nil {
			return types.Turn{}, err
		}
		t.Role = types.Role(role)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session store: scan turns: %w", err)
	}
	return &sess, nil
}

// ListSessions implements store.SessionStore. Turn histories are not loaded.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]types.Session, error) {
	const q = `
		SELECT id, user_id, title, correction_count, final_report, created_at, updated_at
		FROM   sessions
		WHERE  user_id = $1
		ORDER  BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Session, error) {
		var sess types.Session
		err := row.Scan(
			&sess.ID, &sess.UserID, &sess.Title, &sess.CorrectionCount,
			&sess.FinalReport, &sess.CreatedAt, &sess.UpdatedAt,
		)
		return sess, err
	})
	if err != nil {
		return nil, fmt.Errorf("session store: scan sessions: %w", err)
	}
	if sessions == nil {
		sessions = []types.Session{}
	}
	return sessions, nil
}

// DeleteSession implements store.SessionStore. Turns cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session store: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SaveSubmission implements store.PracticeStore.
func (s *Store) SaveSubmission(ctx context.Context, sub *types.PracticeSubmission) error {
	var metrics []byte
	if sub.Metrics != nil {
		var err error
		metrics, err = json.Marshal(sub.Metrics)
		if err != nil {
			return fmt.Errorf("practice store: encode metrics: %w", err)
		}
	}

	const q = `
		INSERT INTO practice_submissions
		    (id, user_id, session_id, topic, transcript, metrics, audio_ref, advice, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := s.pool.Exec(ctx, q,
		sub.ID, sub.UserID, sub.SessionID, sub.Topic,
		sub.Transcript, metrics, sub.AudioRef, sub.Advice, sub.CreatedAt,
	); err != nil {
		return fmt.Errorf("practice store: save submission: %w", err)
	}
	return nil
}

// ListSubmissions implements store.PracticeStore.
func (s *Store) ListSubmissions(ctx context.Context, userID string) ([]types.PracticeSubmission, error) {
	const q = `
		SELECT id, user_id, session_id, topic, transcript, metrics, audio_ref, advice, created_at
		FROM   practice_submissions
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("practice store: list: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.PracticeSubmission, error) {
		var (
			sub     types.PracticeSubmission
			metrics []byte
		)
		if err := row.Scan(
			&sub.ID, &sub.UserID, &sub.SessionID, &sub.Topic,
			&sub.Transcript, &metrics, &sub.AudioRef, &sub.Advice, &sub.CreatedAt,
		); err != nil {
			return types.PracticeSubmission{}, err
		}
		if len(metrics) > 0 {
			sub.Metrics = &types.LexicalMetrics{}
			if err := json.Unmarshal(metrics, sub.Metrics); err != nil {
				return types.PracticeSubmission{}, fmt.Errorf("decode metrics: %w", err)
			}
		}
		return sub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("practice store: scan submissions: %w", err)
	}
	if subs == nil {
		subs = []types.PracticeSubmission{}
	}
	return subs, nil
}
