package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/connections-insights/internal/db"
	"github.com/sells-group/connections-insights/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"put_scratch": `INSERT INTO scratch (key, data, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
	"get_scratch":      `SELECT data FROM scratch WHERE key = $1 AND expires_at > now()`,
	"record_prompt":    `INSERT INTO prompts (id, prompt, response, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
	"increment_status": `UPDATE processing_status SET completed_steps = completed_steps + 1 WHERE id = $1`,
	"receive_claim": `UPDATE queue_messages
		SET receive_count = receive_count + 1, receipt_handle = $1, visible_at = $2
		WHERE id = $3 AND visible_at <= $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scratch (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prompts (
	id         TEXT PRIMARY KEY,
	prompt     TEXT NOT NULL,
	response   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_status (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	file_type       TEXT NOT NULL,
	completed_steps INTEGER NOT NULL DEFAULT 0,
	total_steps     INTEGER NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ,
	error_message   TEXT
);

CREATE TABLE IF NOT EXISTS news (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	hidden     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS queue_messages (
	id             TEXT PRIMARY KEY,
	queue          TEXT NOT NULL,
	group_key      TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL,
	receive_count  INTEGER NOT NULL DEFAULT 0,
	receipt_handle TEXT,
	visible_at     TIMESTAMPTZ NOT NULL,
	enqueued_at    TIMESTAMPTZ NOT NULL,
	dead           BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_scratch_expires_at ON scratch(expires_at);
CREATE INDEX IF NOT EXISTS idx_prompts_expires_at ON prompts(expires_at);
CREATE INDEX IF NOT EXISTS idx_queue_messages_queue ON queue_messages(queue, dead, visible_at);
CREATE INDEX IF NOT EXISTS idx_news_created_at ON news(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- scratch ---

func (s *PostgresStore) PutScratch(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scratch (key, data, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		key, data, time.Now().UTC().Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put scratch %s", key)
}

func (s *PostgresStore) GetScratch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM scratch WHERE key = $1 AND expires_at > now()`, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scratch %s", key)
	}
	return data, nil
}

func (s *PostgresStore) DeleteScratch(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM scratch WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete scratch %s", key)
}

func (s *PostgresStore) DeleteExpiredScratch(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scratch WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired scratch")
	}
	return int(tag.RowsAffected()), nil
}

// --- settings ---

func (s *PostgresStore) GetN(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT value::int FROM settings WHERE key = 'N'`).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultN, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: get N")
	}
	return n, nil
}

func (s *PostgresStore) SetN(ctx context.Context, n int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ('N', $1::text)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, n)
	return eris.Wrap(err, "postgres: set N")
}

// --- prompt audit ---

func (s *PostgresStore) RecordPrompt(ctx context.Context, id, prompt, response string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO prompts (id, prompt, response, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		id+uuid.New().String(), prompt, response, now, now.Add(PromptTTL),
	)
	return eris.Wrapf(err, "postgres: record prompt %s", id)
}

func (s *PostgresStore) DeleteExpiredPrompts(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM prompts WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired prompts")
	}
	return int(tag.RowsAffected()), nil
}

// --- processing status ---

func (s *PostgresStore) CreateStatus(ctx context.Context, st model.ProcessingStatus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processing_status (id, file_name, file_type, completed_steps, total_steps, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.FileName, st.FileType, st.CompletedSteps, st.TotalSteps, st.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: create status %s", st.ID)
}

func (s *PostgresStore) IncrementStatusStep(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processing_status SET completed_steps = completed_steps + 1 WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("status not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CompleteStatus(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE processing_status SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`, id)
	return eris.Wrapf(err, "postgres: complete status %s", id)
}

func (s *PostgresStore) FailStatus(ctx context.Context, id, message string) error {
	if len(message) > MaxErrorLength {
		message = message[:MaxErrorLength]
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE processing_status SET error_message = $1, ended_at = now() WHERE id = $2`,
		message, id)
	return eris.Wrapf(err, "postgres: fail status %s", id)
}

func (s *PostgresStore) GetStatus(ctx context.Context, id string) (*model.ProcessingStatus, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, file_name, file_type, completed_steps, total_steps, started_at, ended_at, error_message
		 FROM processing_status WHERE id = $1`, id)
	st, err := scanPgStatus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get status %s", id)
	}
	return st, nil
}

func (s *PostgresStore) ListStatuses(ctx context.Context) ([]model.ProcessingStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, file_type, completed_steps, total_steps, started_at, ended_at, error_message
		 FROM processing_status ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list statuses")
	}
	defer rows.Close()

	var out []model.ProcessingStatus
	for rows.Next() {
		st, err := scanPgStatus(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan status")
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClearStatuses(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processing_status`)
	return eris.Wrap(err, "postgres: clear statuses")
}

func scanPgStatus(row pgx.Row) (*model.ProcessingStatus, error) {
	var st model.ProcessingStatus
	var ended *time.Time
	var errMsg *string
	if err := row.Scan(&st.ID, &st.FileName, &st.FileType, &st.CompletedSteps,
		&st.TotalSteps, &st.StartedAt, &ended, &errMsg); err != nil {
		return nil, err
	}
	st.EndedAt = ended
	if errMsg != nil {
		st.ErrorMessage = *errMsg
	}
	return &st, nil
}

// --- news ---

func (s *PostgresStore) SaveNews(ctx context.Context, rec model.NewsRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal news")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO news (id, record, hidden) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET record = excluded.record, hidden = excluded.hidden`,
		rec.ID, data, rec.Hidden,
	)
	return eris.Wrapf(err, "postgres: save news %s", rec.ID)
}

func (s *PostgresStore) GetNews(ctx context.Context, id string) (*model.NewsRecord, error) {
	var data []byte
	var hidden bool
	err := s.pool.QueryRow(ctx, `SELECT record, hidden FROM news WHERE id = $1`, id).Scan(&data, &hidden)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get news %s", id)
	}
	var rec model.NewsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: decode news")
	}
	rec.Hidden = hidden
	return &rec, nil
}

func (s *PostgresStore) ListNews(ctx context.Context, includeHidden bool) ([]model.NewsRecord, error) {
	query := `SELECT record, hidden FROM news`
	if !includeHidden {
		query += ` WHERE NOT hidden`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list news")
	}
	defer rows.Close()

	var out []model.NewsRecord
	for rows.Next() {
		var data []byte
		var hidden bool
		if err := rows.Scan(&data, &hidden); err != nil {
			return nil, eris.Wrap(err, "postgres: scan news")
		}
		var rec model.NewsRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: decode news")
		}
		rec.Hidden = hidden
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HideNews(ctx context.Context, id string, hidden bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE news SET hidden = $1 WHERE id = $2`, hidden, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: hide news %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("news not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteNews(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM news WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete news %s", id)
}

func (s *PostgresStore) PurgeNews(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM news`)
	return eris.Wrap(err, "postgres: purge news")
}

// --- queues ---

func (s *PostgresStore) Enqueue(ctx context.Context, queue, group, body string) (string, error) {
	var existing string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM queue_messages
		 WHERE queue = $1 AND body = $2 AND NOT dead AND enqueued_at > $3`,
		queue, body, time.Now().UTC().Add(-DedupWindow),
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", eris.Wrap(err, "postgres: enqueue dedup check")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO queue_messages (id, queue, group_key, body, visible_at, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, queue, group, body, now, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: enqueue")
	}
	return id, nil
}

func (s *PostgresStore) Receive(ctx context.Context, queue string, visibility time.Duration, maxReceives int) (*model.QueueMessage, error) {
	for {
		now := time.Now().UTC()

		row := s.pool.QueryRow(ctx,
			`SELECT id, body, group_key, receive_count, enqueued_at
			 FROM queue_messages m
			 WHERE queue = $1 AND NOT dead AND visible_at <= $2
			   AND (group_key = '' OR NOT EXISTS (
			       SELECT 1 FROM queue_messages f
			       WHERE f.queue = m.queue AND f.group_key = m.group_key
			         AND NOT f.dead AND f.visible_at > $2))
			 ORDER BY enqueued_at
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			queue, now,
		)

		var msg model.QueueMessage
		err := row.Scan(&msg.ID, &msg.Body, &msg.GroupKey, &msg.ReceiveCount, &msg.EnqueuedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "postgres: receive")
		}

		if msg.ReceiveCount+1 > maxReceives {
			if _, err := s.pool.Exec(ctx,
				`UPDATE queue_messages SET dead = TRUE WHERE id = $1`, msg.ID); err != nil {
				return nil, eris.Wrap(err, "postgres: dead-letter")
			}
			continue
		}

		receipt := uuid.New().String()
		tag, err := s.pool.Exec(ctx,
			`UPDATE queue_messages
			 SET receive_count = receive_count + 1, receipt_handle = $1, visible_at = $2
			 WHERE id = $3 AND visible_at <= $4`,
			receipt, now.Add(visibility), msg.ID, now,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: claim message")
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		msg.ReceiveCount++
		msg.ReceiptHandle = receipt
		return &msg, nil
	}
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, queue, receiptHandle string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue_messages WHERE queue = $1 AND receipt_handle = $2`,
		queue, receiptHandle)
	if err != nil {
		return eris.Wrap(err, "postgres: delete message")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("message not found: %s", receiptHandle)
	}
	return nil
}

func (s *PostgresStore) ReturnMessage(ctx context.Context, queue, receiptHandle string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue_messages SET visible_at = now() WHERE queue = $1 AND receipt_handle = $2`,
		queue, receiptHandle)
	if err != nil {
		return eris.Wrap(err, "postgres: return message")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("message not found: %s", receiptHandle)
	}
	return nil
}

func (s *PostgresStore) ListDeadLetters(ctx context.Context, queue string) ([]model.QueueMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body, group_key, receive_count, enqueued_at
		 FROM queue_messages WHERE queue = $1 AND dead ORDER BY enqueued_at`, queue)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dead letters")
	}
	defer rows.Close()

	var out []model.QueueMessage
	for rows.Next() {
		var msg model.QueueMessage
		if err := rows.Scan(&msg.ID, &msg.Body, &msg.GroupKey, &msg.ReceiveCount, &msg.EnqueuedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dead letter")
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
