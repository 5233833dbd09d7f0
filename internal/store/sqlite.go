package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/connections-insights/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scratch (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prompts (
	id         TEXT PRIMARY KEY,
	prompt     TEXT NOT NULL,
	response   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_status (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	file_type       TEXT NOT NULL,
	completed_steps INTEGER NOT NULL DEFAULT 0,
	total_steps     INTEGER NOT NULL,
	started_at      DATETIME NOT NULL,
	ended_at        DATETIME,
	error_message   TEXT
);

CREATE TABLE IF NOT EXISTS news (
	id         TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	hidden     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS queue_messages (
	id             TEXT PRIMARY KEY,
	queue          TEXT NOT NULL,
	group_key      TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL,
	receive_count  INTEGER NOT NULL DEFAULT 0,
	receipt_handle TEXT,
	visible_at     DATETIME NOT NULL,
	enqueued_at    DATETIME NOT NULL,
	dead           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_scratch_expires_at ON scratch(expires_at);
CREATE INDEX IF NOT EXISTS idx_prompts_expires_at ON prompts(expires_at);
CREATE INDEX IF NOT EXISTS idx_queue_messages_queue ON queue_messages(queue, dead, visible_at);
CREATE INDEX IF NOT EXISTS idx_news_created_at ON news(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- scratch ---

func (s *SQLiteStore) PutScratch(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scratch (key, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		key, data, time.Now().UTC().Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: put scratch %s", key)
}

func (s *SQLiteStore) GetScratch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM scratch WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scratch %s", key)
	}
	return data, nil
}

func (s *SQLiteStore) DeleteScratch(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scratch WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete scratch %s", key)
}

func (s *SQLiteStore) DeleteExpiredScratch(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scratch WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired scratch")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- settings ---

func (s *SQLiteStore) GetN(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'N'`).Scan(&n)
	if err == sql.ErrNoRows {
		return DefaultN, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: get N")
	}
	return n, nil
}

func (s *SQLiteStore) SetN(ctx context.Context, n int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ('N', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, n)
	return eris.Wrap(err, "sqlite: set N")
}

// --- prompt audit ---

func (s *SQLiteStore) RecordPrompt(ctx context.Context, id, prompt, response string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, prompt, response, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		id+uuid.New().String(), prompt, response, now, now.Add(PromptTTL),
	)
	return eris.Wrapf(err, "sqlite: record prompt %s", id)
}

func (s *SQLiteStore) DeleteExpiredPrompts(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired prompts")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- processing status ---

func (s *SQLiteStore) CreateStatus(ctx context.Context, st model.ProcessingStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_status (id, file_name, file_type, completed_steps, total_steps, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.FileName, st.FileType, st.CompletedSteps, st.TotalSteps, st.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create status %s", st.ID)
}

func (s *SQLiteStore) IncrementStatusStep(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processing_status SET completed_steps = completed_steps + 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment status %s", id)
	}
	return checkRowsAffected(res, "status", id)
}

func (s *SQLiteStore) CompleteStatus(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processing_status SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete status %s", id)
	}
	_ = res
	return nil
}

func (s *SQLiteStore) FailStatus(ctx context.Context, id, message string) error {
	if len(message) > MaxErrorLength {
		message = message[:MaxErrorLength]
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE processing_status SET error_message = ?, ended_at = ? WHERE id = ?`,
		message, time.Now().UTC(), id)
	return eris.Wrapf(err, "sqlite: fail status %s", id)
}

func (s *SQLiteStore) GetStatus(ctx context.Context, id string) (*model.ProcessingStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, file_type, completed_steps, total_steps, started_at, ended_at, error_message
		 FROM processing_status WHERE id = ?`, id)
	st, err := scanStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get status %s", id)
	}
	return st, nil
}

func (s *SQLiteStore) ListStatuses(ctx context.Context) ([]model.ProcessingStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, file_type, completed_steps, total_steps, started_at, ended_at, error_message
		 FROM processing_status ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list statuses")
	}
	defer rows.Close()

	var out []model.ProcessingStatus
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status")
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearStatuses(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM processing_status`)
	return eris.Wrap(err, "sqlite: clear statuses")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*model.ProcessingStatus, error) {
	var st model.ProcessingStatus
	var ended sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&st.ID, &st.FileName, &st.FileType, &st.CompletedSteps,
		&st.TotalSteps, &st.StartedAt, &ended, &errMsg); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		st.EndedAt = &t
	}
	st.ErrorMessage = errMsg.String
	return &st, nil
}

// --- news ---

func (s *SQLiteStore) SaveNews(ctx context.Context, rec model.NewsRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal news")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO news (id, record, hidden) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record = excluded.record, hidden = excluded.hidden`,
		rec.ID, string(data), boolToInt(rec.Hidden),
	)
	return eris.Wrapf(err, "sqlite: save news %s", rec.ID)
}

func (s *SQLiteStore) GetNews(ctx context.Context, id string) (*model.NewsRecord, error) {
	var data string
	var hidden int
	err := s.db.QueryRowContext(ctx, `SELECT record, hidden FROM news WHERE id = ?`, id).Scan(&data, &hidden)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get news %s", id)
	}
	return decodeNews(data, hidden)
}

func (s *SQLiteStore) ListNews(ctx context.Context, includeHidden bool) ([]model.NewsRecord, error) {
	query := `SELECT record, hidden FROM news`
	if !includeHidden {
		query += ` WHERE hidden = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list news")
	}
	defer rows.Close()

	var out []model.NewsRecord
	for rows.Next() {
		var data string
		var hidden int
		if err := rows.Scan(&data, &hidden); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan news")
		}
		rec, err := decodeNews(data, hidden)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HideNews(ctx context.Context, id string, hidden bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE news SET hidden = ? WHERE id = ?`, boolToInt(hidden), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: hide news %s", id)
	}
	return checkRowsAffected(res, "news", id)
}

func (s *SQLiteStore) DeleteNews(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete news %s", id)
}

func (s *SQLiteStore) PurgeNews(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM news`)
	return eris.Wrap(err, "sqlite: purge news")
}

func decodeNews(data string, hidden int) (*model.NewsRecord, error) {
	var rec model.NewsRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode news")
	}
	rec.Hidden = hidden != 0
	return &rec, nil
}

// --- queues ---

func (s *SQLiteStore) Enqueue(ctx context.Context, queue, group, body string) (string, error) {
	// Content dedup: identical live payloads within the window collapse
	// into one message.
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM queue_messages
		 WHERE queue = ? AND body = ? AND dead = 0 AND enqueued_at > ?`,
		queue, body, time.Now().UTC().Add(-DedupWindow),
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", eris.Wrap(err, "sqlite: enqueue dedup check")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queue_messages (id, queue, group_key, body, visible_at, enqueued_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, queue, group, body, now, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: enqueue")
	}
	return id, nil
}

func (s *SQLiteStore) Receive(ctx context.Context, queue string, visibility time.Duration, maxReceives int) (*model.QueueMessage, error) {
	for {
		now := time.Now().UTC()

		// Oldest visible message whose group has nothing in flight.
		row := s.db.QueryRowContext(ctx,
			`SELECT id, body, group_key, receive_count, enqueued_at
			 FROM queue_messages m
			 WHERE queue = ? AND dead = 0 AND visible_at <= ?
			   AND (group_key = '' OR NOT EXISTS (
			       SELECT 1 FROM queue_messages f
			       WHERE f.queue = m.queue AND f.group_key = m.group_key
			         AND f.dead = 0 AND f.visible_at > ?))
			 ORDER BY enqueued_at
			 LIMIT 1`,
			queue, now, now,
		)

		var msg model.QueueMessage
		err := row.Scan(&msg.ID, &msg.Body, &msg.GroupKey, &msg.ReceiveCount, &msg.EnqueuedAt)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: receive")
		}

		// Past the receive budget: dead-letter and try the next message.
		if msg.ReceiveCount+1 > maxReceives {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE queue_messages SET dead = 1 WHERE id = ?`, msg.ID); err != nil {
				return nil, eris.Wrap(err, "sqlite: dead-letter")
			}
			continue
		}

		receipt := uuid.New().String()
		res, err := s.db.ExecContext(ctx,
			`UPDATE queue_messages
			 SET receive_count = receive_count + 1, receipt_handle = ?, visible_at = ?
			 WHERE id = ? AND visible_at <= ?`,
			receipt, now.Add(visibility), msg.ID, now,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: claim message")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Lost the claim race, look again.
			continue
		}

		msg.ReceiveCount++
		msg.ReceiptHandle = receipt
		return &msg, nil
	}
}

func (s *SQLiteStore) DeleteMessage(ctx context.Context, queue, receiptHandle string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_messages WHERE queue = ? AND receipt_handle = ?`,
		queue, receiptHandle)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete message")
	}
	return checkRowsAffected(res, "message", receiptHandle)
}

func (s *SQLiteStore) ReturnMessage(ctx context.Context, queue, receiptHandle string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_messages SET visible_at = ? WHERE queue = ? AND receipt_handle = ?`,
		time.Now().UTC(), queue, receiptHandle)
	if err != nil {
		return eris.Wrap(err, "sqlite: return message")
	}
	return checkRowsAffected(res, "message", receiptHandle)
}

func (s *SQLiteStore) ListDeadLetters(ctx context.Context, queue string) ([]model.QueueMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body, group_key, receive_count, enqueued_at
		 FROM queue_messages WHERE queue = ? AND dead = 1 ORDER BY enqueued_at`, queue)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dead letters")
	}
	defer rows.Close()

	var out []model.QueueMessage
	for rows.Next() {
		var msg model.QueueMessage
		if err := rows.Scan(&msg.ID, &msg.Body, &msg.GroupKey, &msg.ReceiveCount, &msg.EnqueuedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dead letter")
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// --- helpers ---

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
