package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite.
// Embeddings are stored as little-endian float32 blobs; ranking happens in
// application memory.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore connected to the given database path.
// The path should be a file path (e.g., "./memory.db") or ":memory:" for an in-memory database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	inMemory := strings.Contains(dbPath, ":memory:")
	if !inMemory {
		// Enable WAL mode for concurrent readers
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InitSchema creates the necessary tables if they don't exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			owner TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_owner_session ON messages(owner, session_id, created_at);

		CREATE TABLE IF NOT EXISTS summaries (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (owner, scope, session_id)
		);

		CREATE TABLE IF NOT EXISTS episodes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			owner TEXT NOT NULL,
			session_id TEXT NOT NULL,
			fact TEXT NOT NULL,
			importance REAL NOT NULL DEFAULT 0.5,
			embedding BLOB,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_episodes_owner_session ON episodes(owner, session_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// AppendMessage stores a message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	prepareMessage(msg)

	query := `
		INSERT INTO messages (id, owner, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.Owner, msg.SessionID, string(msg.Role), msg.Content, formatTimestamp(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// RecentMessages returns the newest messages of a session, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, owner, sessionID string, limit int) ([]Message, error) {
	query := `
		SELECT id, owner, session_id, role, content, created_at
		FROM messages
		WHERE owner = ? AND session_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, owner, sessionID, sqliteLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var role, createdAt string
		if err := rows.Scan(&msg.ID, &msg.Owner, &msg.SessionID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = Role(role)
		msg.CreatedAt, _ = parseTimestamp(createdAt)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CountUserMessages counts user messages of a session, or of the owner when sessionID is empty.
func (s *SQLiteStore) CountUserMessages(ctx context.Context, owner, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE owner = ? AND role = ?`
	args := []any{owner, string(RoleUser)}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user messages: %w", err)
	}

	return count, nil
}

// GetSummary returns the summary stored for the key.
func (s *SQLiteStore) GetSummary(ctx context.Context, owner string, scope Scope, sessionID string) (*Summary, error) {
	if scope == ScopeLifetime {
		sessionID = ""
	}

	query := `
		SELECT id, owner, session_id, scope, text, created_at
		FROM summaries
		WHERE owner = ? AND scope = ? AND session_id = ?
	`

	var sum Summary
	var sc, createdAt string
	err := s.db.QueryRowContext(ctx, query, owner, string(scope), sessionID).
		Scan(&sum.ID, &sum.Owner, &sum.SessionID, &sc, &sum.Text, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	sum.Scope = Scope(sc)
	sum.CreatedAt, _ = parseTimestamp(createdAt)

	return &sum, nil
}

// UpsertSummary replaces the summary for its key in a single statement.
// sum.ID is set to the ID of the stored row, which survives replacement.
func (s *SQLiteStore) UpsertSummary(ctx context.Context, sum *Summary) error {
	prepareSummary(sum)

	query := `
		INSERT INTO summaries (id, owner, session_id, scope, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, scope, session_id)
		DO UPDATE SET text = excluded.text, created_at = excluded.created_at
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, sum.ID, sum.Owner, sum.SessionID, string(sum.Scope), sum.Text, formatTimestamp(sum.CreatedAt)).Scan(&sum.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	return nil
}

// ListSessionSummaries returns the owner's session summaries, newest first.
func (s *SQLiteStore) ListSessionSummaries(ctx context.Context, owner string, limit int) ([]Summary, error) {
	query := `
		SELECT id, owner, session_id, scope, text, created_at
		FROM summaries
		WHERE owner = ? AND scope = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, owner, string(ScopeSession), sqliteLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var sc, createdAt string
		if err := rows.Scan(&sum.ID, &sum.Owner, &sum.SessionID, &sc, &sum.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sum.Scope = Scope(sc)
		sum.CreatedAt, _ = parseTimestamp(createdAt)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}

// AppendEpisode stores a new episode together with its encoded embedding.
func (s *SQLiteStore) AppendEpisode(ctx context.Context, ep *Episode) error {
	prepareEpisode(ep)

	query := `
		INSERT INTO episodes (id, owner, session_id, fact, importance, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, ep.ID, ep.Owner, ep.SessionID, ep.Fact, ep.Importance, encodeVector(ep.Embedding), formatTimestamp(ep.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save episode: %w", err)
	}

	return nil
}

// ListEpisodes loads all episodes in scope, oldest first.
func (s *SQLiteStore) ListEpisodes(ctx context.Context, owner, sessionID string) ([]Episode, error) {
	query := `
		SELECT id, owner, session_id, fact, importance, embedding, created_at
		FROM episodes
		WHERE owner = ?
	`
	args := []any{owner}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC, seq ASC`

	return s.queryEpisodes(ctx, query, args...)
}

// RecentEpisodes returns the newest episodes of a session.
func (s *SQLiteStore) RecentEpisodes(ctx context.Context, owner, sessionID string, limit int) ([]Episode, error) {
	query := `
		SELECT id, owner, session_id, fact, importance, embedding, created_at
		FROM episodes
		WHERE owner = ? AND session_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`

	return s.queryEpisodes(ctx, query, owner, sessionID, sqliteLimit(limit))
}

func (s *SQLiteStore) queryEpisodes(ctx context.Context, query string, args ...any) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var embeddingBlob []byte
		var createdAt string
		if err := rows.Scan(&ep.ID, &ep.Owner, &ep.SessionID, &ep.Fact, &ep.Importance, &embeddingBlob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		ep.Embedding = decodeVector(embeddingBlob)
		ep.CreatedAt, _ = parseTimestamp(createdAt)
		episodes = append(episodes, ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}

	return episodes, nil
}

// DailyMessageCounts returns per-day message counts for the most recent days, ascending.
func (s *SQLiteStore) DailyMessageCounts(ctx context.Context, owner string, days int) ([]DailyCount, error) {
	query := `
		SELECT day, n FROM (
			SELECT substr(created_at, 1, 10) AS day, COUNT(*) AS n
			FROM messages
			WHERE owner = ?
			GROUP BY day
			ORDER BY day DESC
			LIMIT ?
		) ORDER BY day ASC
	`

	rows, err := s.db.QueryContext(ctx, query, owner, sqliteLimit(days))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate messages: %w", err)
	}
	defer rows.Close()

	var counts []DailyCount
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts = append(counts, dc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily counts: %w", err)
	}

	return counts, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteLimit maps a non-positive limit to SQLite's "no limit".
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// encodeVector converts a float32 slice to a byte slice for storage.
// Each float32 is encoded as 4 bytes in little-endian format.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts a byte slice back to a float32 slice.
func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v[i] = math.Float32frombits(bits)
	}
	return v
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTimestamp parses a SQLite timestamp string to time.Time.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}
