package feedback

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the durable Store variant. Same contract as
// MemoryStore; rowid insertion order stands in for the memory store's
// explicit ordering slices.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the feedback database in dataDir and
// runs pending migrations. Pass ":memory:" as dataDir for an in-memory
// database (used by tests).
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "gosnap.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that
// haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

const feedbackColumns = `id, session_id, comment, element, element_path, screenshot_url,
	page_url, intent, severity, status, external_id, metadata, created_at, resolved_at, resolution`

func (s *SQLiteStore) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(`SELECT id, page_url, title, created_at FROM sessions ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var sess Session
		var createdAt string
		if err := rows.Scan(&sess.ID, &sess.PageURL, &sess.Title, &createdAt); err != nil {
			return nil, err
		}
		if sess.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSession(sessionID string) (SessionDetail, error) {
	var detail SessionDetail
	var createdAt string
	err := s.db.QueryRow(`SELECT id, page_url, title, created_at FROM sessions WHERE id = ?`, sessionID).
		Scan(&detail.ID, &detail.PageURL, &detail.Title, &createdAt)
	if err == sql.ErrNoRows {
		return SessionDetail{}, ErrNotFound
	}
	if err != nil {
		return SessionDetail{}, err
	}
	if detail.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return SessionDetail{}, fmt.Errorf("parsing created_at: %w", err)
	}

	rows, err := s.db.Query(`SELECT `+feedbackColumns+` FROM feedback WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	defer rows.Close()

	detail.Feedbacks = []Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return SessionDetail{}, err
		}
		detail.Feedbacks = append(detail.Feedbacks, fb)
	}
	return detail, rows.Err()
}

func (s *SQLiteStore) CreateFeedback(input CreateFeedbackInput) (Feedback, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Feedback{}, fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID, err = findOrCreateSessionTx(tx, input.PageURL)
		if err != nil {
			return Feedback{}, err
		}
	}

	fb := Feedback{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Comment:       input.Comment,
		Element:       input.Element,
		ElementPath:   input.ElementPath,
		ScreenshotURL: input.ScreenshotURL,
		PageURL:       input.PageURL,
		Intent:        input.Intent,
		Severity:      input.Severity,
		Status:        StatusPending,
		ExternalID:    input.ExternalID,
		Metadata:      input.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if fb.Intent == "" {
		fb.Intent = IntentFix
	}
	if fb.Severity == "" {
		fb.Severity = SeveritySuggestion
	}

	metadataJSON := ""
	if fb.Metadata != nil {
		b, err := json.Marshal(fb.Metadata)
		if err != nil {
			return Feedback{}, fmt.Errorf("marshalling metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	_, err = tx.Exec(`
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '')`,
		fb.ID, fb.SessionID, fb.Comment, fb.Element, fb.ElementPath, fb.ScreenshotURL,
		fb.PageURL, string(fb.Intent), string(fb.Severity), string(fb.Status),
		fb.ExternalID, metadataJSON, fb.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Feedback{}, err
	}
	if err := tx.Commit(); err != nil {
		return Feedback{}, fmt.Errorf("committing create: %w", err)
	}
	return fb, nil
}

func (s *SQLiteStore) UpdateFeedback(feedbackID string, fields UpdateFeedbackInput) (Feedback, error) {
	if fields.Comment != nil {
		res, err := s.db.Exec(`UPDATE feedback SET comment = ? WHERE id = ?`, *fields.Comment, feedbackID)
		if err != nil {
			return Feedback{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Feedback{}, err
		}
		if n == 0 {
			return Feedback{}, ErrNotFound
		}
	}
	return s.getFeedback(feedbackID)
}

func (s *SQLiteStore) DeleteFeedback(feedbackID string) (Feedback, error) {
	return s.transition(feedbackID, StatusDismissed, DeletedResolution)
}

func (s *SQLiteStore) ListPending(sessionID string) ([]Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE status IN ('pending', 'acknowledged')`
	args := []any{}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Acknowledge(feedbackID string) (Feedback, error) {
	res, err := s.db.Exec(`UPDATE feedback SET status = 'acknowledged' WHERE id = ? AND status = 'pending'`, feedbackID)
	if err != nil {
		return Feedback{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Feedback{}, err
	}
	if n == 0 {
		// Distinguish unknown ID from a record in the wrong state.
		if _, err := s.getFeedback(feedbackID); err != nil {
			return Feedback{}, err
		}
		return Feedback{}, ErrInvalidState
	}
	return s.getFeedback(feedbackID)
}

func (s *SQLiteStore) Resolve(feedbackID, resolution string) (Feedback, error) {
	return s.transition(feedbackID, StatusResolved, resolution)
}

func (s *SQLiteStore) Dismiss(feedbackID, reason string) (Feedback, error) {
	return s.transition(feedbackID, StatusDismissed, reason)
}

func (s *SQLiteStore) FindByExternalID(externalID string) (string, error) {
	if externalID == "" {
		return "", ErrNotFound
	}
	var id string
	err := s.db.QueryRow(`SELECT id FROM feedback WHERE external_id = ? ORDER BY seq ASC LIMIT 1`, externalID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) transition(feedbackID string, to Status, resolution string) (Feedback, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE feedback SET status = ?, resolution = ?, resolved_at = ?
		WHERE id = ? AND status IN ('pending', 'acknowledged')`,
		string(to), resolution, now.Format(time.RFC3339), feedbackID,
	)
	if err != nil {
		return Feedback{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Feedback{}, err
	}
	if n == 0 {
		if _, err := s.getFeedback(feedbackID); err != nil {
			return Feedback{}, err
		}
		return Feedback{}, ErrInvalidState
	}
	return s.getFeedback(feedbackID)
}

func (s *SQLiteStore) getFeedback(feedbackID string) (Feedback, error) {
	row := s.db.QueryRow(`SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, feedbackID)
	fb, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return Feedback{}, ErrNotFound
	}
	return fb, err
}

// findOrCreateSessionTx resolves a normalized page URL to a session ID
// inside the creation transaction, so concurrent creators cannot
// produce duplicate sessions for the same URL.
func findOrCreateSessionTx(tx *sql.Tx, pageURL string) (string, error) {
	normalized, err := NormalizeURL(pageURL)
	if err != nil {
		return "", err
	}

	var id string
	err = tx.QueryRow(`SELECT id FROM sessions WHERE page_url = ? ORDER BY seq ASC LIMIT 1`, normalized).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	id = uuid.New().String()
	_, err = tx.Exec(`INSERT INTO sessions (id, page_url, title, created_at) VALUES (?, ?, ?, ?)`,
		id, normalized, titleFromURL(pageURL), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (Feedback, error) {
	var fb Feedback
	var intent, severity, status, createdAt, metadataJSON string
	var resolvedAt sql.NullString

	err := row.Scan(&fb.ID, &fb.SessionID, &fb.Comment, &fb.Element, &fb.ElementPath,
		&fb.ScreenshotURL, &fb.PageURL, &intent, &severity, &status, &fb.ExternalID,
		&metadataJSON, &createdAt, &resolvedAt, &fb.Resolution)
	if err != nil {
		return Feedback{}, err
	}

	fb.Intent = Intent(intent)
	fb.Severity = Severity(severity)
	fb.Status = Status(status)

	if fb.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Feedback{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		t, err := time.Parse(time.RFC3339, resolvedAt.String)
		if err != nil {
			return Feedback{}, fmt.Errorf("parsing resolved_at: %w", err)
		}
		fb.ResolvedAt = &t
	}
	if metadataJSON != "" {
		var m Metadata
		if err := json.Unmarshal([]byte(metadataJSON), &m); err != nil {
			return Feedback{}, fmt.Errorf("parsing metadata: %w", err)
		}
		fb.Metadata = &m
	}
	return fb, nil
}
