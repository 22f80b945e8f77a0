// ABOUTME: SQLite implementation of the document Store using modernc.org/sqlite
// ABOUTME: Stores JSON bodies with expression indexes as the secondary-index and view surface

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// updateAttempts bounds the read-merge-write retry loop in Update.
const updateAttempts = 3

// indexedFields lists, per collection, the body fields that carry a
// secondary index. Lookups on anything else fail with ErrUnknownIndex.
var indexedFields = map[string]map[string]bool{
	CollectionConversation: {
		FieldUserID:  true,
		FieldUserID2: true,
		FieldPairKey: true,
	},
	CollectionMessage: {
		FieldConversationID: true,
	},
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "docstore")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite document store initialized", "path", path)
	return s, nil
}

// createSchema creates the documents table and its expression indexes.
// The partial unique index over active conversation pair keys is what
// enforces at-most-one-active-conversation-per-pair at the store level.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			rev        INTEGER NOT NULL,
			body       TEXT NOT NULL,

			CHECK (collection IN ('conversation', 'message'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON documents(json_extract(body, '$.userId'))
			WHERE collection = 'conversation';

		CREATE INDEX IF NOT EXISTS idx_conversations_user2
			ON documents(json_extract(body, '$.userId2'))
			WHERE collection = 'conversation';

		CREATE INDEX IF NOT EXISTS idx_conversations_pair
			ON documents(json_extract(body, '$.pairKey'))
			WHERE collection = 'conversation';

		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active_pair
			ON documents(json_extract(body, '$.pairKey'))
			WHERE collection = 'conversation'
			  AND (json_extract(body, '$.delete') IS NULL
			       OR json_extract(body, '$.delete') = 0);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts
			ON documents(json_extract(body, '$.conversationId'),
			             json_extract(body, '$.timestamp'))
			WHERE collection = 'message';
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite document store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// Get retrieves a document by ID.
// Returns ErrNotFound if the document doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	query := `SELECT id, collection, rev, body FROM documents WHERE id = ?`

	var doc Document
	var body string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc.ID, &doc.Collection, &doc.Rev, &body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decoding document body: %w", err)
	}
	return &doc, nil
}

// Create persists a new document with a generated ID at rev 1.
// An active-conversation pair key collision returns ErrPairExists.
func (s *SQLiteStore) Create(ctx context.Context, collection string, fields map[string]any) (*Document, error) {
	doc := &Document{
		ID:         uuid.New().String(),
		Collection: collection,
		Rev:        1,
		Fields:     cloneFields(fields),
	}

	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("encoding document body: %w", err)
	}

	query := `INSERT INTO documents (id, collection, rev, body) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, doc.ID, doc.Collection, doc.Rev, string(body)); err != nil {
		if isConstraintViolation(err) {
			return nil, ErrPairExists
		}
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("created document", "id", doc.ID, "collection", collection)
	return doc, nil
}

// Update merges the supplied fields over the current body and writes the
// result back guarded by a revision compare-and-swap. A lost race re-reads
// and retries; after updateAttempts losses it returns ErrRevConflict.
func (s *SQLiteStore) Update(ctx context.Context, id string, fields map[string]any) (*Document, error) {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		merged := mergeFields(current.Fields, fields)
		updated, err := s.casWrite(ctx, current, merged)
		if errors.Is(err, ErrRevConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrRevConflict
}

// casWrite writes a merged body if the stored revision still matches the
// one the caller read. Returns ErrRevConflict on a stale revision.
func (s *SQLiteStore) casWrite(ctx context.Context, current *Document, merged map[string]any) (*Document, error) {
	body, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding document body: %w", err)
	}

	query := `UPDATE documents SET body = ?, rev = rev + 1 WHERE id = ? AND rev = ?`
	result, err := s.db.ExecContext(ctx, query, string(body), current.ID, current.Rev)
	if err != nil {
		return nil, fmt.Errorf("updating document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrRevConflict
	}

	s.logger.Debug("updated document", "id", current.ID, "rev", current.Rev+1)
	return &Document{
		ID:         current.ID,
		Collection: current.Collection,
		Rev:        current.Rev + 1,
		Fields:     merged,
	}, nil
}

// ListByField returns all documents in a collection whose indexed field
// equals value. Index order, no guarantee.
func (s *SQLiteStore) ListByField(ctx context.Context, collection, field, value string) ([]*Document, error) {
	if !indexedFields[collection][field] {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, field)
	}

	// field is whitelisted above, safe to interpolate into the json path
	query := fmt.Sprintf(`
		SELECT id, collection, rev, body
		FROM documents
		WHERE collection = ? AND json_extract(body, '$.%s') = ?
	`, field)

	return s.queryDocuments(ctx, query, collection, value)
}

// ListByAnyField returns documents where either indexed field equals value.
func (s *SQLiteStore) ListByAnyField(ctx context.Context, collection, field1, field2, value string) ([]*Document, error) {
	if !indexedFields[collection][field1] || !indexedFields[collection][field2] {
		return nil, fmt.Errorf("%w: %s.%s/%s", ErrUnknownIndex, collection, field1, field2)
	}

	query := fmt.Sprintf(`
		SELECT id, collection, rev, body
		FROM documents
		WHERE collection = ?
		  AND (json_extract(body, '$.%s') = ? OR json_extract(body, '$.%s') = ?)
	`, field1, field2)

	return s.queryDocuments(ctx, query, collection, value, value)
}

// ViewMessagesByConversation reads the message view sorted ascending by
// (timestamp, id) within the conversation, with offset paging.
func (s *SQLiteStore) ViewMessagesByConversation(ctx context.Context, conversationID string, skip, limit int) (*MessagePage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxViewLimit {
		limit = MaxViewLimit
	}

	query := `
		SELECT id, collection, rev, body
		FROM documents
		WHERE collection = 'message' AND json_extract(body, '$.conversationId') = ?
		ORDER BY json_extract(body, '$.timestamp') ASC, id ASC
		LIMIT ? OFFSET ?
	`

	docs, err := s.queryDocuments(ctx, query, conversationID, limit, skip)
	if err != nil {
		return nil, err
	}
	return &MessagePage{Documents: docs}, nil
}

// ViewMessagesAfter reads the message view strictly after the
// (afterTS, afterID) position. An empty afterID reads from the start.
func (s *SQLiteStore) ViewMessagesAfter(ctx context.Context, conversationID string, afterTS int64, afterID string, limit int) (*MessagePage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxViewLimit {
		limit = MaxViewLimit
	}

	query := `
		SELECT id, collection, rev, body
		FROM documents
		WHERE collection = 'message' AND json_extract(body, '$.conversationId') = ?
	`
	args := []any{conversationID}

	if afterID != "" {
		query += `
		  AND (json_extract(body, '$.timestamp') > ?
		       OR (json_extract(body, '$.timestamp') = ? AND id > ?))
		`
		args = append(args, afterTS, afterTS, afterID)
	}

	query += `
		ORDER BY json_extract(body, '$.timestamp') ASC, id ASC
		LIMIT ?
	`
	// Fetch one extra row to detect whether more follow
	args = append(args, limit+1)

	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	page := &MessagePage{Documents: docs}
	if len(docs) > limit {
		page.Documents = docs[:limit]
		page.HasMore = true
	}
	return page, nil
}

// queryDocuments is a helper that executes a query and decodes the rows
func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		var body string
		if err := rows.Scan(&doc.ID, &doc.Collection, &doc.Rev, &body); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decoding document body: %w", err)
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
