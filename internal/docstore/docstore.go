// ABOUTME: Store interface and document types for the chat persistence layer
// ABOUTME: Defines Document, collection names, sentinel errors and the Store contract

package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("document not found")

// ErrRevConflict is returned when a compare-and-swap update loses against
// a concurrent writer. Update retries internally; callers only see this
// after the retry budget is exhausted.
var ErrRevConflict = errors.New("document revision conflict")

// ErrPairExists is returned when creating a conversation whose pair key
// already has an active (non-deleted) conversation.
var ErrPairExists = errors.New("active conversation exists for pair")

// ErrUnknownIndex is returned when a lookup names a field that has no
// secondary index. Lookups never scan unindexed fields.
var ErrUnknownIndex = errors.New("no index for field")

// Collection names for the two document kinds this layer stores.
const (
	CollectionConversation = "conversation"
	CollectionMessage      = "message"
)

// MaxViewLimit is the largest page a view query returns in one call.
// Both implementations clamp to it; callers that compute offsets from a
// page size must reject sizes above it or rows between the clamp and the
// requested size become unreachable from any page.
const MaxViewLimit = 500

// Indexed field names inside document bodies.
const (
	FieldUserID         = "userId"
	FieldUserID2        = "userId2"
	FieldPairKey        = "pairKey"
	FieldConversationID = "conversationId"
	FieldTimestamp      = "timestamp"
	FieldDelete         = "delete"
)

// Document is a schemaless record. Fields holds the JSON body; ID and Rev
// live outside it. Rev starts at 1 and increments on every update.
type Document struct {
	ID         string
	Collection string
	Rev        int64
	Fields     map[string]any
}

// MessagePage is one page of a message view query in view order.
type MessagePage struct {
	Documents []*Document
	// HasMore is set by the cursor variant when more rows follow the page.
	HasMore bool
}

// Store is the document store contract the chat services are written
// against. SQLiteStore is the durable implementation; MemStore backs
// tests.
type Store interface {
	// Get retrieves a document by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Document, error)

	// Create persists a new document with a generated ID at rev 1.
	// Returns ErrPairExists when an active-conversation pair key collides.
	Create(ctx context.Context, collection string, fields map[string]any) (*Document, error)

	// Update merges the supplied fields over the current body and writes
	// the result back with a revision compare-and-swap. Unspecified fields
	// are preserved. Lost races are retried a bounded number of times
	// before surfacing ErrRevConflict.
	Update(ctx context.Context, id string, fields map[string]any) (*Document, error)

	// ListByField returns all documents in a collection whose indexed
	// field equals value. Order is index order, no guarantee.
	ListByField(ctx context.Context, collection, field, value string) ([]*Document, error)

	// ListByAnyField returns documents where either indexed field equals
	// value. Backs the conversations-by-participant lookup.
	ListByAnyField(ctx context.Context, collection, field1, field2, value string) ([]*Document, error)

	// ViewMessagesByConversation reads the message view, sorted ascending
	// by (timestamp, id) within the conversation, with offset paging.
	ViewMessagesByConversation(ctx context.Context, conversationID string, skip, limit int) (*MessagePage, error)

	// ViewMessagesAfter reads the message view strictly after the
	// (timestamp, id) position, for cursor paging. Fetches up to limit
	// rows and reports whether more follow.
	ViewMessagesAfter(ctx context.Context, conversationID string, afterTS int64, afterID string, limit int) (*MessagePage, error)

	// Close releases any resources held by the store
	Close() error
}

// cloneFields copies a field map one level deep so stored documents are
// not aliased by caller maps.
func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// mergeFields overlays the supplied fields onto base, returning a new map.
// Only supplied keys are replaced; everything else is preserved.
func mergeFields(base, overlay map[string]any) map[string]any {
	out := cloneFields(base)
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Int64Field reads a numeric body field. JSON decoding yields float64,
// in-memory documents keep whatever the writer stored, so both are
// accepted. Missing or non-numeric fields read as zero.
func Int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// BoolField reads a boolean body field, treating absence as false.
func BoolField(fields map[string]any, key string) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

// StringField reads a string body field, treating absence as empty.
func StringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
