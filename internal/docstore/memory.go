// ABOUTME: In-memory Store implementation for testing
// ABOUTME: Allows service and CLI tests to run without SQLite

package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store implementation for testing. It mirrors
// the SQLite semantics, including the active-pair uniqueness rule and the
// indexed-field whitelist. Index order is insertion order.
type MemStore struct {
	mu    sync.RWMutex
	docs  map[string]*Document // keyed by document ID
	order []string             // document IDs in insertion order
}

// NewMemStore creates a new MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		docs: make(map[string]*Document),
	}
}

// Get retrieves a document by ID.
func (m *MemStore) Get(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

// Create stores a new document, enforcing the active-pair unique rule.
func (m *MemStore) Create(ctx context.Context, collection string, fields map[string]any) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if collection == CollectionConversation && !BoolField(fields, FieldDelete) {
		pair := StringField(fields, FieldPairKey)
		if pair != "" && m.activePairLocked(pair) != nil {
			return nil, ErrPairExists
		}
	}

	doc := &Document{
		ID:         uuid.New().String(),
		Collection: collection,
		Rev:        1,
		Fields:     cloneFields(fields),
	}
	m.docs[doc.ID] = doc
	m.order = append(m.order, doc.ID)
	return copyDoc(doc), nil
}

// activePairLocked returns the active conversation for a pair key, if any.
// Caller holds the lock.
func (m *MemStore) activePairLocked(pairKey string) *Document {
	for _, id := range m.order {
		doc := m.docs[id]
		if doc.Collection != CollectionConversation {
			continue
		}
		if StringField(doc.Fields, FieldPairKey) == pairKey && !BoolField(doc.Fields, FieldDelete) {
			return doc
		}
	}
	return nil
}

// Update merges fields over the stored body. There are no concurrent
// revisions to lose against under the store lock, so the CAS always wins.
func (m *MemStore) Update(ctx context.Context, id string, fields map[string]any) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	doc.Fields = mergeFields(doc.Fields, fields)
	doc.Rev++
	return copyDoc(doc), nil
}

// ListByField returns documents whose indexed field equals value, in
// insertion order.
func (m *MemStore) ListByField(ctx context.Context, collection, field, value string) ([]*Document, error) {
	if !indexedFields[collection][field] {
		return nil, ErrUnknownIndex
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*Document
	for _, id := range m.order {
		doc := m.docs[id]
		if doc.Collection == collection && StringField(doc.Fields, field) == value {
			docs = append(docs, copyDoc(doc))
		}
	}
	return docs, nil
}

// ListByAnyField returns documents where either indexed field equals value.
func (m *MemStore) ListByAnyField(ctx context.Context, collection, field1, field2, value string) ([]*Document, error) {
	if !indexedFields[collection][field1] || !indexedFields[collection][field2] {
		return nil, ErrUnknownIndex
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*Document
	for _, id := range m.order {
		doc := m.docs[id]
		if doc.Collection != collection {
			continue
		}
		if StringField(doc.Fields, field1) == value || StringField(doc.Fields, field2) == value {
			docs = append(docs, copyDoc(doc))
		}
	}
	return docs, nil
}

// ViewMessagesByConversation pages the conversation's messages sorted by
// (timestamp, id) ascending.
func (m *MemStore) ViewMessagesByConversation(ctx context.Context, conversationID string, skip, limit int) (*MessagePage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxViewLimit {
		limit = MaxViewLimit
	}

	docs := m.sortedMessages(conversationID)
	if skip >= len(docs) {
		return &MessagePage{}, nil
	}
	docs = docs[skip:]
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return &MessagePage{Documents: docs}, nil
}

// ViewMessagesAfter returns messages strictly after the (afterTS, afterID)
// position. An empty afterID reads from the start.
func (m *MemStore) ViewMessagesAfter(ctx context.Context, conversationID string, afterTS int64, afterID string, limit int) (*MessagePage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxViewLimit {
		limit = MaxViewLimit
	}

	all := m.sortedMessages(conversationID)
	var docs []*Document
	for _, doc := range all {
		if afterID != "" {
			ts := Int64Field(doc.Fields, FieldTimestamp)
			if ts < afterTS || (ts == afterTS && doc.ID <= afterID) {
				continue
			}
		}
		docs = append(docs, doc)
	}

	page := &MessagePage{Documents: docs}
	if len(docs) > limit {
		page.Documents = docs[:limit]
		page.HasMore = true
	}
	return page, nil
}

// sortedMessages snapshots a conversation's messages in view order.
func (m *MemStore) sortedMessages(conversationID string) []*Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*Document
	for _, id := range m.order {
		doc := m.docs[id]
		if doc.Collection == CollectionMessage && StringField(doc.Fields, FieldConversationID) == conversationID {
			docs = append(docs, copyDoc(doc))
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		ti := Int64Field(docs[i].Fields, FieldTimestamp)
		tj := Int64Field(docs[j].Fields, FieldTimestamp)
		if ti != tj {
			return ti < tj
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// copyDoc returns a copy so callers cannot mutate stored state.
func copyDoc(doc *Document) *Document {
	out := *doc
	out.Fields = cloneFields(doc.Fields)
	return &out
}

// Ensure MemStore implements Store interface
var _ Store = (*MemStore)(nil)
