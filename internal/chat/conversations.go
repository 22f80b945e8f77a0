// ABOUTME: Conversation manager: pair uniqueness, CRUD and soft delete
// ABOUTME: At most one active conversation may exist per unordered participant pair

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/bemily/database/internal/docstore"
	"github.com/bemily/database/internal/pairlock"
)

// Conversation pairs two participant identifiers. The pair is unordered:
// a conversation between A and B is the same regardless of which field
// holds which id. Deleted marks a soft delete; the document stays in the
// store and its id remains valid for message history.
type Conversation struct {
	ID      string
	UserID  string
	UserID2 string
	Deleted bool
	// Fields carries opaque payload (subject, metadata) preserved through
	// merge updates.
	Fields map[string]any
}

// managedConversationFields are maintained by this package and excluded
// from the opaque payload.
var managedConversationFields = map[string]bool{
	docstore.FieldUserID:  true,
	docstore.FieldUserID2: true,
	docstore.FieldPairKey: true,
	docstore.FieldDelete:  true,
}

// ListConversationsForUser returns all conversations, active and
// soft-deleted, whose participant set includes userID. No soft-delete
// filtering happens here; that is the caller's call. Order is whatever
// the index returns.
func (s *Service) ListConversationsForUser(ctx context.Context, userID string) ([]*Conversation, error) {
	if userID == "" {
		return nil, &ValidationError{Msg: "user id is required"}
	}

	docs, err := s.store.ListByAnyField(ctx, docstore.CollectionConversation,
		docstore.FieldUserID, docstore.FieldUserID2, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations for user: %w", err)
	}

	convs := make([]*Conversation, 0, len(docs))
	for _, doc := range docs {
		convs = append(convs, conversationFromDoc(doc))
	}
	return convs, nil
}

// EnsureNoActiveConversation succeeds when no active conversation exists
// between the two users, in either participant order. If the pair index
// returns a match whose first entry is not soft-deleted, it fails with a
// ConflictError carrying that conversation. The first match stays
// authoritative even if duplicate documents exist for the pair. A failed
// lookup surfaces as a ValidationError and is never retried.
func (s *Service) EnsureNoActiveConversation(ctx context.Context, userID, userID2 string) error {
	if userID == "" || userID2 == "" {
		return &ValidationError{Msg: "both user ids are required"}
	}

	docs, err := s.store.ListByField(ctx, docstore.CollectionConversation,
		docstore.FieldPairKey, pairlock.Key(userID, userID2))
	if err != nil {
		return &ValidationError{Msg: "conversation pair lookup failed", Err: err}
	}

	if len(docs) == 0 || docstore.BoolField(docs[0].Fields, docstore.FieldDelete) {
		return nil
	}
	return &ConflictError{Conversation: conversationFromDoc(docs[0])}
}

// CreateConversation creates a conversation and returns it with its
// assigned id. Creation for a pair is serialized through a per-pair mutex
// and backed by the store's unique active-pair index, so a lost race
// surfaces as a ConflictError carrying the existing conversation rather
// than a duplicate.
func (s *Service) CreateConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	if conv == nil || conv.UserID == "" || conv.UserID2 == "" {
		return nil, &ValidationError{Msg: "both user ids are required"}
	}

	key := pairlock.Key(conv.UserID, conv.UserID2)
	release := s.pairs.Lock(key)
	defer release()

	fields := make(map[string]any, len(conv.Fields)+3)
	for k, v := range conv.Fields {
		if managedConversationFields[k] {
			continue
		}
		fields[k] = v
	}
	fields[docstore.FieldUserID] = conv.UserID
	fields[docstore.FieldUserID2] = conv.UserID2
	fields[docstore.FieldPairKey] = key

	doc, err := s.store.Create(ctx, docstore.CollectionConversation, fields)
	if err != nil {
		if errors.Is(err, docstore.ErrPairExists) {
			if existing := s.activeConversation(ctx, key); existing != nil {
				return nil, &ConflictError{Conversation: existing}
			}
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("conversation created", "id", doc.ID, "pair", key)
	return conversationFromDoc(doc), nil
}

// activeConversation looks up the active conversation for a pair key,
// returning nil when none is found.
func (s *Service) activeConversation(ctx context.Context, pairKey string) *Conversation {
	docs, err := s.store.ListByField(ctx, docstore.CollectionConversation,
		docstore.FieldPairKey, pairKey)
	if err != nil {
		s.logger.Error("pair lookup failed after create conflict", "pair", pairKey, "error", err)
		return nil
	}
	for _, doc := range docs {
		if !docstore.BoolField(doc.Fields, docstore.FieldDelete) {
			return conversationFromDoc(doc)
		}
	}
	return nil
}

// GetConversationByID retrieves a conversation by id.
// Returns docstore.ErrNotFound if the id does not resolve to a conversation.
func (s *Service) GetConversationByID(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, &ValidationError{Msg: "conversation id is required"}
	}

	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Collection != docstore.CollectionConversation {
		return nil, docstore.ErrNotFound
	}
	return conversationFromDoc(doc), nil
}

// UpdateConversation merges the supplied fields onto the conversation
// document, preserving unspecified fields. Setting the delete field to
// true is the soft-delete transition. Participant ids and the pair key are
// derived at creation and cannot be changed here.
func (s *Service) UpdateConversation(ctx context.Context, id string, fields map[string]any) (*Conversation, error) {
	if id == "" {
		return nil, &ValidationError{Msg: "conversation id is required"}
	}
	for _, k := range []string{docstore.FieldUserID, docstore.FieldUserID2, docstore.FieldPairKey} {
		if _, ok := fields[k]; ok {
			return nil, &ValidationError{Msg: fmt.Sprintf("field %q cannot be updated", k)}
		}
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Collection != docstore.CollectionConversation {
		return nil, docstore.ErrNotFound
	}

	doc, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	s.logger.Debug("conversation updated", "id", id, "rev", doc.Rev)
	return conversationFromDoc(doc), nil
}

// conversationFromDoc maps a stored document to a Conversation, splitting
// managed fields out of the opaque payload.
func conversationFromDoc(doc *docstore.Document) *Conversation {
	conv := &Conversation{
		ID:      doc.ID,
		UserID:  docstore.StringField(doc.Fields, docstore.FieldUserID),
		UserID2: docstore.StringField(doc.Fields, docstore.FieldUserID2),
		Deleted: docstore.BoolField(doc.Fields, docstore.FieldDelete),
		Fields:  make(map[string]any),
	}
	for k, v := range doc.Fields {
		if managedConversationFields[k] {
			continue
		}
		conv.Fields[k] = v
	}
	return conv
}
