// ABOUTME: Service wires the conversation manager and message store over a document store
// ABOUTME: Hosts depend on the capability interfaces, not on a name-keyed operation registry

package chat

import (
	"context"
	"log/slog"

	"github.com/bemily/database/internal/docstore"
	"github.com/bemily/database/internal/pairlock"
)

// ConversationManager is the capability surface for conversation CRUD and
// pair uniqueness.
type ConversationManager interface {
	ListConversationsForUser(ctx context.Context, userID string) ([]*Conversation, error)
	EnsureNoActiveConversation(ctx context.Context, userID, userID2 string) error
	CreateConversation(ctx context.Context, conv *Conversation) (*Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*Conversation, error)
	UpdateConversation(ctx context.Context, id string, fields map[string]any) (*Conversation, error)
}

// MessageStore is the capability surface for append-only message
// persistence and retrieval.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) (*Message, error)
	GetAllMessages(ctx context.Context, conversationID string) ([]*Message, error)
	GetPagedMessages(ctx context.Context, conversationID string, page, pageSize int) ([]*Message, error)
	GetMessagesCursor(ctx context.Context, conversationID, cursor string, limit int) (*MessagesPage, error)
}

// Service implements both capability interfaces over a document store.
type Service struct {
	store  docstore.Store
	pairs  *pairlock.Registry
	logger *slog.Logger
}

// New creates a chat Service over the given store.
func New(store docstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		pairs:  pairlock.New(),
		logger: logger.With("component", "chat"),
	}
}

var (
	_ ConversationManager = (*Service)(nil)
	_ MessageStore        = (*Service)(nil)
)
