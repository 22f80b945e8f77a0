// ABOUTME: Message store: append-only persistence with sorted and paged retrieval
// ABOUTME: Full history sorts in memory; paged history delegates ordering to the store view

package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bemily/database/internal/docstore"
)

// Message is one entry in a conversation's history. Messages are
// immutable once written; no update or delete is exposed. Timestamp is
// writer-supplied and not guaranteed monotonic per conversation; ordering
// is established at read time.
type Message struct {
	ID             string
	ConversationID string
	Timestamp      int64
	// Fields carries opaque payload (sender, body, attachment refs).
	Fields map[string]any
}

// MessagesPage is one cursor page of a conversation's history.
type MessagesPage struct {
	Messages   []*Message
	NextCursor string
	HasMore    bool
}

// managedMessageFields are maintained by this package and excluded from
// the opaque payload.
var managedMessageFields = map[string]bool{
	docstore.FieldConversationID: true,
	docstore.FieldTimestamp:      true,
}

// SaveMessage appends a message and returns it with its assigned id.
// The referenced conversation is not validated to exist; referential
// integrity across entities is the caller's responsibility.
func (s *Service) SaveMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg == nil || msg.ConversationID == "" {
		return nil, &ValidationError{Msg: "conversation id is required"}
	}

	fields := make(map[string]any, len(msg.Fields)+2)
	for k, v := range msg.Fields {
		if managedMessageFields[k] {
			continue
		}
		fields[k] = v
	}
	fields[docstore.FieldConversationID] = msg.ConversationID
	fields[docstore.FieldTimestamp] = msg.Timestamp

	doc, err := s.store.Create(ctx, docstore.CollectionMessage, fields)
	if err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	s.logger.Debug("message saved", "id", doc.ID, "conversation_id", msg.ConversationID)
	return messageFromDoc(doc), nil
}

// GetAllMessages returns every message of a conversation ascending by
// timestamp. The secondary index gives no ordering guarantee, so the sort
// here is mandatory post-processing; it is stable, so timestamp ties keep
// the index's return order. An empty history is a success, not an error.
func (s *Service) GetAllMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	if conversationID == "" {
		return nil, &ValidationError{Msg: "conversation id is required"}
	}

	docs, err := s.store.ListByField(ctx, docstore.CollectionMessage,
		docstore.FieldConversationID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	msgs := make([]*Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, messageFromDoc(doc))
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
	return msgs, nil
}

// GetPagedMessages returns one zero-indexed page of a conversation's
// history from the message view, skip = page*pageSize. Ordering is
// delegated entirely to the view; no sort is re-applied here. Deep pages
// cost work proportional to the skip; GetMessagesCursor is the
// constant-cost alternative.
func (s *Service) GetPagedMessages(ctx context.Context, conversationID string, page, pageSize int) ([]*Message, error) {
	if conversationID == "" {
		return nil, &ValidationError{Msg: "conversation id is required"}
	}
	if page < 0 || pageSize <= 0 {
		return nil, &ValidationError{Msg: "page must be >= 0 and page size > 0"}
	}
	// The view caps its limit at MaxViewLimit. A larger pageSize would still
	// advance the skip by the full amount, leaving rows between the cap and
	// the requested size unreachable from any page, so it is rejected.
	if pageSize > docstore.MaxViewLimit {
		return nil, &ValidationError{Msg: fmt.Sprintf("page size must be <= %d", docstore.MaxViewLimit)}
	}

	view, err := s.store.ViewMessagesByConversation(ctx, conversationID, page*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("paging messages: %w", err)
	}

	msgs := make([]*Message, 0, len(view.Documents))
	for _, doc := range view.Documents {
		msgs = append(msgs, messageFromDoc(doc))
	}
	return msgs, nil
}

// GetMessagesCursor returns the next page of a conversation's history
// after an opaque cursor. An empty cursor reads from the start. Page cost
// does not grow with history depth.
func (s *Service) GetMessagesCursor(ctx context.Context, conversationID, cursor string, limit int) (*MessagesPage, error) {
	if conversationID == "" {
		return nil, &ValidationError{Msg: "conversation id is required"}
	}
	if limit <= 0 || limit > docstore.MaxViewLimit {
		return nil, &ValidationError{Msg: fmt.Sprintf("limit must be between 1 and %d", docstore.MaxViewLimit)}
	}

	var afterTS int64
	var afterID string
	if cursor != "" {
		var err error
		afterTS, afterID, err = decodeCursor(cursor)
		if err != nil {
			return nil, &ValidationError{Msg: "invalid cursor", Err: err}
		}
	}

	view, err := s.store.ViewMessagesAfter(ctx, conversationID, afterTS, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("paging messages by cursor: %w", err)
	}

	page := &MessagesPage{
		Messages: make([]*Message, 0, len(view.Documents)),
		HasMore:  view.HasMore,
	}
	for _, doc := range view.Documents {
		page.Messages = append(page.Messages, messageFromDoc(doc))
	}
	if view.HasMore && len(page.Messages) > 0 {
		last := page.Messages[len(page.Messages)-1]
		page.NextCursor = encodeCursor(last.Timestamp, last.ID)
	}
	return page, nil
}

// encodeCursor creates an opaque cursor from a message position.
// Format is base64(timestamp|message_id).
func encodeCursor(ts int64, id string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d|%s", ts, id)))
}

// decodeCursor parses an opaque cursor back into a message position.
func decodeCursor(cursor string) (int64, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid cursor format: expected timestamp|message_id")
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	if parts[1] == "" {
		return 0, "", fmt.Errorf("invalid cursor format: empty message id")
	}
	return ts, parts[1], nil
}

// messageFromDoc maps a stored document to a Message, splitting managed
// fields out of the opaque payload.
func messageFromDoc(doc *docstore.Document) *Message {
	msg := &Message{
		ID:             doc.ID,
		ConversationID: docstore.StringField(doc.Fields, docstore.FieldConversationID),
		Timestamp:      docstore.Int64Field(doc.Fields, docstore.FieldTimestamp),
		Fields:         make(map[string]any),
	}
	for k, v := range doc.Fields {
		if managedMessageFields[k] {
			continue
		}
		msg.Fields[k] = v
	}
	return msg
}
