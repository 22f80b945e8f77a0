// ABOUTME: Tests for the conversation manager
// ABOUTME: Covers pair uniqueness, order independence, soft delete and merge updates

package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemily/database/internal/docstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(docstore.NewMemStore(), nil)
}

func TestEnsureNoActiveConversation_EmptyStore(t *testing.T) {
	svc := newTestService(t)

	err := svc.EnsureNoActiveConversation(context.Background(), "u1", "u2")
	assert.NoError(t, err)
}

func TestEnsureNoActiveConversation_ConflictAfterCreate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureNoActiveConversation(ctx, "u1", "u2"))

	created, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)

	err = svc.EnsureNoActiveConversation(ctx, "u1", "u2")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, created.ID, conflict.Conversation.ID)
}

func TestEnsureNoActiveConversation_OrderIndependent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)

	var conflict *ConflictError
	assert.ErrorAs(t, svc.EnsureNoActiveConversation(ctx, "u1", "u2"), &conflict)
	assert.ErrorAs(t, svc.EnsureNoActiveConversation(ctx, "u2", "u1"), &conflict)
}

func TestEnsureNoActiveConversation_SoftDeletedPairIsFree(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)

	_, err = svc.UpdateConversation(ctx, created.ID, map[string]any{"delete": true})
	require.NoError(t, err)

	assert.NoError(t, svc.EnsureNoActiveConversation(ctx, "u1", "u2"))
}

func TestEnsureNoActiveConversation_Validation(t *testing.T) {
	svc := newTestService(t)

	var verr *ValidationError
	assert.ErrorAs(t, svc.EnsureNoActiveConversation(context.Background(), "", "u2"), &verr)
	assert.ErrorAs(t, svc.EnsureNoActiveConversation(context.Background(), "u1", ""), &verr)
}

func TestCreateConversation_DuplicateActiveConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)

	// Reversed participant order is the same pair
	_, err = svc.CreateConversation(ctx, &Conversation{UserID: "u2", UserID2: "u1"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.Conversation.ID)
}

func TestCreateConversation_AfterSoftDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)

	_, err = svc.UpdateConversation(ctx, first.ID, map[string]any{"delete": true})
	require.NoError(t, err)

	second, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The old conversation stays addressable for message history
	old, err := svc.GetConversationByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, old.Deleted)
}

func TestCreateConversation_PreservesPayload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, &Conversation{
		UserID:  "u1",
		UserID2: "u2",
		Fields:  map[string]any{"subject": "weekend plans"},
	})
	require.NoError(t, err)
	assert.Equal(t, "weekend plans", created.Fields["subject"])

	got, err := svc.GetConversationByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekend plans", got.Fields["subject"])
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "u2", got.UserID2)
}

func TestListConversationsForUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c1, err := svc.CreateConversation(ctx, &Conversation{UserID: "alice", UserID2: "bob"})
	require.NoError(t, err)
	_, err = svc.CreateConversation(ctx, &Conversation{UserID: "carol", UserID2: "alice"})
	require.NoError(t, err)
	_, err = svc.CreateConversation(ctx, &Conversation{UserID: "carol", UserID2: "dave"})
	require.NoError(t, err)

	// Soft-deleted conversations are still listed; filtering is the caller's job
	_, err = svc.UpdateConversation(ctx, c1.ID, map[string]any{"delete": true})
	require.NoError(t, err)

	convs, err := svc.ListConversationsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

func TestGetConversationByID_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetConversationByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestGetConversationByID_MessageIDIsNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)
	msg, err := svc.SaveMessage(ctx, &Message{ConversationID: conv.ID, Timestamp: 1})
	require.NoError(t, err)

	_, err = svc.GetConversationByID(ctx, msg.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateConversation_MergeNotOverwrite(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, &Conversation{
		UserID:  "u1",
		UserID2: "u2",
		Fields:  map[string]any{"subject": "old", "topic": "hotels"},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateConversation(ctx, created.ID, map[string]any{"subject": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", updated.Fields["subject"])
	assert.Equal(t, "hotels", updated.Fields["topic"])
	assert.Equal(t, "u1", updated.UserID)
	assert.Equal(t, "u2", updated.UserID2)
	assert.False(t, updated.Deleted)
}

func TestUpdateConversation_ParticipantsImmutable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateConversation(ctx, &Conversation{UserID: "u1", UserID2: "u2"})
	require.NoError(t, err)

	var verr *ValidationError
	_, err = svc.UpdateConversation(ctx, created.ID, map[string]any{"userId": "other"})
	assert.ErrorAs(t, err, &verr)
	_, err = svc.UpdateConversation(ctx, created.ID, map[string]any{"pairKey": "x|y"})
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateConversation_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpdateConversation(context.Background(), "nonexistent", map[string]any{"subject": "x"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
