// ABOUTME: Tests for the in-memory document store
// ABOUTME: Verifies MemStore mirrors the SQLite semantics used by service tests

package docstore

import (
	"context"
	"testing"
)

func TestMemStore_CreateGetUpdate(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc, err := store.Create(ctx, CollectionConversation, map[string]any{
		"userId": "u1", "userId2": "u2", "pairKey": "u1|u2", "subject": "trip",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.Update(ctx, doc.ID, map[string]any{"subject": "new"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Rev != 2 {
		t.Errorf("rev mismatch: got %d, want 2", updated.Rev)
	}
	if got := StringField(updated.Fields, "subject"); got != "new" {
		t.Errorf("subject mismatch: got %q, want %q", got, "new")
	}
	if got := StringField(updated.Fields, FieldUserID); got != "u1" {
		t.Errorf("merge dropped userId: got %q", got)
	}

	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}
	if _, err := store.Update(ctx, "missing", nil); err != ErrNotFound {
		t.Errorf("Update missing: got %v, want ErrNotFound", err)
	}
}

func TestMemStore_ActivePairUnique(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	fields := map[string]any{"userId": "u1", "userId2": "u2", "pairKey": "u1|u2"}

	first, err := store.Create(ctx, CollectionConversation, fields)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, CollectionConversation, fields); err != ErrPairExists {
		t.Fatalf("duplicate create: got %v, want ErrPairExists", err)
	}

	if _, err := store.Update(ctx, first.ID, map[string]any{FieldDelete: true}); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if _, err := store.Create(ctx, CollectionConversation, fields); err != nil {
		t.Fatalf("create after soft delete failed: %v", err)
	}
}

func TestMemStore_ListByFieldInsertionOrder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	var want []string
	for _, body := range []string{"a", "b", "c"} {
		doc, err := store.Create(ctx, CollectionMessage, map[string]any{
			"conversationId": "c1", "timestamp": int64(7), "body": body,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		want = append(want, doc.ID)
	}

	docs, err := store.ListByField(ctx, CollectionMessage, FieldConversationID, "c1")
	if err != nil {
		t.Fatalf("ListByField failed: %v", err)
	}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d", len(docs), len(want))
	}
	for i, doc := range docs {
		if doc.ID != want[i] {
			t.Errorf("index order not insertion order at %d: got %s, want %s", i, doc.ID, want[i])
		}
	}

	if _, err := store.ListByField(ctx, CollectionMessage, "body", "a"); err != ErrUnknownIndex {
		t.Errorf("unindexed lookup: got %v, want ErrUnknownIndex", err)
	}
}

func TestMemStore_ViewPaging(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	for _, ts := range []int64{3, 1, 2} {
		if _, err := store.Create(ctx, CollectionMessage, map[string]any{
			"conversationId": "c1", "timestamp": ts,
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := store.ViewMessagesByConversation(ctx, "c1", 0, 2)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	got := make([]int64, 0, len(page.Documents))
	for _, doc := range page.Documents {
		got = append(got, Int64Field(doc.Fields, FieldTimestamp))
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("page mismatch: got %v, want [1 2]", got)
	}

	cursorPage, err := store.ViewMessagesAfter(ctx, "c1", 0, "", 2)
	if err != nil {
		t.Fatalf("cursor view failed: %v", err)
	}
	if !cursorPage.HasMore {
		t.Error("expected HasMore on first cursor page")
	}
}

func TestMemStore_ViewLimitCapped(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	for ts := int64(1); ts <= int64(MaxViewLimit)+2; ts++ {
		if _, err := store.Create(ctx, CollectionMessage, map[string]any{
			"conversationId": "c1", "timestamp": ts,
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := store.ViewMessagesByConversation(ctx, "c1", 0, MaxViewLimit+2)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(page.Documents) != MaxViewLimit {
		t.Errorf("offset view returned %d docs, want cap %d", len(page.Documents), MaxViewLimit)
	}

	cursorPage, err := store.ViewMessagesAfter(ctx, "c1", 0, "", MaxViewLimit+2)
	if err != nil {
		t.Fatalf("cursor view failed: %v", err)
	}
	if len(cursorPage.Documents) != MaxViewLimit {
		t.Errorf("cursor view returned %d docs, want cap %d", len(cursorPage.Documents), MaxViewLimit)
	}
	if !cursorPage.HasMore {
		t.Error("expected HasMore when rows remain past the cap")
	}
}

func TestMemStore_CopiesAreIsolated(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	doc, err := store.Create(ctx, CollectionMessage, map[string]any{
		"conversationId": "c1", "timestamp": int64(1), "body": "hi",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Mutating the returned copy must not touch stored state
	doc.Fields["body"] = "tampered"

	got, err := store.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if StringField(got.Fields, "body") != "hi" {
		t.Error("stored document was mutated through a returned copy")
	}
}
