// Package chat implements the conversation and message data-access
// services.
//
// # Capabilities
//
// Service exposes two small capability interfaces hosts depend on:
//
//   - ConversationManager: conversation CRUD and pair uniqueness
//   - MessageStore: append-only messages with sorted and paged reads
//
// # Conversations
//
// A conversation links an unordered pair of participant ids. At most one
// active (non-soft-deleted) conversation may exist per pair. The check
// call (EnsureNoActiveConversation) is advisory; the actual guarantee
// comes from serializing creation per pair key and the store's unique
// active-pair index, so two racing creates cannot both succeed. Soft
// deleting a conversation frees the pair for a new conversation while the
// old document and its message history stay addressable.
//
// # Messages
//
// Messages are write-once. Full history reads fetch by secondary index
// and stable-sort by timestamp in memory; paged reads delegate ordering
// to the store's message view (offset paging per the external interface,
// cursor paging as the constant-cost path).
//
// # Errors
//
// ValidationError for bad input or failed lookups, ConflictError carrying
// the existing conversation, docstore.ErrNotFound for missing ids; other
// store failures propagate wrapped, never retried or swallowed. Empty
// result sets are a success.
package chat
