// Package docstore provides schemaless document persistence for the chat
// data layer.
//
// # Architecture
//
// Documents are JSON bodies addressed by id and grouped into collections
// ("conversation", "message"). Two implementations exist:
//
//   - SQLiteStore: durable store; one documents table, expression indexes
//     over json_extract as the secondary-index and view surface
//   - MemStore: in-memory double with the same semantics, for tests
//
// # Query surface
//
// Three read paths, matching what the chat services need:
//
//   - Get: by document id
//   - ListByField / ListByAnyField: secondary-index lookups over a fixed
//     whitelist of indexed fields; anything else is ErrUnknownIndex
//   - ViewMessagesByConversation / ViewMessagesAfter: the message view,
//     pre-sorted ascending by (timestamp, id) within a conversation, with
//     offset paging and a cursor-position variant
//
// # Writes
//
// Create assigns a uuid and revision 1. Update is a merge: supplied
// fields overlay the stored body, unspecified fields are preserved, and
// the write is guarded by a revision compare-and-swap. A lost race is
// retried a bounded number of times before surfacing ErrRevConflict.
//
// A partial unique index over the pairKey field of non-deleted
// conversation documents enforces at-most-one-active-conversation-per-pair
// inside the store; collisions surface as ErrPairExists.
//
// All methods accept context.Context. Errors:
//
//   - ErrNotFound: document does not exist
//   - ErrRevConflict: compare-and-swap retry budget exhausted
//   - ErrPairExists: active conversation pair key collision
//   - ErrUnknownIndex: lookup on an unindexed field
package docstore
