// Package pairlock provides a keyed mutex over canonical participant-pair
// keys.
//
// Conversation creation is a check-then-act sequence against the document
// store. Serializing each pair's creation through its own mutex, combined
// with the store's unique active-pair index, turns racing creates into a
// deterministic winner plus conflicts instead of duplicate conversations.
//
// Lock entries are reference counted and dropped when the last holder
// releases, so the registry does not grow with the number of pairs seen.
package pairlock
