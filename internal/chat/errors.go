// ABOUTME: Error kinds surfaced by the chat services
// ABOUTME: ValidationError for bad input or failed lookups, ConflictError for duplicate active pairs

package chat

import "fmt"

// ValidationError reports malformed input or a failed index lookup.
// It is surfaced immediately and never retried.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConflictError reports that an active conversation already exists for the
// requested pair. It carries the existing conversation so the caller can
// redirect to it instead of failing outright.
type ConflictError struct {
	Conversation *Conversation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("active conversation %s already exists between %s and %s",
		e.Conversation.ID, e.Conversation.UserID, e.Conversation.UserID2)
}
