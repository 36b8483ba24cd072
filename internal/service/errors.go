// Package service implements the progression and quest engine.
package service

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. NotFound and InvalidState errors are deterministic
// and caller-caused; Conflict on quest start is surfaced to the caller;
// StoreUnavailable marks transient persistence failures the caller may
// retry. The engine itself never retries.
var (
	ErrLocationNotFound  = errors.New("location not found")
	ErrQuestNotFound     = errors.New("quest not found")
	ErrUserQuestNotFound = errors.New("quest not started")
	ErrProgressNotFound  = errors.New("progress not found")
	ErrPhraseEmpty       = errors.New("phrase is empty")

	// ErrQuestAlreadyStarted is returned when starting a quest for which a
	// user quest row already exists, regardless of its status.
	ErrQuestAlreadyStarted = errors.New("quest already started")

	// ErrQuestNotActive is returned when advancing or abandoning a quest
	// that is in a terminal state.
	ErrQuestNotActive = errors.New("quest is not active")

	// ErrStoreUnavailable wraps transient store failures. Retry policy
	// belongs to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeErr marks a store failure as retryable while keeping the cause in
// the chain.
func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
