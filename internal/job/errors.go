package job

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RetryCeiling is the number of dispatches allowed per item and phase.
// Exceeding it aborts the run: persistent failure of one item points at the
// prompt or the model, not at bad luck.
const RetryCeiling = 25

var (
	// ErrRetryCeiling is wrapped by FatalItemError.
	ErrRetryCeiling = errors.New("item exceeded the retry ceiling")
	// ErrGenerationFailed is returned when a batch could not get a usable
	// reply even after the chat history was reset.
	ErrGenerationFailed = errors.New("generation failed")

	errEmptyReply   = errors.New("empty reply")
	errHistoryReset = errors.New("chat history reset after repeated failures")
)

// FatalItemError names the item that exhausted its attempts, with its full
// state at the time.
type FatalItemError struct {
	Phase string
	ID    int
	State string
}

func newFatalItemError(phase string, it any, id int) *FatalItemError {
	state, err := json.Marshal(it)
	if err != nil {
		state = []byte(fmt.Sprintf("%+v", it))
	}
	return &FatalItemError{Phase: phase, ID: id, State: string(state)}
}

func (e *FatalItemError) Error() string {
	return fmt.Sprintf("%s: item %d exceeded %d attempts: %s", e.Phase, e.ID, RetryCeiling, e.State)
}

func (e *FatalItemError) Unwrap() error { return ErrRetryCeiling }
