package game

import (
	stderrors "errors"

	"github.com/victornm/sketch/internal/errors"
)

var (
	ErrInsufficientPlayers = stderrors.New("insufficient players")
	ErrNotDrawer           = stderrors.New("not the current drawer")
	ErrNoActiveWord        = stderrors.New("no active word")
	ErrRoundActive         = stderrors.New("round already active")
	ErrNotSeated           = stderrors.New("connection is not in a room")
	ErrAlreadySeated       = stderrors.New("connection is already in a room")
	ErrUnknownWord         = stderrors.New("word was not offered")
)

func failedPrecondition(cause error, format string, args ...any) error {
	return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef(format, args...), errors.WithCause(cause))
}
