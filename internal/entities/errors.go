package entities

import (
	"errors"
	"fmt"
)

var (
	ErrUserInput         = errors.New("invalid input")
	ErrNotReady          = errors.New("not ready")
	ErrStorageContention = errors.New("storage contention")
	ErrNotSupported      = errors.New("not supported")
)

var (
	ErrInvalidCode       = fmt.Errorf("%w: invalid verification code", ErrUserInput)
	ErrInvalidPassword   = fmt.Errorf("%w: invalid password", ErrUserInput)
	ErrOutOfRange        = fmt.Errorf("%w: value out of range", ErrUserInput)
	ErrInvalidRule       = fmt.Errorf("%w: malformed rule", ErrUserInput)
	ErrNoSession         = fmt.Errorf("%w: no session for tenant", ErrNotReady)
	ErrNoBaseline        = fmt.Errorf("%w: no profile baseline", ErrNotReady)
	ErrNoCodeRequested   = fmt.Errorf("%w: no verification code requested", ErrNotReady)
	ErrNoPasswordPending = fmt.Errorf("%w: no password requested", ErrNotReady)
	ErrTenantNotFound    = fmt.Errorf("%w: tenant not found", ErrNotReady)
)

// ErrDuplicatedSessionKey is returned by platform clients when the stored
// session key is already in use elsewhere.
var ErrDuplicatedSessionKey = errors.New("session key duplicated")

type InsufficientEnergyError struct {
	Current  int
	Required int
}

func (e *InsufficientEnergyError) Error() string {
	return fmt.Sprintf("insufficient energy: have %d, need %d", e.Current, e.Required)
}

// FloodWaitError is the platform telling us to back off for Seconds.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait for %d seconds", e.Seconds)
}
