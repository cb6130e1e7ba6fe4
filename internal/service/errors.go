package service

import (
	"errors"
	"fmt"
)

// Service-level errors mapped to HTTP status classes by the handlers.
var (
	// ErrValidation covers missing or malformed caller input (400).
	ErrValidation = errors.New("invalid request")

	// ErrUnknownProvider is a validation error for unsupported provider names.
	ErrUnknownProvider = fmt.Errorf("unknown provider: %w", ErrValidation)
)

// Callback failure reasons carried on the error redirect.
const (
	ReasonMissingParams = "missing_params"
	ReasonServerConfig  = "server_config"
	ReasonInvalidState  = "invalid_state"
	ReasonTokenExchange = "token_exchange"
	ReasonDBSave        = "db_save"
	ReasonUnknown       = "unknown"
)

// CallbackError is the terminal outcome of a failed callback transition.
// Callbacks never surface JSON errors; the handler turns the reason into a
// tagged redirect.
type CallbackError struct {
	Reason string
	Err    error
}

func (e *CallbackError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

func callbackErr(reason string, err error) *CallbackError {
	return &CallbackError{Reason: reason, Err: err}
}
