package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
)

var (
	// ErrBusy is returned while another load or toggle of the same session
	// is in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrNothingLoaded is returned by operations that need a loaded snapshot.
	ErrNothingLoaded = errors.New("no mining stats loaded")
	// ErrSessionClosed is returned when the session was closed, including
	// while the request was in flight; the result is discarded.
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError reports malformed input detected before any store call
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid wallet address format: %q", e.Input)
}

// NotFoundError reports a provider or mining record that does not exist
type NotFoundError struct {
	Message string
	Err     error
}

func (e *NotFoundError) Error() string { return e.Message }
func (e *NotFoundError) Unwrap() error { return e.Err }

// DataIntegrityError reports a record that exists but violates its contract
type DataIntegrityError struct {
	Field   string
	Message string
	Err     error
}

func (e *DataIntegrityError) Error() string { return e.Message }
func (e *DataIntegrityError) Unwrap() error { return e.Err }

// RemoteError reports a failure of the store itself
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *RemoteError) Unwrap() error { return e.Err }

// ConflictError reports a conditional update that lost to a concurrent write
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return "mining record was modified by another session, reload and try again"
}
func (e *ConflictError) Unwrap() error { return e.Err }

const (
	msgProviderNotFound = "No provider found for this wallet address. Please make sure you have registered as a provider."
	msgMiningNotFound   = "No mining data found. Please initialize your mining account first."
)

// classify turns a gateway error into one of the typed errors above.
// notFound is the message used when the lookup matched no row.
func classify(op, notFound string, err error) error {
	var (
		nf *NotFoundError
		di *DataIntegrityError
		re *RemoteError
		ce *ConflictError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &nf), errors.As(err, &di), errors.As(err, &re), errors.As(err, &ce):
		return err
	case errors.Is(err, gateway.ErrNotFound):
		return &NotFoundError{Message: notFound, Err: err}
	case errors.Is(err, gateway.ErrConflict):
		return &ConflictError{Err: err}
	case errors.Is(err, gateway.ErrMalformedRow):
		return &DataIntegrityError{Message: "Invalid data returned by " + op + ": " + err.Error(), Err: err}
	default:
		// includes ErrMultipleRows: a single-row lookup that cannot be
		// satisfied is a failed fetch
		return &RemoteError{Op: op, Err: err}
	}
}

// LoadErrorMessage is the text shown when loading mining stats fails
func LoadErrorMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "Invalid wallet address format. Please enter a valid Ethereum address"
	}

	msg := "Failed to load mining data. "
	text := err.Error()
	switch {
	case strings.Contains(text, "JWT"):
		return msg + "Authentication failed. Please try again."
	case strings.Contains(text, "not found"):
		return msg + "Provider not found. Please check your wallet address."
	case text == "":
		return msg + "Please check your wallet address and try again."
	default:
		return msg + text
	}
}

// ToggleErrorMessage is the text shown when a mining toggle fails
func ToggleErrorMessage(err error) string {
	if text := err.Error(); text != "" {
		return text
	}
	return "Failed to update mining status"
}
