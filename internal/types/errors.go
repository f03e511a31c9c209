package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure for disposition purposes: retry policy,
// HTTP status mapping, and whether it is safe to surface verbatim to a
// caller.
type ErrorKind int

const (
	_ ErrorKind = iota
	InvalidInput
	DuplicateCommitment
	BadProof
	NotRecoverable
	InsufficientPlacement
	ChainRpcTransient
	ChainRpcFatal
	Timeout
	StorageFull
	StorageCorrupt
	SetupLoadFailure
	InsufficientChunks
	CorruptChunk
	NotFound
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case DuplicateCommitment:
		return "DuplicateCommitment"
	case BadProof:
		return "BadProof"
	case NotRecoverable:
		return "NotRecoverable"
	case InsufficientPlacement:
		return "InsufficientPlacement"
	case ChainRpcTransient:
		return "ChainRpcTransient"
	case ChainRpcFatal:
		return "ChainRpcFatal"
	case Timeout:
		return "Timeout"
	case StorageFull:
		return "StorageFull"
	case StorageCorrupt:
		return "StorageCorrupt"
	case SetupLoadFailure:
		return "SetupLoadFailure"
	case InsufficientChunks:
		return "InsufficientChunks"
	case CorruptChunk:
		return "CorruptChunk"
	case NotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a disposition Kind and the
// operation that produced it, the way pkg/trie/proof.go's sentinel errors
// are wrapped with context via fmt.Errorf("...: %w", err) but typed so
// callers can switch on disposition instead of string-matching.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error, preserving the op/kind for disposition handling.
func Wrap(op string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err if it (or something it wraps) is
// an *Error, defaulting to ChainRpcFatal for unclassified errors since
// those should never be silently retried.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ChainRpcFatal
}

// HTTPStatus maps an ErrorKind to the status code the Dispenser and
// Provider HTTP handlers should return.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case InvalidInput, InsufficientChunks, CorruptChunk:
		return http.StatusBadRequest
	case DuplicateCommitment:
		return http.StatusConflict
	case BadProof:
		return http.StatusUnprocessableEntity
	case NotRecoverable, NotFound:
		return http.StatusNotFound
	case Timeout:
		return http.StatusGatewayTimeout
	case StorageFull:
		return http.StatusInsufficientStorage
	case StorageCorrupt, ChainRpcFatal, SetupLoadFailure:
		return http.StatusInternalServerError
	case ChainRpcTransient, InsufficientPlacement:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
