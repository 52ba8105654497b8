package swaps

import (
	"context"
	"errors"
	"fmt"
)

// ProviderErrorKind classifies a provider's business failure.
type ProviderErrorKind string

const (
	KindNoRoute         ProviderErrorKind = "no_route"
	KindUnsupportedPair ProviderErrorKind = "unsupported_pair"
	KindTimeout         ProviderErrorKind = "timeout"
	KindLowLiquidity    ProviderErrorKind = "low_liquidity"
	KindLowSlippage     ProviderErrorKind = "low_slippage"
	KindUnavailable     ProviderErrorKind = "unavailable"
	KindUnknown         ProviderErrorKind = "unknown"
)

// Transient reports whether the kind points at the provider rather than the pair.
func (k ProviderErrorKind) Transient() bool {
	switch k {
	case KindTimeout, KindUnavailable, KindUnknown:
		return true
	}
	return false
}

// ProviderError is a failed calculation for one provider. It is recorded in
// the aggregate state and never aborts a cycle.
type ProviderError struct {
	Provider ProviderType
	Kind     ProviderErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError of the given kind.
func NewProviderError(p ProviderType, kind ProviderErrorKind, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: p, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsProviderError converts any calculation error into a ProviderError.
// Context deadlines become timeouts; unrecognised errors become Unknown.
// A ProviderError without a provider is copied, never modified in place.
func AsProviderError(p ProviderType, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Provider != "" {
			return pe
		}
		c := *pe
		c.Provider = p
		return &c
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: p, Kind: KindTimeout, Message: "timed out", Err: err}
	}
	return &ProviderError{Provider: p, Kind: KindUnknown, Err: err}
}

// ConfigurationError means the request itself cannot be calculated.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid request (%s): %s", e.Field, e.Reason)
}

// ExecutionErrorKind classifies why a transaction could not be completed.
type ExecutionErrorKind string

const (
	ExecUserRejected     ExecutionErrorKind = "user_rejected"
	ExecNetwork          ExecutionErrorKind = "network"
	ExecSimulationFailed ExecutionErrorKind = "simulation_failed"
	ExecReverted         ExecutionErrorKind = "reverted"
	ExecUnsupportedChain ExecutionErrorKind = "unsupported_chain"
	ExecPrepare          ExecutionErrorKind = "prepare"
	ExecUnknown          ExecutionErrorKind = "unknown"
)

// ExecutionError is returned by execute and approve. TxHash is set when the
// network had already assigned a hash, meaning the transaction may still land.
type ExecutionError struct {
	Kind     ExecutionErrorKind
	Provider ProviderType
	TxHash   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s execution failed after submission %s (%s): %v", e.Provider, e.TxHash, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s execution failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Submitted reports whether a hash was assigned before the failure.
func (e *ExecutionError) Submitted() bool { return e.TxHash != "" }

// UnknownTradeShapeError is returned by projections that meet a Details value
// they do not recognise.
type UnknownTradeShapeError struct {
	Provider ProviderType
	Shape    string
}

func (e *UnknownTradeShapeError) Error() string {
	return fmt.Sprintf("unknown trade shape %s for provider %s", e.Shape, e.Provider)
}

// UserMessage turns any calculation or execution error into a short sentence
// suitable for end users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindNoRoute:
			return "No route found for this pair"
		case KindUnsupportedPair:
			return "This pair is not supported"
		case KindTimeout:
			return "Provider did not respond in time"
		case KindLowLiquidity:
			return "Not enough liquidity for this amount"
		case KindLowSlippage:
			return "Slippage tolerance is too low for this trade"
		case KindUnavailable:
			return "Provider is temporarily unavailable"
		}
		return "Provider returned an unexpected error"
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return "Invalid request: " + ce.Reason
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		switch ee.Kind {
		case ExecUserRejected:
			return "Transaction was rejected in the wallet"
		case ExecSimulationFailed:
			return "Transaction would fail on-chain"
		case ExecUnsupportedChain:
			return "Swaps from this blockchain are not supported"
		}
		if ee.Submitted() {
			return "Transaction submitted, outcome unknown: " + ee.TxHash
		}
		return "Transaction failed: " + string(ee.Kind)
	}
	return err.Error()
}
