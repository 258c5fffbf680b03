package checkout

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
)

// FailureReason distinguishes why a submitted sale did not commit.
type FailureReason string

const (
	ReasonNetwork  FailureReason = "network"
	ReasonRejected FailureReason = "rejected"
)

// SaleError is returned by a Submitter when the sale did not commit.
type SaleError struct {
	Reason  FailureReason
	Message string
	Err     error
}

// NewNetworkError reports a transport failure or timeout.
func NewNetworkError(message string, err error) *SaleError {
	return &SaleError{Reason: ReasonNetwork, Message: message, Err: err}
}

// NewRejectedError reports a business rejection such as a stock conflict.
func NewRejectedError(message string) *SaleError {
	return &SaleError{Reason: ReasonRejected, Message: message}
}

func (e *SaleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sale %s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("sale %s: %s", e.Reason, e.Message)
}

func (e *SaleError) Unwrap() error {
	return e.Err
}

func errEmptyCart() error {
	return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no lines")
}

func errInProgress(sessionID string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already in progress").
		WithDetails(map[string]any{"session_id": sessionID})
}

// checkoutFailed classifies a submit error. Anything that is not an explicit
// rejection is treated as a network failure.
func checkoutFailed(err error) *pkgerrors.Error {
	reason := ReasonNetwork
	message := "sale service unreachable"

	var saleErr *SaleError
	switch {
	case errors.As(err, &saleErr):
		reason = saleErr.Reason
		if saleErr.Message != "" {
			message = saleErr.Message
		}
	case errors.Is(err, context.DeadlineExceeded):
		message = "sale service timed out"
	}
	if reason != ReasonRejected {
		reason = ReasonNetwork
	}

	return pkgerrors.Wrap(pkgerrors.CodeCheckoutFailed, err, message).
		WithDetails(map[string]any{"reason": string(reason)})
}

// FailureReasonOf extracts the reason from a CHECKOUT_FAILED error.
func FailureReasonOf(err error) (FailureReason, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCheckoutFailed {
		return "", false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := details["reason"].(string)
	if !ok {
		return "", false
	}
	return FailureReason(reason), true
}
