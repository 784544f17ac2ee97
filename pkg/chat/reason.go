package chat

import (
	"errors"
	"fmt"
)

// Reason classifies the outcome of a single generation call.
type Reason string

const (
	ReasonSuccess        Reason = "SUCCESS"
	ReasonNoCandidates   Reason = "NO_CANDIDATES"
	ReasonNoContent      Reason = "NO_CONTENT"
	ReasonNoParts        Reason = "NO_PARTS"
	ReasonNoText         Reason = "NO_TEXT"
	ReasonSafetyBlocked  Reason = "SAFETY_BLOCKED"
	ReasonTransportError Reason = "TRANSPORT_ERROR"
	ReasonUnknown        Reason = "UNKNOWN"
)

// Structural reports whether the reason describes a malformed response body.
func (r Reason) Structural() bool {
	switch r {
	case ReasonNoCandidates, ReasonNoContent, ReasonNoParts, ReasonNoText:
		return true
	}
	return false
}

// ReasonError is returned by providers when a response was received but could
// not be turned into text.
type ReasonError struct {
	Reason Reason
	Detail string
}

func (e *ReasonError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// NewReasonError builds a ReasonError with a formatted detail.
func NewReasonError(reason Reason, format string, args ...any) error {
	return &ReasonError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonFor extracts the classification carried by err, if any.
func ReasonFor(err error) (Reason, bool) {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
