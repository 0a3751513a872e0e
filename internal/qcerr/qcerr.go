// Package qcerr defines the typed errors returned by QC engine operations.
//
// Every error carries a coarse Code that callers map to transport statuses and
// a stable Reason that identifies the specific failure. errors.Is compares
// reasons, so a detailed error matches its sentinel:
//
//	if errors.Is(err, qcerr.ErrInspectorOverloaded) { ... }
package qcerr

import (
	"errors"
	"fmt"
)

// Code is the failure class of an error.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION_FAILED"
	CodePrecondition Code = "PRECONDITION_FAILED"
	CodeConflict     Code = "CONFLICT"
)

// Error is a classified QC engine error.
type Error struct {
	Code    Code
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// Sentinels.
var (
	ErrProductionOrderNotFound = &Error{Code: CodeNotFound, Reason: "PRODUCTION_ORDER_NOT_FOUND"}
	ErrInspectionNotFound      = &Error{Code: CodeNotFound, Reason: "INSPECTION_NOT_FOUND"}
	ErrCertificateNotFound     = &Error{Code: CodeNotFound, Reason: "CERTIFICATE_NOT_FOUND"}
	ErrInspectorNotFound       = &Error{Code: CodeNotFound, Reason: "INSPECTOR_NOT_FOUND"}
	ErrReworkNotFound          = &Error{Code: CodeNotFound, Reason: "REWORK_NOT_FOUND"}
	ErrInvalidChecklist        = &Error{Code: CodeValidation, Reason: "INVALID_CHECKLIST"}
	ErrInvalidStage            = &Error{Code: CodeValidation, Reason: "INVALID_STAGE"}
	ErrInvalidCertificateType  = &Error{Code: CodeValidation, Reason: "INVALID_CERTIFICATE_TYPE"}
	ErrMissingField            = &Error{Code: CodeValidation, Reason: "MISSING_FIELD"}
	ErrNoPassedInspections     = &Error{Code: CodePrecondition, Reason: "NO_PASSED_INSPECTIONS"}
	ErrApprovalAlreadyResolved = &Error{Code: CodePrecondition, Reason: "APPROVAL_ALREADY_RESOLVED"}
	ErrInspectorOverloaded     = &Error{Code: CodePrecondition, Reason: "INSPECTOR_OVERLOADED"}
	ErrInspectionAlreadyDone   = &Error{Code: CodePrecondition, Reason: "INSPECTION_ALREADY_RECORDED"}
	ErrInvalidCertificateState = &Error{Code: CodePrecondition, Reason: "INVALID_CERTIFICATE_STATE"}
	ErrInvalidReworkTransition = &Error{Code: CodePrecondition, Reason: "INVALID_REWORK_TRANSITION"}
	ErrConcurrentModification  = &Error{Code: CodeConflict, Reason: "CONCURRENT_MODIFICATION"}
)

// New returns a copy of base carrying a formatted message.
func New(base *Error, format string, args ...any) *Error {
	return &Error{
		Code:    base.Code,
		Reason:  base.Reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns a copy of base carrying a message and an underlying cause.
func Wrap(base *Error, err error, format string, args ...any) *Error {
	e := New(base, format, args...)
	e.Err = err
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" when err
// is not a classified error.
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Reason
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }
