package qcerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_MatchesSentinel(t *testing.T) {
	err := New(ErrInspectorOverloaded, "inspector %s has %d pending inspections", "emp-1", 10)
	if !errors.Is(err, ErrInspectorOverloaded) {
		t.Fatalf("errors.Is(%v, ErrInspectorOverloaded) = false", err)
	}
	if errors.Is(err, ErrInspectorNotFound) {
		t.Error("overloaded error should not match ErrInspectorNotFound")
	}
	if err.Error() != "inspector emp-1 has 10 pending inspections" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrap_MatchesThroughFmtWrapping(t *testing.T) {
	cause := errors.New("row vanished")
	err := fmt.Errorf("inspection: record: %w", Wrap(ErrConcurrentModification, cause, "inspection %s changed", "abc"))

	if !errors.Is(err, ErrConcurrentModification) {
		t.Error("wrapped error should match its sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should expose its cause")
	}
	if got := CodeOf(err); got != CodeConflict {
		t.Errorf("CodeOf = %q, want %q", got, CodeConflict)
	}
	if !IsConflict(err) {
		t.Error("IsConflict = false")
	}
}

func TestCodeOf_Unclassified(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if got := ReasonOf(nil); got != "" {
		t.Errorf("ReasonOf(nil) = %q, want empty", got)
	}
}

func TestError_FallsBackToReason(t *testing.T) {
	if got := ErrNoPassedInspections.Error(); got != "NO_PASSED_INSPECTIONS" {
		t.Errorf("Error() = %q", got)
	}
	if !IsNotFound(New(ErrCertificateNotFound, "certificate %s", "x")) {
		t.Error("IsNotFound = false for certificate not found")
	}
}
