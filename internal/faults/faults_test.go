package faults_test

import (
	"errors"
	"fmt"
	"testing"

	"casefile/internal/faults"
)

func TestWrapPreservesMarker(t *testing.T) {
	err := faults.Wrap(faults.ErrNotFound, "store", "get artifact", "artifact 42", nil)
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected wrapped error to match ErrNotFound, got %v", err)
	}
	if got := err.Error(); got != "not found: store: get artifact: artifact 42" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestWrapChainsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := faults.Wrap(faults.ErrTransient, "store", "put blob", "", cause)
	if !errors.Is(err, faults.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := faults.Wrap(nil, "ingest", "accept event", "boom", nil)
	if !errors.Is(err, faults.ErrTransient) {
		t.Fatalf("expected nil marker to default to ErrTransient, got %v", err)
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", faults.Wrap(faults.ErrValidation, "", "", "bad input", nil), "validation"},
		{"not_found", faults.Wrap(faults.ErrNotFound, "", "", "missing", nil), "not_found"},
		{"conflict", faults.Wrap(faults.ErrConflict, "", "", "taken", nil), "conflict"},
		{"constraint", faults.Wrap(faults.ErrConstraint, "", "", "unique", nil), "constraint"},
		{"unclassified", errors.New("anything else"), "transient"},
	}
	for _, tc := range cases {
		if got := faults.Kind(tc.err); got != tc.want {
			t.Fatalf("%s: expected kind %q, got %q", tc.name, tc.want, got)
		}
	}
}
