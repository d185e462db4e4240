package errors

import (
	"errors"
	"strings"
	"testing"
)

// TestCreateError tests CreateError type.
func TestCreateError(t *testing.T) {
	baseErr := errors.New("dial tcp: connection refused")
	cerr := NewCreateError("cache", baseErr)

	// Test Error() method
	errStr := cerr.Error()
	if !strings.Contains(errStr, "cache") {
		t.Errorf("Error string should contain pool name: %q", errStr)
	}
	if !strings.Contains(errStr, "connection refused") {
		t.Errorf("Error string should contain base error: %q", errStr)
	}

	// Test Unwrap() method
	unwrapped := cerr.Unwrap()
	if unwrapped != baseErr {
		t.Errorf("Unwrap() returned %v, want %v", unwrapped, baseErr)
	}

	// Test fields
	if cerr.Pool != "cache" {
		t.Errorf("Pool = %q, want %q", cerr.Pool, "cache")
	}
	if cerr.Err != baseErr {
		t.Errorf("Err = %v, want %v", cerr.Err, baseErr)
	}
}

// TestOperationError tests OperationError type.
func TestOperationError(t *testing.T) {
	baseErr := errors.New("read timeout")
	oerr := NewOperationError(4, baseErr)

	// Test Error() method
	errStr := oerr.Error()
	if !strings.Contains(errStr, "4 attempts") {
		t.Errorf("Error string should contain attempt count: %q", errStr)
	}
	if !strings.Contains(errStr, "read timeout") {
		t.Errorf("Error string should contain base error: %q", errStr)
	}

	// Test Unwrap() method
	unwrapped := oerr.Unwrap()
	if unwrapped != baseErr {
		t.Errorf("Unwrap() returned %v, want %v", unwrapped, baseErr)
	}

	// Test fields
	if oerr.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", oerr.Attempts)
	}
	if oerr.Err != baseErr {
		t.Errorf("Err = %v, want %v", oerr.Err, baseErr)
	}
}

// TestIsFunction tests the Is helper function.
func TestIsFunction(t *testing.T) {
	// Test with sentinel error
	err := ErrPoolClosed
	if !Is(err, ErrPoolClosed) {
		t.Error("Is() should return true for matching sentinel error")
	}

	// Test with wrapped error
	wrappedErr := NewCreateError("sessions", ErrBackendUnavailable)
	if !Is(wrappedErr, ErrBackendUnavailable) {
		t.Error("Is() should return true for wrapped sentinel error")
	}

	// Test with non-matching error
	if Is(err, ErrAcquireTimeout) {
		t.Error("Is() should return false for non-matching error")
	}
}

// TestAsFunction tests the As helper function.
func TestAsFunction(t *testing.T) {
	// Create a CreateError
	cerr := NewCreateError("cache", ErrBackendUnavailable)

	// Test with matching type
	var target *CreateError
	if !As(cerr, &target) {
		t.Error("As() should return true for matching type")
	}
	if target.Pool != "cache" {
		t.Errorf("As() extracted Pool = %q, want %q", target.Pool, "cache")
	}

	// Test with non-matching type
	var opErr *OperationError
	if As(cerr, &opErr) {
		t.Error("As() should return false for non-matching type")
	}
}

// TestSentinelErrors tests all sentinel error definitions.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		// Pool errors
		{"ErrPoolClosed", ErrPoolClosed},
		{"ErrAcquireTimeout", ErrAcquireTimeout},
		{"ErrPoolExhausted", ErrPoolExhausted},
		{"ErrConnReleased", ErrConnReleased},
		// Manager errors
		{"ErrPoolNotFound", ErrPoolNotFound},
		{"ErrManagerClosed", ErrManagerClosed},
		// Backend errors
		{"ErrNotConnected", ErrNotConnected},
		{"ErrBackendUnavailable", ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s is nil", tt.name)
			}
			errStr := tt.err.Error()
			if errStr == "" {
				t.Errorf("%s.Error() returned empty string", tt.name)
			}
		})
	}
}

// TestErrorWrapping tests error wrapping with CreateError.
func TestErrorWrapping(t *testing.T) {
	baseErr := ErrBackendUnavailable
	wrapped := NewCreateError("cache", baseErr)

	// Test that wrapped error contains base error
	if !errors.Is(wrapped, baseErr) {
		t.Error("Wrapped error should match base error with errors.Is")
	}

	// Test double wrapping
	doubleWrapped := NewOperationError(2, wrapped)
	if !errors.Is(doubleWrapped, baseErr) {
		t.Error("Double-wrapped error should still match base error")
	}

	// Extract CreateError through the outer wrapper
	var createErr *CreateError
	if !errors.As(doubleWrapped, &createErr) {
		t.Error("Should be able to extract CreateError from double-wrapped")
	}
	if createErr.Pool != "cache" {
		t.Errorf("Extracted Pool = %q, want %q", createErr.Pool, "cache")
	}
}

// TestMixedErrorTypes tests mixing CreateError and OperationError.
func TestMixedErrorTypes(t *testing.T) {
	createErr := NewCreateError("sessions", ErrNotConnected)
	opErr := NewOperationError(3, createErr)

	// Should be able to unwrap to both types
	var ce *CreateError
	if !errors.As(opErr, &ce) {
		t.Error("Should be able to extract CreateError from OperationError wrapper")
	}

	var oe *OperationError
	if !errors.As(opErr, &oe) {
		t.Error("Should be able to extract OperationError")
	}

	// Should match base sentinel error
	if !errors.Is(opErr, ErrNotConnected) {
		t.Error("Should match base sentinel error through multiple wrappers")
	}
}

// TestErrorContextPreservation tests that error context is preserved.
func TestErrorContextPreservation(t *testing.T) {
	err := NewCreateError("cache", ErrBackendUnavailable)
	wrapped := NewOperationError(2, err)

	// Both contexts should be in error string
	errStr := wrapped.Error()
	if !strings.Contains(errStr, "2 attempts") {
		t.Errorf("Error string missing attempt count: %q", errStr)
	}
	if !strings.Contains(errStr, "cache") {
		t.Errorf("Error string missing pool name: %q", errStr)
	}
	if !strings.Contains(errStr, "unavailable") {
		t.Errorf("Error string missing base error: %q", errStr)
	}
}

// TestNilErrorHandling tests handling of nil errors.
func TestNilErrorHandling(t *testing.T) {
	// Is with nil error
	if Is(nil, ErrPoolClosed) {
		t.Error("Is(nil, target) should return false")
	}

	// As with nil error
	var target *CreateError
	if As(nil, &target) {
		t.Error("As(nil, target) should return false")
	}
}
