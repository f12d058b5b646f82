package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewStoreError(t *testing.T) {
	cause := errors.New("underlying error")

	err := NewStoreError(DependencyCycle, "swift-nio -> swift-collections -> swift-nio", cause)

	if err.Code != DependencyCycle {
		t.Errorf("Code = %v, want %v", err.Code, DependencyCycle)
	}
	if err.Message != "swift-nio -> swift-collections -> swift-nio" {
		t.Errorf("Message = %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestStoreError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      InvalidSymbolID,
			message:   "cannot decode symbol",
			cause:     errors.New("unexpected end of input"),
			wantParts: []string{"INVALID_SYMBOL_ID", "cannot decode symbol", "unexpected end of input"},
		},
		{
			name:      "without cause",
			code:      UnknownBranch,
			message:   "branch 'release' not found",
			cause:     nil,
			wantParts: []string{"UNKNOWN_BRANCH", "branch 'release' not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStoreError(tt.code, tt.message, tt.cause)
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	base := Errorf(ModuleCycle, "%s imports itself", "Core")
	wrapped := fmt.Errorf("ingesting batch: %w", base)

	code, ok := CodeOf(wrapped)
	if !ok || code != ModuleCycle {
		t.Errorf("CodeOf = %v, %v, want %v", code, ok, ModuleCycle)
	}
	if !HasCode(wrapped, ModuleCycle) {
		t.Error("HasCode = false")
	}
	if HasCode(errors.New("plain"), ModuleCycle) {
		t.Error("HasCode(plain) = true")
	}
}

func TestWithDetailsAndHint(t *testing.T) {
	err := Errorf(DependencyCycle, "cycle").
		WithDetails([]string{"a", "b", "a"}).
		WithHint(GetHint(DependencyCycle))

	if err.Details == nil {
		t.Error("Details not set")
	}
	if err.Hint == "" {
		t.Error("Hint not set")
	}
	if GetHint(InternalError) != "" {
		t.Error("InternalError should have no default hint")
	}
}
