package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

func TestCLIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CLIError
		expected string
	}{
		{
			name: "error without cause",
			err: &CLIError{
				Code:    ExitError,
				Message: "something went wrong",
			},
			expected: "something went wrong",
		},
		{
			name: "error with cause",
			err: &CLIError{
				Code:    ExitError,
				Message: "operation failed",
				Cause:   errors.New("underlying error"),
			},
			expected: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.err.Error())
			}
		})
	}
}

func TestCLIError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &CLIError{
		Code:    ExitError,
		Message: "wrapper",
		Cause:   cause,
	}

	if err.Unwrap() != cause {
		t.Errorf("expected unwrapped error to be %v, got %v", cause, err.Unwrap())
	}

	errNoCause := &CLIError{Code: ExitError, Message: "no cause"}
	if errNoCause.Unwrap() != nil {
		t.Error("expected Unwrap to return nil for error without cause")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original error")
	wrapped := WrapError(ExitConfigError, "config failed", cause)

	if wrapped.Code != ExitConfigError {
		t.Errorf("expected code %d, got %d", ExitConfigError, wrapped.Code)
	}
	if wrapped.Message != "config failed" {
		t.Errorf("expected message %q, got %q", "config failed", wrapped.Message)
	}
	if wrapped.Cause != cause {
		t.Errorf("expected cause %v, got %v", cause, wrapped.Cause)
	}
}

func TestNewCLIError(t *testing.T) {
	err := NewCLIError(ExitTimeout, "operation timed out")

	if err.Code != ExitTimeout {
		t.Errorf("expected code %d, got %d", ExitTimeout, err.Code)
	}
	if err.Message != "operation timed out" {
		t.Errorf("expected message %q, got %q", "operation timed out", err.Message)
	}
	if err.Cause != nil {
		t.Errorf("expected no cause, got %v", err.Cause)
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		wantOutput   string
	}{
		{
			name:         "nil error",
			err:          nil,
			expectedCode: ExitSuccess,
		},
		{
			name:         "context canceled",
			err:          context.Canceled,
			expectedCode: ExitCancelled,
			wantOutput:   "Operation cancelled",
		},
		{
			name:         "context deadline exceeded",
			err:          context.DeadlineExceeded,
			expectedCode: ExitTimeout,
			wantOutput:   "Operation timed out",
		},
		{
			name:         "CLI error carries its code",
			err:          NewCLIError(ExitPartial, "load completed with 3 record errors"),
			expectedCode: ExitPartial,
			wantOutput:   "load completed with 3 record errors",
		},
		{
			name:         "config error code",
			err:          types.NewError(types.CONFIG_VALIDATION_FAILED, "bad batch size"),
			expectedCode: ExitConfigError,
			wantOutput:   "bad batch size",
		},
		{
			name:         "graph error code",
			err:          types.NewError(types.GRAPH_CONNECTION_FAILED, "connection refused"),
			expectedCode: ExitGraphError,
			wantOutput:   "connection refused",
		},
		{
			name:         "load error code maps to graph exit",
			err:          types.NewError(types.LOAD_BATCH_FAILED, "chunk failed"),
			expectedCode: ExitGraphError,
		},
		{
			name:         "ledger error code",
			err:          types.NewError(types.LEDGER_WRITE_FAILED, "disk full"),
			expectedCode: ExitLedgerError,
		},
		{
			name:         "generic error",
			err:          errors.New("boom"),
			expectedCode: ExitError,
			wantOutput:   "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			var buf bytes.Buffer
			cmd.SetErr(&buf)

			code := HandleError(cmd, tt.err)
			if code != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, code)
			}
			if tt.wantOutput != "" && !strings.Contains(buf.String(), tt.wantOutput) {
				t.Errorf("expected output to contain %q, got %q", tt.wantOutput, buf.String())
			}
		})
	}
}

func TestHandleError_VerboseCause(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().BoolP("verbose", "v", false, "")
	var buf bytes.Buffer
	cmd.SetErr(&buf)

	err := WrapError(ExitGraphError, "load failed", errors.New("socket closed"))

	// Without --verbose the cause stays hidden
	code := HandleError(cmd, err)
	if code != ExitGraphError {
		t.Errorf("expected exit code %d, got %d", ExitGraphError, code)
	}
	if strings.Contains(buf.String(), "socket closed") {
		t.Errorf("expected cause to be hidden without verbose, got %q", buf.String())
	}

	buf.Reset()
	if err := cmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatalf("failed to set verbose flag: %v", err)
	}
	HandleError(cmd, err)
	if !strings.Contains(buf.String(), "socket closed") {
		t.Errorf("expected cause in verbose output, got %q", buf.String())
	}
}
