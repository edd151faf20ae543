package main

import (
	"testing"

	"github.com/hollomancer/sbir-analytics-sub002/cmd/sbirgraph/internal"
)

func TestGlobalFlags_GetOutputFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		expected internal.OutputFormat
	}{
		{
			name:     "text format",
			format:   "text",
			expected: internal.FormatText,
		},
		{
			name:     "json format",
			format:   "json",
			expected: internal.FormatJSON,
		},
		{
			name:     "empty defaults to text",
			format:   "",
			expected: internal.FormatText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := &GlobalFlags{OutputFormat: tt.format}
			if got := flags.GetOutputFormat(); got != tt.expected {
				t.Errorf("expected format %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestGlobalFlags_IsVerbose(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		quiet    bool
		expected bool
	}{
		{
			name:     "verbose without quiet returns true",
			verbose:  true,
			quiet:    false,
			expected: true,
		},
		{
			name:     "verbose with quiet returns false",
			verbose:  true,
			quiet:    true,
			expected: false,
		},
		{
			name:     "not verbose returns false",
			verbose:  false,
			quiet:    false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := &GlobalFlags{Verbose: tt.verbose, Quiet: tt.quiet}
			if got := flags.IsVerbose(); got != tt.expected {
				t.Errorf("expected IsVerbose()=%v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGlobalFlags_IsQuiet(t *testing.T) {
	flags := &GlobalFlags{Quiet: true}
	if !flags.IsQuiet() {
		t.Error("expected IsQuiet() to return true")
	}

	flags = &GlobalFlags{Quiet: false}
	if flags.IsQuiet() {
		t.Error("expected IsQuiet() to return false")
	}
}
