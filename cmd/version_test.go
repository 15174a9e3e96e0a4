package cmd

import (
	"bytes"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	c := newVersionCmd()

	if c.Use != "version" {
		t.Errorf("Expected Use to be 'version', got %s", c.Use)
	}
	if c.Run == nil {
		t.Error("Expected Run function to be set")
	}
}

func TestVersionCommandOutput(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	tests := []struct {
		version  string
		expected string
	}{
		{"1.2.3-test", "vitals version 1.2.3-test\n"},
		{"", "vitals version \n"},
	}

	for _, tt := range tests {
		rootCmd.Version = tt.version

		c := newVersionCmd()
		var buf bytes.Buffer
		c.SetOut(&buf)
		c.Run(c, nil)

		if buf.String() != tt.expected {
			t.Errorf("Expected output %q, got %q", tt.expected, buf.String())
		}
	}
}
