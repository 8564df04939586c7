package version

import (
	"testing"

	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStateCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		running       string
		writtenBy     string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", running: "1.2.0", writtenBy: "1.2.0"},
		{name: "patch differs", running: "1.2.0", writtenBy: "1.2.7"},
		{name: "older minor", running: "1.4.0", writtenBy: "1.2.3"},
		{name: "v prefix", running: "v1.2.0", writtenBy: "1.2.0"},
		{name: "dev build", running: "dev", writtenBy: "3.0.0"},
		{name: "file from dev build", running: "1.2.0", writtenBy: "dev"},
		{name: "file without version", running: "1.2.0", writtenBy: ""},
		{
			name:          "newer minor",
			running:       "1.2.0",
			writtenBy:     "1.3.0",
			expectError:   true,
			errorContains: "newer release",
		},
		{
			name:          "major differs",
			running:       "2.0.0",
			writtenBy:     "1.9.0",
			expectError:   true,
			errorContains: "1.x.x",
		},
		{
			name:          "garbage in file",
			running:       "1.2.0",
			writtenBy:     "not-a-version",
			expectError:   true,
			errorContains: "invalid state file version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckStateCompatibility(tt.running, tt.writtenBy)
			if !tt.expectError {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestIncompatibleStateFileCode(t *testing.T) {
	err := CheckStateCompatibility("2.0.0", "1.0.0")
	assert.True(t, errors.HasCode(err, errors.ErrCodeStateFileFailed))
}
