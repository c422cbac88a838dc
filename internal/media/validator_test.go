package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	tmpDir := t.TempDir()
	readable := filepath.Join(tmpDir, "clip.mp4")
	require.NoError(t, os.WriteFile(readable, []byte("test content"), 0644))

	tests := []struct {
		name       string
		path       string
		wantOK     bool
		wantReason string
	}{
		{name: "readable file", path: readable, wantOK: true},
		{name: "missing file", path: filepath.Join(tmpDir, "missing.mp4"), wantReason: "does not exist"},
		{name: "directory", path: tmpDir, wantReason: "directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateFile(tt.path)

			assert.Equal(t, tt.wantOK, result.Readable)
			if tt.wantOK {
				assert.Empty(t, result.Reasons)
				return
			}
			require.Len(t, result.Reasons, 1)
			assert.Contains(t, result.Reasons[0], tt.wantReason)
		})
	}
}

func TestValidateFile_PermissionDenied(t *testing.T) {
	// Skip on Windows as permission handling is different
	if os.PathSeparator == '\\' {
		t.Skip("Skipping permission test on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}

	tmpFile := filepath.Join(t.TempDir(), "unreadable.mp3")
	require.NoError(t, os.WriteFile(tmpFile, []byte("test content"), 0000))
	defer func() { _ = os.Chmod(tmpFile, 0644) }()

	result := ValidateFile(tmpFile)

	assert.False(t, result.Readable)
	assert.NotEmpty(t, result.Reasons)
}
