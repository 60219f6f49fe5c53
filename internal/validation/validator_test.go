package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLogType(t *testing.T) {
	tests := []struct {
		name    string
		logType string
		wantErr error
	}{
		{name: "simple", logType: "TestTable"},
		{name: "underscore and digits", logType: "app_events_2"},
		{name: "max length", logType: strings.Repeat("a", 100)},
		{name: "empty", logType: "", wantErr: ErrInvalidLogType},
		{name: "too long", logType: strings.Repeat("a", 101), wantErr: ErrLogTypeTooLong},
		{name: "dash", logType: "test-table", wantErr: ErrInvalidLogType},
		{name: "space", logType: "test table", wantErr: ErrInvalidLogType},
		{name: "path", logType: "../etc", wantErr: ErrInvalidLogType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogType(tt.logType)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSanitizeSpoolPath(t *testing.T) {
	base := t.TempDir()

	got, err := SanitizeSpoolPath(base, "TestTable")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "TestTable"), got)

	for _, name := range []string{"", "..", "../outside", "/etc/passwd", "."} {
		_, err := SanitizeSpoolPath(base, name)
		assert.ErrorIs(t, err, ErrPathTraversal, name)
	}
}

func TestSanitizeSpoolPath_NotYetCreated(t *testing.T) {
	base := t.TempDir()

	got, err := SanitizeSpoolPath(base, filepath.Join(".done", "TestTable", "batch..v2.json"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, ".done", "TestTable", "batch..v2.json"), got)
}

func TestSanitizeSpoolPath_SymlinkEscape(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(base, "TestTable")))

	_, err := SanitizeSpoolPath(base, filepath.Join("TestTable", "batch.json"))
	assert.ErrorIs(t, err, ErrPathTraversal)

	require.NoError(t, os.Mkdir(filepath.Join(base, "Inside"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(base, "Inside"), filepath.Join(base, "Alias")))

	_, err = SanitizeSpoolPath(base, filepath.Join("Alias", "batch.json"))
	assert.NoError(t, err)
}
