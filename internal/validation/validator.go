package validation

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrInvalidLogType = errors.New("invalid log type")
	ErrLogTypeTooLong = errors.New("log type exceeds 100 characters")
	ErrPathTraversal  = errors.New("path traversal detected")
)

const MaxLogTypeLength = 100

// Log Analytics custom table names: letters, digits and underscore only.
var ValidLogTypeRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateLogType applies the Data Collector naming rules at the agent edge so
// bad requests fail before they are signed and sent.
func ValidateLogType(logType string) error {
	if logType == "" {
		return ErrInvalidLogType
	}
	if len(logType) > MaxLogTypeLength {
		return ErrLogTypeTooLong
	}
	if !ValidLogTypeRegex.MatchString(logType) {
		return ErrInvalidLogType
	}
	return nil
}

// SanitizeSpoolPath resolves name under basePath and rejects anything that
// would escape it, including through symlinks. Components that do not exist
// yet are checked lexically against their nearest existing parent.
func SanitizeSpoolPath(basePath, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrPathTraversal
	}

	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return "", err
	}
	realBasePath, err := resolveExisting(absBasePath)
	if err != nil {
		return "", err
	}

	realPath, err := resolveExisting(filepath.Join(absBasePath, name))
	if err != nil {
		return "", err
	}

	relPath, err := filepath.Rel(realBasePath, realPath)
	if err != nil || relPath == "." || relPath == ".." ||
		strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return filepath.Clean(filepath.Join(basePath, name)), nil
}

// resolveExisting follows symlinks in the longest existing prefix of path and
// appends the rest unchanged.
func resolveExisting(path string) (string, error) {
	suffix := ""
	for {
		resolved, err := filepath.EvalSymlinks(path)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(path)
		if parent == path {
			return filepath.Join(path, suffix), nil
		}
		suffix = filepath.Join(filepath.Base(path), suffix)
		path = parent
	}
}
