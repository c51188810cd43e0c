// Package output writes transcripts, plans and replay reports to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a session name into a file-name fragment. Names with no ASCII
// letters or digits (e.g. Chinese goal descriptions) become "session".
func Slug(name string) string {
	s := nonAlphaNum.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		return "session"
	}
	return s
}

// SessionFileBase names a session's files inside a replay directory. The
// index keeps sessions whose names slug alike apart.
func SessionFileBase(index int, name string) string {
	return fmt.Sprintf("%02d-%s", index+1, Slug(name))
}

// RunDir creates a fresh timestamped directory under baseDir. A random
// suffix keeps runs started in the same second apart.
func RunDir(baseDir, name string) (string, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path, err := os.MkdirTemp(baseDir, fmt.Sprintf("%s-%d-", Slug(name), time.Now().Unix()))
	if err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	return path, nil
}

func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".companion-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
