package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RunInfo is one replay directory found under the output dir.
type RunInfo struct {
	Name  string
	Path  string
	Mtime time.Time
}

var ageUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
	{"w", 7 * 24 * time.Hour},
}

// ParseAge accepts 90m, 12h, 3d, 2w and so on. A bare number means days.
func ParseAge(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("empty duration")
	}

	num, unit := input, 24*time.Hour
	for _, u := range ageUnits {
		if strings.HasSuffix(input, u.suffix) {
			num, unit = strings.TrimSuffix(input, u.suffix), u.unit
			break
		}
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	return time.Duration(n * float64(unit)), nil
}

// ScanOlderThan lists replay directories last modified before cutoff,
// oldest first. Symlinks and plain files are skipped; a missing baseDir is
// not an error.
func ScanOlderThan(baseDir string, cutoff time.Time) ([]RunInfo, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading output dir: %w", err)
	}

	var runs []RunInfo
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink != 0 || !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		runs = append(runs, RunInfo{
			Name:  entry.Name(),
			Path:  filepath.Join(baseDir, entry.Name()),
			Mtime: info.ModTime(),
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Mtime.Before(runs[j].Mtime) })
	return runs, nil
}
