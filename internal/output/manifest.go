package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cuitingzhao/companion/internal/runner"
)

const manifestFile = "replay.json"

type Manifest struct {
	Version     int              `json:"version"`
	Scripts     []string         `json:"scripts"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt time.Time        `json:"completedAt"`
	Duration    string           `json:"duration"`
	Platform    string           `json:"platform"`
	Config      ManifestConfig   `json:"config"`
	Results     []ManifestResult `json:"results"`
}

type ManifestConfig struct {
	BaseURL     string `json:"baseUrl"`
	Timeout     int    `json:"timeout"`
	MaxParallel int    `json:"maxParallel"`
}

type ManifestResult struct {
	Name           string `json:"name"`
	SessionID      string `json:"sessionId,omitempty"`
	UserID         int64  `json:"userId"`
	Status         string `json:"status"`
	Duration       string `json:"duration"`
	Stage          string `json:"stage"`
	GoalID         *int64 `json:"goalId,omitempty"`
	Error          string `json:"error,omitempty"`
	Dropped        int    `json:"dropped,omitempty"`
	TranscriptFile string `json:"transcriptFile"`
	PlanFile       string `json:"planFile,omitempty"`
}

func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", manifestFile, err)
	}
	return &m, nil
}

func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return AtomicWrite(filepath.Join(dir, manifestFile), data, 0o600)
}

// BuildManifest records a replay batch. File names follow SessionFileBase so
// they match what WriteResults puts on disk.
func BuildManifest(scripts []string, startedAt time.Time, results []runner.Result, cfg ManifestConfig) *Manifest {
	completedAt := time.Now()
	mResults := make([]ManifestResult, len(results))
	for i, r := range results {
		base := SessionFileBase(i, r.Name)
		mr := ManifestResult{
			Name:           r.Name,
			SessionID:      r.SessionID,
			UserID:         r.UserID,
			Status:         string(r.Status),
			Duration:       r.Duration.Round(time.Millisecond).String(),
			Stage:          r.Stage,
			GoalID:         r.GoalID,
			Error:          r.Error,
			Dropped:        r.Dropped,
			TranscriptFile: base + ".md",
		}
		if r.Plan != nil {
			mr.PlanFile = base + ".plan.json"
		}
		mResults[i] = mr
	}

	return &Manifest{
		Version:     1,
		Scripts:     scripts,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt).Round(time.Millisecond).String(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Config:      cfg,
		Results:     mResults,
	}
}

// WriteResults writes the transcript and plan of every replayed session.
func WriteResults(dir string, results []runner.Result) error {
	for i, r := range results {
		_, _, err := WriteSession(dir, SessionFileBase(i, r.Name), SessionExport{
			Name:      r.Name,
			SessionID: r.SessionID,
			UserID:    r.UserID,
			Stage:     r.Stage,
			GoalID:    r.GoalID,
			Messages:  r.Messages,
			Plan:      r.Plan,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", r.Name, err)
		}
	}
	return nil
}
