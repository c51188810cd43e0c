package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuitingzhao/companion/internal/backend"
	"github.com/cuitingzhao/companion/internal/config"
	"github.com/cuitingzhao/companion/internal/onboarding"
	"github.com/cuitingzhao/companion/internal/output"
	"github.com/cuitingzhao/companion/internal/stub"
)

func stubURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(stub.NewServer(stub.DefaultScript(), nil).Handler())
	t.Cleanup(ts.Close)
	return ts.URL + stub.APIPrefix
}

func newStubController(t *testing.T, candidate string) *onboarding.Controller {
	t.Helper()
	client, err := backend.New(stubURL(t))
	require.NoError(t, err)
	ctrl := onboarding.New(client, onboarding.Options{UserID: 5, CandidateDescription: candidate})
	t.Cleanup(func() {
		ctrl.Close()
		ctrl.Wait()
	})
	return ctrl
}

func TestChatLines_CompletesWalkthrough(t *testing.T) {
	ctrl := newStubController(t, "learn piano")
	var out bytes.Buffer

	in := strings.NewReader("three hours\n\n/mode\nyes, looks right\nnever read\n")
	require.NoError(t, chatLines(context.Background(), ctrl, in, &out))

	got := out.String()
	assert.Contains(t, got, "== Tell me about your goal\n")
	assert.Contains(t, got, "companion> Nice! How much time can you give it each week?\n")
	assert.Contains(t, got, "== Setting your goal\n")
	assert.Contains(t, got, "(input mode: voice)\n")
	assert.Contains(t, got, "companion> Your plan is ready!\n")
	assert.NotContains(t, got, "learn piano")

	s := ctrl.Snapshot()
	assert.True(t, s.IsCompleted())
	require.NotNil(t, s.Plan)
	for _, m := range s.Messages {
		assert.NotEqual(t, "never read", m.Text)
	}
}

func TestChatLines_GreetingAndQuit(t *testing.T) {
	ctrl := newStubController(t, "")
	var out bytes.Buffer

	require.NoError(t, chatLines(context.Background(), ctrl, strings.NewReader("/quit\nhello\n"), &out))
	assert.Contains(t, out.String(), "companion> "+onboarding.DefaultGreeting)
	assert.Len(t, ctrl.Snapshot().Messages, 1)
}

func TestChatLines_InterruptWhileWaitingForInput(t *testing.T) {
	ctrl := newStubController(t, "")
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- chatLines(ctx, ctrl, pr, io.Discard) }()

	require.Eventually(t, func() bool { return len(ctrl.Snapshot().Messages) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("chatLines still blocked on input after interrupt")
	}
	assert.False(t, ctrl.Submit("too late"))
}

func TestExportChat(t *testing.T) {
	ctrl := newStubController(t, "learn piano")
	ctrl.Start()
	ctrl.Wait()

	dir, err := exportChat(t.TempDir(), ctrl.Snapshot(), 5)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "transcript.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "learn piano")
	_, err = os.Stat(filepath.Join(dir, "transcript.plan.json"))
	assert.True(t, os.IsNotExist(err))
}

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.Save(cfg, path))
	return path
}

func TestReplayCommand(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.NewDefaults()
	cfg.Backend.BaseURL = stubURL(t)
	cfg.Logging.Level = "error"
	cfg.Replay.OutputDir = outDir
	cfgPath := writeConfig(t, cfg)

	script := filepath.Join(t.TempDir(), "piano.yaml")
	require.NoError(t, os.WriteFile(script, []byte(`
sessions:
  - name: piano
    candidate: learn piano
    inputs: ["three hours", "yes, looks right"]
  - name: short
    candidate: learn guitar
`), 0o600))

	root := newRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "replay", script})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 session(s) did not complete")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	runDir := filepath.Join(outDir, entries[0].Name())

	m, err := output.ReadManifest(runDir)
	require.NoError(t, err)
	require.Len(t, m.Results, 2)
	assert.Equal(t, "success", m.Results[0].Status)
	assert.Equal(t, "incomplete", m.Results[1].Status)
	assert.Equal(t, cfg.Backend.BaseURL, m.Config.BaseURL)

	plan, err := os.ReadFile(filepath.Join(runDir, m.Results[0].PlanFile))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(plan, &body))
	assert.Equal(t, "Weekly practice plan", body["title"])

	_, err = os.Stat(filepath.Join(runDir, "summary.md"))
	assert.NoError(t, err)
}

func TestConfigPathAndInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "config", "path"})
	require.NoError(t, root.Execute())
	assert.Equal(t, path+"\n", out.String())

	root = newRootCmd()
	root.SetArgs([]string{"--config", path, "config", "init"})
	require.NoError(t, root.Execute())
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaults(), cfg)

	root = newRootCmd()
	root.SetArgs([]string{"--config", path, "config", "init"})
	assert.ErrorContains(t, root.Execute(), "already exists")
}

func TestDoctor(t *testing.T) {
	cfg := config.NewDefaults()
	cfg.Backend.BaseURL = stubURL(t)
	cfg.Onboarding.UserID = 3

	root := newRootCmd()
	root.SetArgs([]string{"--config", writeConfig(t, cfg), "doctor"})
	assert.NoError(t, root.Execute())

	cfg.Backend.BaseURL = "http://127.0.0.1:1/api"
	root = newRootCmd()
	root.SetArgs([]string{"--config", writeConfig(t, cfg), "doctor"})
	assert.ErrorContains(t, root.Execute(), "doctor found problems")
}

func TestRedacted(t *testing.T) {
	cfg := config.NewDefaults()
	cfg.Backend.Token = "secret"

	r := redacted(cfg)
	assert.Equal(t, "********", r.Backend.Token)
	assert.Equal(t, "secret", cfg.Backend.Token)
}

func TestColorizeJSON(t *testing.T) {
	assert.Equal(t, "  }", colorizeJSON("  }"))
	assert.Contains(t, colorizeJSON(`  "baseUrl": "x"`), `"baseUrl":`)
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"chat", "replay", "stub", "config", "doctor"} {
		assert.True(t, names[want], want)
	}
}
