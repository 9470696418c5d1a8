package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableBackend returns the URL of a server that is already closed.
func unreachableBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

type scoutBackend struct {
	mu          sync.Mutex
	submissions map[string]map[string]any
}

func newScoutBackend(t *testing.T) (*scoutBackend, string) {
	t.Helper()
	b := &scoutBackend{submissions: make(map[string]map[string]any)}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv.URL
}

func (b *scoutBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/ping":
		_, _ = w.Write([]byte(`{"ping":"pong"}`))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/match/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"teams": models.Roster{{Number: 254, Name: "Cheesy Poofs"}}})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/submit"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.submissions[r.URL.Path] = body
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (b *scoutBackend) submission(path string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submissions[path]
}

func runAppWithInput(t *testing.T, dataDir, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SCOUT_DATA_DIR", dataDir)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.Reader = strings.NewReader(input)
	base := []string{
		"scoutctl",
		"--config", filepath.Join(dataDir, "absent.yaml"),
		"--env-file", filepath.Join(dataDir, "absent.env"),
	}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func loadDraft(t *testing.T, dir, key string) models.ScoutingDraft {
	t.Helper()
	s, err := setupDatabase(dir)
	require.NoError(t, err)
	defer s.Close()
	d, err := s.GetDraft(t.Context(), key)
	require.NoError(t, err)
	return d
}

func TestScoutCommands_OfflineWalkThroughSubmit(t *testing.T) {
	dir := t.TempDir()
	backend := unreachableBackend(t)

	_, err := runApp(t, dir, "--backend", backend, "scout", "next")
	assert.ErrorIs(t, err, errNoSession)

	_, err = runApp(t, dir, "--backend", backend, "scout", "start", "--match", "3", "--alliance", "red", "--team", "254")
	require.NoError(t, err)
	assert.Equal(t, models.PhasePre, loadDraft(t, dir, "qm|3|254").Status)

	out, err := runApp(t, dir, "--backend", backend, "scout", "next")
	require.NoError(t, err)
	assert.Equal(t, "auto\n", out)

	_, err = runApp(t, dir, "--backend", backend, "scout", "answer", `{"auto":{"l1":2}}`)
	require.NoError(t, err)

	out, err = runApp(t, dir, "--backend", backend, "scout", "resume")
	require.NoError(t, err)
	var session models.ScoutingSession
	require.NoError(t, json.Unmarshal([]byte(out), &session))
	assert.Equal(t, models.PhaseAuto, session.Phase)
	require.NotNil(t, session.TeamNumber)
	assert.Equal(t, 254, *session.TeamNumber)

	out, err = runApp(t, dir, "--backend", backend, "submit")
	require.NoError(t, err)
	assert.Equal(t, "saved_locally\n", out)

	d := loadDraft(t, dir, "qm|3|254")
	assert.Equal(t, models.PhaseCompleted, d.Status)
	assert.Equal(t, models.Answers{"auto": map[string]any{"l1": int64(2)}}, d.Answers)

	_, err = runApp(t, dir, "--backend", backend, "scout", "next")
	assert.ErrorIs(t, err, errNoSession)
}

func TestScoutSession_InteractiveSubmit(t *testing.T) {
	dir := t.TempDir()
	backend, url := newScoutBackend(t)

	_, err := runApp(t, dir, "--backend", url, "scout", "start", "--match", "3", "--alliance", "red", "--team", "254")
	require.NoError(t, err)

	input := strings.Join([]string{
		"next",
		`answer {"auto":{"l1":2}}`,
		"bogus",
		"next",
		"submit",
	}, "\n")
	out, err := runAppWithInput(t, dir, input, "--backend", url, "scout", "session")
	require.NoError(t, err)

	assert.Contains(t, out, "phase auto")
	assert.Contains(t, out, "phase teleop")
	assert.Contains(t, out, `error: unknown command "bogus"`)
	assert.True(t, strings.HasSuffix(out, "submitted\n"), out)

	body := backend.submission("/scouting/3/254/submit")
	require.NotNil(t, body)
	assert.Equal(t, map[string]any{"l1": 2.0}, body["auto"])
	assert.Equal(t, "red", body["alliance"])

	s, err := setupDatabase(dir)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetDraft(t.Context(), "qm|3|254")
	assert.ErrorIs(t, err, storage.ErrDraftNotFound)
}

func TestScoutDiscard(t *testing.T) {
	dir := t.TempDir()
	backend := unreachableBackend(t)

	_, err := runApp(t, dir, "--backend", backend, "scout", "start", "--match", "5", "--type", "sf", "--alliance", "blue", "--team", "971", "--manual")
	require.NoError(t, err)

	out, err := runApp(t, dir, "--backend", backend, "scout", "discard")
	require.NoError(t, err)
	assert.Equal(t, "discarded sf|5|971\n", out)

	_, err = runApp(t, dir, "--backend", backend, "scout", "discard")
	assert.ErrorIs(t, err, errNoSession)
}
