package claim

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/polling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// claimBackend keeps claims for a single alliance of a single match and
// answers polls with the teams modified since the client's watermark.
type claimBackend struct {
	mu       sync.Mutex
	order    []int
	claims   map[int]*string
	modified map[int]int64
	clock    int64
}

func newClaimBackend(teams ...int) *claimBackend {
	return &claimBackend{
		order:    teams,
		claims:   make(map[int]*string),
		modified: make(map[int]int64),
	}
}

func (b *claimBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /match/{match}/{alliance}/{type}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		teams := make(models.Roster, 0, len(b.order))
		for _, n := range b.order {
			teams = append(teams, models.Team{Number: n, Name: "team " + strconv.Itoa(n), Scouter: b.claims[n]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"teams": teams})
	})
	mux.HandleFunc("PATCH /scouting/{type}/{match}/{team}/state", func(w http.ResponseWriter, r *http.Request) {
		team, err := strconv.Atoi(r.PathValue("team"))
		if err != nil {
			http.Error(w, "bad team", http.StatusBadRequest)
			return
		}
		scouter := r.URL.Query().Get("scouter")

		b.mu.Lock()
		defer b.mu.Unlock()
		b.clock++
		if scouter == scouting_client.UnclaimScouter {
			b.claims[team] = nil
		} else {
			b.claims[team] = &scouter
		}
		b.modified[team] = b.clock
		_ = json.NewEncoder(w).Encode(scouting_client.PatchResponse{Status: "ok", Scouter: b.claims[team]})
	})
	mux.HandleFunc("GET /poll/match/{match}/{type}/{alliance}", func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseInt(r.URL.Query().Get("client_ts"), 10, 64)

		b.mu.Lock()
		defer b.mu.Unlock()
		resp := scouting_client.PollResponse{Teams: map[string]scouting_client.TeamDelta{}}
		var latest int64
		for team, at := range b.modified {
			if at > since {
				resp.Teams[strconv.Itoa(team)] = scouting_client.TeamDelta{Scouter: b.claims[team]}
				latest = max(latest, at)
			}
		}
		if latest > 0 {
			ts := strconv.FormatInt(latest, 10)
			resp.Timestamp = &ts
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

type device struct {
	sync      *Synchronizer
	scheduler *polling.Scheduler
}

func newDevice(t *testing.T, baseURL, scouter string) *device {
	t.Helper()
	client := scouting_client.NewScoutingClient(baseURL, nil)
	scheduler := polling.NewScheduler(client)
	s := New(
		Config{Scouter: scouter, PollInterval: 10 * time.Millisecond, Debounce: time.Hour},
		client, newFakeEnv(true), scheduler,
	)
	t.Cleanup(func() {
		s.Close()
		scheduler.Shutdown()
	})
	return &device{sync: s, scheduler: scheduler}
}

func (d *device) claimedBy(team int) string {
	t, _ := d.sync.Roster().Find(team)
	return t.ClaimedBy()
}

func TestTwoDevices_ClaimsPropagate(t *testing.T) {
	backend := newClaimBackend(118, 254, 1678)
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	ana := newDevice(t, srv.URL, "ana")
	bo := newDevice(t, srv.URL, "bo")
	require.NoError(t, ana.sync.SetContext(t.Context(), qm12Red))
	require.NoError(t, bo.sync.SetContext(t.Context(), qm12Red))

	require.NoError(t, ana.sync.Select(t.Context(), 118))

	require.Eventually(t, func() bool { return bo.claimedBy(118) == "ana" }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, bo.sync.TeamViews()[0].Disabled)
	assert.ErrorIs(t, bo.sync.Select(t.Context(), 118), ErrClaimedByOther)

	// ana moves on, freeing 118 for bo
	require.NoError(t, ana.sync.Select(t.Context(), 1678))
	require.Eventually(t, func() bool {
		return bo.claimedBy(118) == "" && bo.claimedBy(1678) == "ana"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bo.sync.Select(t.Context(), 118))
	require.Eventually(t, func() bool { return ana.claimedBy(118) == "bo" }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []int{1678}, claimedBySelf(ana.sync.Roster(), "ana"))
	assert.Equal(t, []int{118}, claimedBySelf(bo.sync.Roster(), "bo"))
	assert.Equal(t, Bound, ana.sync.Status().State)
	assert.Equal(t, Bound, bo.sync.Status().State)
}

func TestTwoDevices_ContextChangeReleasesForOthers(t *testing.T) {
	backend := newClaimBackend(118, 254, 1678)
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	ana := newDevice(t, srv.URL, "ana")
	bo := newDevice(t, srv.URL, "bo")
	require.NoError(t, ana.sync.SetContext(t.Context(), qm12Red))
	require.NoError(t, bo.sync.SetContext(t.Context(), qm12Red))

	require.NoError(t, ana.sync.Select(t.Context(), 254))
	require.Eventually(t, func() bool { return bo.claimedBy(254) == "ana" }, 2*time.Second, 10*time.Millisecond)

	next := qm12Red
	next.Alliance = models.AllianceBlue
	require.NoError(t, ana.sync.SetContext(t.Context(), next))

	require.Eventually(t, func() bool { return bo.claimedBy(254) == "" }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, ana.sync.Status().Team)
}
