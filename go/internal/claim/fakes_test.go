package claim

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/environment"
	"github.com/mcdev12/scoutsync/go/internal/events"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/polling"
)

type patchCall struct {
	Match     int
	Team      int
	MatchType models.MatchType
	Scouter   string
	Phase     models.Phase
}

type fakeGateway struct {
	mu      sync.Mutex
	roster  models.Roster
	patches []patchCall
	fail    bool
	// block, when set, holds PatchClaim until closed
	block chan struct{}
	// rosterBlock, when set, holds GetTeamList until closed
	rosterBlock chan struct{}
}

func (g *fakeGateway) GetTeamList(ctx context.Context, match int, matchType models.MatchType, alliance models.Alliance) models.Roster {
	g.mu.Lock()
	block := g.rosterBlock
	roster := g.roster.Clone()
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	if roster == nil {
		return models.Roster{}
	}
	return roster
}

func (g *fakeGateway) PatchClaim(ctx context.Context, match, team int, matchType models.MatchType, update scouting_client.ClaimUpdate) bool {
	g.mu.Lock()
	block := g.block
	scouter := ""
	if update.Scouter != nil {
		scouter = *update.Scouter
	}
	g.patches = append(g.patches, patchCall{Match: match, Team: team, MatchType: matchType, Scouter: scouter, Phase: update.Phase})
	fail := g.fail
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	return !fail
}

func (g *fakeGateway) calls() []patchCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]patchCall(nil), g.patches...)
}

type fakeEnv struct {
	mu        sync.Mutex
	snap      environment.Snapshot
	listeners map[int]environment.Listener
	next      int
}

func newFakeEnv(online bool) *fakeEnv {
	return &fakeEnv{
		snap:      environment.Snapshot{IsOnline: online, ServerOnline: online},
		listeners: make(map[int]environment.Listener),
	}
}

func (e *fakeEnv) Snapshot() environment.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

func (e *fakeEnv) Subscribe(fn environment.Listener) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	e.listeners[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *fakeEnv) setServerOnline(online bool) {
	e.mu.Lock()
	e.snap.ServerOnline = online
	snap := e.snap
	fns := make([]environment.Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		fns = append(fns, l)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

type registration struct {
	endpoint  polling.EndpointFunc
	interval  time.Duration
	handler   func(json.RawMessage)
	cancelled bool
}

type fakePoller struct {
	mu   sync.Mutex
	regs []*registration
}

func (p *fakePoller) Register(endpoint polling.EndpointFunc, interval time.Duration, handler func(json.RawMessage)) (uuid.UUID, polling.CancelFunc, error) {
	r := &registration{endpoint: endpoint, interval: interval, handler: handler}
	p.mu.Lock()
	p.regs = append(p.regs, r)
	p.mu.Unlock()
	return uuid.New(), func() {
		p.mu.Lock()
		r.cancelled = true
		p.mu.Unlock()
	}, nil
}

func (p *fakePoller) active() []*registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*registration
	for _, r := range p.regs {
		if !r.cancelled {
			out = append(out, r)
		}
	}
	return out
}

// deliver runs one poll cycle against the live registration.
func (p *fakePoller) deliver(body string) string {
	regs := p.active()
	if len(regs) == 0 {
		return ""
	}
	r := regs[len(regs)-1]
	endpoint := r.endpoint()
	r.handler(json.RawMessage(body))
	return endpoint
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ClaimEvent
}

func (r *recordingPublisher) Publish(ctx context.Context, e events.ClaimEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
