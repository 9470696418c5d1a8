package claim

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/environment"
	"github.com/mcdev12/scoutsync/go/internal/events"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/polling"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 300 * time.Millisecond

// Gateway is the slice of the backend client the synchronizer needs.
type Gateway interface {
	GetTeamList(ctx context.Context, match int, matchType models.MatchType, alliance models.Alliance) models.Roster
	PatchClaim(ctx context.Context, match, team int, matchType models.MatchType, update scouting_client.ClaimUpdate) bool
}

// Environment reports connectivity.
type Environment interface {
	Snapshot() environment.Snapshot
	Subscribe(fn environment.Listener) func()
}

// Poller runs live-update subscriptions.
type Poller interface {
	Register(endpoint polling.EndpointFunc, interval time.Duration, handler func(json.RawMessage)) (uuid.UUID, polling.CancelFunc, error)
}

type Config struct {
	Scouter      string
	PollInterval time.Duration
	Debounce     time.Duration
}

// Synchronizer owns the team claim of one scouting session. Roster changes
// from user actions and poll deltas are applied as functional updates under
// one lock; results of network calls are dropped when the session has moved
// on (generation changed) by the time they arrive.
type Synchronizer struct {
	cfg       Config
	gateway   Gateway
	env       Environment
	poller    Poller
	publisher events.Publisher
	clock     clockwork.Clock

	mu           sync.Mutex
	generation   uint64
	closed       bool
	online       bool
	sctx         Context
	roster       models.Roster
	selected     *int
	phase        models.Phase
	manual       bool
	watermark    string
	pending      int
	conflictWith string
	state        State
	cancelPoll   polling.CancelFunc
	debounce     clockwork.Timer

	listeners map[int]func(Status)
	nextID    int
	unsubEnv  func()

	// seq orders status notices; notifyMu serializes their delivery.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64
}

type Option func(*Synchronizer)

func WithClock(c clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Synchronizer) {
		if p != nil {
			s.publisher = p
		}
	}
}

func New(cfg Config, gateway Gateway, env Environment, poller Poller, opts ...Option) *Synchronizer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = polling.DefaultInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	s := &Synchronizer{
		cfg:       cfg,
		gateway:   gateway,
		env:       env,
		poller:    poller,
		publisher: events.NoopPublisher{},
		clock:     clockwork.NewRealClock(),
		listeners: make(map[int]func(Status)),
		state:     Unbound,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.online = env.Snapshot().Usable()
	s.unsubEnv = env.Subscribe(s.onEnvironment)
	return s
}

// Status returns the current session state.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Roster returns a copy of the roster as last reconciled.
func (s *Synchronizer) Roster() models.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Clone()
}

// TeamViews returns the roster annotated for the selection screen.
func (s *Synchronizer) TeamViews() []TeamView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return views(s.roster, s.selected, s.cfg.Scouter)
}

// Subscribe registers fn for every state change and returns its unsubscribe func.
func (s *Synchronizer) Subscribe(fn func(Status)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetContext switches the session to a new match type, match, alliance or
// mode. Any held claim is released (online only), the team choice is
// cleared, and the roster is reloaded and polled for the new context.
func (s *Synchronizer) SetContext(ctx context.Context, c Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if c == s.sctx {
		s.mu.Unlock()
		return nil
	}

	prev := s.sctx
	prevTeam := s.selected
	s.sctx = c
	gen, stopPoll := s.resetLocked()
	online := s.online
	s.state = deriveState(online, c, nil, 0)
	n := s.snapshotLocked()
	s.mu.Unlock()
	stop(stopPoll)
	s.notify(n)

	log.Debug().
		Str("match_type", string(c.MatchType)).
		Int("match", c.Match).
		Str("alliance", string(c.Alliance)).
		Str("mode", string(c.Mode)).
		Msg("claim context changed")

	if prevTeam != nil && online && prev.claims() {
		s.release(ctx, prev, *prevTeam)
	}
	if online && c.claims() {
		s.loadRoster(ctx, gen, c)
		s.startPolling(gen, c)
	}
	s.scheduleRefresh()
	return nil
}

// Select makes team this session's team. Online, the roster is updated
// optimistically before any patch is sent: a previously held team is
// released and the new one claimed.
func (s *Synchronizer) Select(ctx context.Context, team int) error {
	return s.choose(ctx, team, false)
}

// EnterManual sets a team typed in by number, for teams missing from the
// roster or when the device is offline.
func (s *Synchronizer) EnterManual(ctx context.Context, team int) error {
	return s.choose(ctx, team, true)
}

func (s *Synchronizer) choose(ctx context.Context, team int, manual bool) error {
	if team <= 0 {
		return ErrInvalidTeam
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	c := s.sctx

	// offline or pit scouting: no claim traffic at all
	if !s.online || !c.claims() {
		if !c.Active() {
			s.mu.Unlock()
			return ErrNoContext
		}
		s.selected = &team
		s.manual = manual || !s.online
		if s.phase == "" {
			s.phase = models.PhasePre
		}
		s.state = deriveState(s.online, c, s.selected, s.pending)
		online := s.online
		n := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(n)

		log.Info().Int("team", team).Bool("online", online).Msg("team entered without claim")
		return nil
	}

	if t, ok := s.roster.Find(team); ok && t.Claimed() && t.ClaimedBy() != s.cfg.Scouter {
		if s.selected == nil || *s.selected != team {
			s.mu.Unlock()
			log.Warn().Int("team", team).Str("claimed_by", t.ClaimedBy()).Msg("team already claimed")
			return ErrClaimedByOther
		}
	}

	gen := s.generation
	prev := s.selected
	s.selected = &team
	s.manual = manual
	if s.phase == "" {
		s.phase = models.PhasePre
	}
	s.conflictWith = ""
	s.pending++
	if prev != nil && *prev != team {
		s.roster = markUnclaimed(s.roster, *prev)
	}
	s.roster = markClaimed(s.roster, team, s.cfg.Scouter)
	s.state = Reconciling
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)

	if prev != nil && *prev != team {
		s.release(ctx, c, *prev)
	}
	s.claim(ctx, c, team, models.PhasePre)

	s.finishReconcile(gen)
	s.scheduleRefresh()
	return nil
}

// Release drops the current team. Online, an unclaim patch is sent.
func (s *Synchronizer) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return ErrNoTeam
	}
	c := s.sctx
	team := *s.selected
	online := s.online
	s.selected = nil
	s.manual = false
	s.phase = ""
	s.conflictWith = ""
	if online && c.claims() {
		s.roster = markUnclaimed(s.roster, team)
	}
	s.state = deriveState(online, c, nil, s.pending)
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)

	if online && c.claims() {
		s.release(ctx, c, team)
	}
	return nil
}

// AdvancePhase records the session moving to phase (next or back). Online,
// the claim is re-asserted with the new phase.
func (s *Synchronizer) AdvancePhase(ctx context.Context, phase models.Phase) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return ErrNoTeam
	}
	c := s.sctx
	team := *s.selected
	online := s.online
	s.phase = phase
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)

	if !online || !c.claims() {
		return nil
	}

	ok := s.gateway.PatchClaim(ctx, c.Match, team, c.MatchType, scouting_client.ClaimUpdate{
		Scouter: &s.cfg.Scouter,
		Phase:   phase,
	})
	if !ok {
		log.Warn().Int("team", team).Str("phase", string(phase)).Msg("phase patch failed")
		return nil
	}
	s.publish(ctx, c, events.EventPhaseChanged, team, func(e *events.ClaimEvent) { e.Phase = phase })
	return nil
}

// OnSubmitted ends the session's hold on its team after the record was
// submitted or stored for later upload. No unclaim is sent: the backend
// now owns the record's status.
func (s *Synchronizer) OnSubmitted(ctx context.Context) {
	s.mu.Lock()
	c := s.sctx
	team := s.selected
	s.selected = nil
	s.manual = false
	s.phase = ""
	s.conflictWith = ""
	s.state = deriveState(s.online, c, nil, s.pending)
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)

	if team != nil {
		s.publish(ctx, c, events.EventSubmitted, *team, nil)
	}
}

// Close stops polling, pending debounces and environment tracking.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	stopPoll := s.stopBackgroundLocked()
	unsub := s.unsubEnv
	s.mu.Unlock()

	stop(stopPoll)

	if unsub != nil {
		unsub()
	}
}

func (s *Synchronizer) onEnvironment(snap environment.Snapshot) {
	online := snap.Usable()

	s.mu.Lock()
	if s.closed || online == s.online {
		s.mu.Unlock()
		return
	}
	s.online = online
	s.generation++
	gen := s.generation
	stopPoll := s.stopBackgroundLocked()
	s.pending = 0
	c := s.sctx
	team := s.selected
	if !online {
		s.roster = nil
		s.watermark = ""
		if team != nil {
			s.manual = true
		}
	}
	s.state = deriveState(online, c, team, 0)
	n := s.snapshotLocked()
	s.mu.Unlock()
	stop(stopPoll)
	s.notify(n)

	if !online {
		log.Warn().Bool("is_online", snap.IsOnline).Bool("server_online", snap.ServerOnline).Msg("claims suspended: offline")
		s.publish(context.Background(), c, events.EventOffline, 0, nil)
		return
	}

	log.Info().Msg("claims resumed: back online")
	s.publish(context.Background(), c, events.EventOnline, 0, nil)
	if c.claims() {
		// off the environment monitor's goroutine; a stale result is dropped by generation
		go func() {
			s.loadRoster(context.Background(), gen, c)
			s.startPolling(gen, c)
		}()
	}
	if team != nil {
		s.scheduleRefresh()
	}
}

// resetLocked clears everything tied to the previous context and returns
// the new generation with the poll cancel to run once s.mu is released.
func (s *Synchronizer) resetLocked() (uint64, polling.CancelFunc) {
	s.generation++
	stopPoll := s.stopBackgroundLocked()
	s.selected = nil
	s.manual = false
	s.phase = ""
	s.roster = nil
	s.watermark = ""
	s.pending = 0
	s.conflictWith = ""
	return s.generation, stopPoll
}

// stopBackgroundLocked stops the debounce and detaches the poll
// subscription. The returned cancel waits for a running poll handler, which
// takes s.mu, so it must be called after s.mu is released.
func (s *Synchronizer) stopBackgroundLocked() polling.CancelFunc {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	cancel := s.cancelPoll
	s.cancelPoll = nil
	return cancel
}

func stop(cancel polling.CancelFunc) {
	if cancel != nil {
		cancel()
	}
}

func (s *Synchronizer) finishReconcile(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if s.pending > 0 {
		s.pending--
	}
	s.state = deriveState(s.online, s.sctx, s.selected, s.pending)
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)
}

// update applies fn to the roster if the session is still on generation gen.
func (s *Synchronizer) update(gen uint64, fn func(prev models.Roster) models.Roster) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.roster = fn(s.roster)
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)
	return true
}

func (s *Synchronizer) loadRoster(ctx context.Context, gen uint64, c Context) {
	roster := s.gateway.GetTeamList(ctx, c.Match, c.MatchType, c.Alliance)
	applied := s.update(gen, func(prev models.Roster) models.Roster {
		return roster.Clone()
	})
	if !applied {
		log.Debug().Int("match", c.Match).Msg("discarding roster for stale context")
		return
	}
	log.Debug().Int("match", c.Match).Str("alliance", string(c.Alliance)).Int("teams", len(roster)).Msg("roster loaded")
}

func (s *Synchronizer) startPolling(gen uint64, c Context) {
	endpoint := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation {
			return ""
		}
		return scouting_client.PollPath(c.Match, c.MatchType, c.Alliance, s.watermark)
	}
	handler := func(raw json.RawMessage) {
		var resp scouting_client.PollResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Warn().Err(err).Msg("malformed poll delta")
			return
		}
		s.applyPoll(gen, c, resp)
	}

	_, cancel, err := s.poller.Register(endpoint, s.cfg.PollInterval, handler)
	if err != nil {
		log.Error().Err(err).Msg("failed to start roster polling")
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancelPoll = cancel
	s.mu.Unlock()
}

func (s *Synchronizer) applyPoll(gen uint64, c Context, resp scouting_client.PollResponse) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.roster = applyDelta(s.roster, resp.Teams)
	if resp.Timestamp != nil && *resp.Timestamp != "" {
		s.watermark = *resp.Timestamp
	}

	// a conflict is surfaced, never resolved by evicting the local selection
	var conflict string
	team := 0
	if s.selected != nil {
		team = *s.selected
		if t, ok := s.roster.Find(team); ok && t.Claimed() && t.ClaimedBy() != s.cfg.Scouter {
			if t.ClaimedBy() != s.conflictWith {
				conflict = t.ClaimedBy()
			}
			s.conflictWith = t.ClaimedBy()
		} else {
			s.conflictWith = ""
		}
	}
	n := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(n)

	if conflict != "" {
		log.Warn().Int("team", team).Str("claimed_by", conflict).Msg("selected team claimed by another scouter")
		s.publish(context.Background(), c, events.EventConflict, team, func(e *events.ClaimEvent) { e.ClaimedBy = conflict })
	}
}

func (s *Synchronizer) scheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	gen := s.generation
	s.debounce = s.clock.AfterFunc(s.cfg.Debounce, func() { s.refresh(gen) })
}

// refresh re-asserts the held claim once input has settled.
func (s *Synchronizer) refresh(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.closed || s.selected == nil || !s.online || !s.sctx.claims() {
		s.mu.Unlock()
		return
	}
	c := s.sctx
	team := *s.selected
	phase := s.phase
	if phase == "" {
		phase = models.PhasePre
	}
	s.mu.Unlock()

	ok := s.gateway.PatchClaim(context.Background(), c.Match, team, c.MatchType, scouting_client.ClaimUpdate{
		Scouter: &s.cfg.Scouter,
		Phase:   phase,
	})
	if !ok {
		log.Warn().Int("team", team).Msg("claim refresh failed")
	}
}

func (s *Synchronizer) claim(ctx context.Context, c Context, team int, phase models.Phase) {
	ok := s.gateway.PatchClaim(ctx, c.Match, team, c.MatchType, scouting_client.ClaimUpdate{
		Scouter: &s.cfg.Scouter,
		Phase:   phase,
	})
	if !ok {
		// no rollback: the next poll cycle shows the server's view
		log.Warn().Int("match", c.Match).Int("team", team).Msg("claim patch failed")
		return
	}
	s.publish(ctx, c, events.EventClaimed, team, func(e *events.ClaimEvent) { e.Phase = phase })
}

func (s *Synchronizer) release(ctx context.Context, c Context, team int) {
	unclaim := scouting_client.UnclaimScouter
	ok := s.gateway.PatchClaim(ctx, c.Match, team, c.MatchType, scouting_client.ClaimUpdate{
		Scouter: &unclaim,
		Phase:   models.PhaseUnclaimed,
	})
	if !ok {
		log.Warn().Int("match", c.Match).Int("team", team).Msg("unclaim patch failed")
		return
	}
	s.publish(ctx, c, events.EventReleased, team, nil)
}

func (s *Synchronizer) publish(ctx context.Context, c Context, t events.EventType, team int, fill func(*events.ClaimEvent)) {
	e := events.New(t, s.clock.Now())
	e.MatchType = c.MatchType
	e.Match = c.Match
	e.Alliance = c.Alliance
	e.Team = team
	e.Scouter = s.cfg.Scouter
	if fill != nil {
		fill(&e)
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event_type", string(t)).Msg("failed to publish claim event")
	}
}

func (s *Synchronizer) statusLocked() Status {
	var team *int
	if s.selected != nil {
		t := *s.selected
		team = &t
	}
	return Status{
		State:     s.state,
		Context:   s.sctx,
		Team:      team,
		Phase:     s.phase,
		Manual:    s.manual,
		Online:    s.online,
		Watermark: s.watermark,
	}
}

type notice struct {
	seq    uint64
	status Status
}

// snapshotLocked captures the status a mutation produced, in mutation order.
func (s *Synchronizer) snapshotLocked() notice {
	s.seq++
	return notice{seq: s.seq, status: s.statusLocked()}
}

// notify hands n to every listener unless a later notice already went out,
// so listeners never see an older status after a newer one. Listeners run
// one notice at a time and must not call back into the Synchronizer.
func (s *Synchronizer) notify(n notice) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if n.seq <= s.delivered {
		return
	}
	s.delivered = n.seq

	s.mu.Lock()
	fns := make([]func(Status), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(n.status)
	}
}
