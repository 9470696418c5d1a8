package scouting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoutsync/go/clients/scouting_client"
	"github.com/mcdev12/scoutsync/go/internal/claim"
	"github.com/mcdev12/scoutsync/go/internal/environment"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/rs/zerolog/log"
)

const DefaultAutosaveInterval = 3 * time.Second

var (
	ErrIncomplete   = errors.New("match type, match, alliance and team must be set")
	ErrFirstPhase   = errors.New("already at the first phase")
	ErrLastPhase    = errors.New("already at the last phase, submit instead")
	ErrNotResumable = errors.New("draft is not in progress")
)

// SubmitOutcome is what became of a record handed to Submit.
type SubmitOutcome string

const (
	// Submitted: the backend accepted the record and the draft was removed.
	Submitted SubmitOutcome = "submitted"
	// SavedLocally: the device was offline; the draft is kept as completed for UploadCompleted.
	SavedLocally SubmitOutcome = "saved_locally"
	// Failed: the backend rejected the record; the session is kept for a retry.
	Failed SubmitOutcome = "failed"
)

// Gateway is the slice of the backend client the flow needs.
type Gateway interface {
	SubmitScouting(ctx context.Context, match, team int, payload scouting_client.SubmitPayload) bool
	PatchAnswers(ctx context.Context, match, team int, matchType models.MatchType, scouter string, partial models.Answers) bool
}

// Drafts is the local draft store.
type Drafts interface {
	SaveDraft(ctx context.Context, d models.ScoutingDraft) error
	DeleteDraft(ctx context.Context, key string) error
	ListDrafts(ctx context.Context, statuses ...models.Phase) ([]models.ScoutingDraft, error)
}

// Claims is the claim synchronizer owning the session's context and team.
type Claims interface {
	Status() claim.Status
	SetContext(ctx context.Context, c claim.Context) error
	EnterManual(ctx context.Context, team int) error
	AdvancePhase(ctx context.Context, phase models.Phase) error
	OnSubmitted(ctx context.Context)
}

type Environment interface {
	Snapshot() environment.Snapshot
}

type Config struct {
	Scouter          string
	AutosaveInterval time.Duration
	// InitialAnswers seeds the answers of every new session.
	InitialAnswers models.Answers
}

// Flow drives one device's data entry: phase navigation, answers, autosave
// and submission. The match, alliance and team come from the claim
// synchronizer; the flow owns the phase index and the answers.
type Flow struct {
	cfg     Config
	gateway Gateway
	drafts  Drafts
	claims  Claims
	env     Environment
	clock   clockwork.Clock

	mu         sync.Mutex
	phaseIndex int
	answers    models.Answers
}

type Option func(*Flow)

func WithClock(c clockwork.Clock) Option {
	return func(f *Flow) { f.clock = c }
}

func NewFlow(cfg Config, gateway Gateway, drafts Drafts, claims Claims, env Environment, opts ...Option) *Flow {
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = DefaultAutosaveInterval
	}
	f := &Flow{
		cfg:     cfg,
		gateway: gateway,
		drafts:  drafts,
		claims:  claims,
		env:     env,
		clock:   clockwork.NewRealClock(),
		answers: cfg.InitialAnswers.Clone(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Session returns the current working state.
func (f *Flow) Session() models.ScoutingSession {
	st := f.claims.Status()

	f.mu.Lock()
	defer f.mu.Unlock()
	return models.ScoutingSession{
		Match:      st.Context.Match,
		MatchType:  st.Context.MatchType,
		Alliance:   st.Context.Alliance,
		TeamNumber: st.Team,
		Scouter:    f.cfg.Scouter,
		Phase:      models.PhaseOrder[f.phaseIndex],
		Mode:       st.Context.Mode,
		Answers:    f.answers.Clone(),
	}
}

// Phase returns the phase currently being entered.
func (f *Flow) Phase() models.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.PhaseOrder[f.phaseIndex]
}

// Next moves to the following phase and reports it to the backend.
func (f *Flow) Next(ctx context.Context) error {
	return f.step(ctx, 1)
}

// Back moves to the previous phase. At the first phase it returns
// ErrFirstPhase and the caller leaves the flow.
func (f *Flow) Back(ctx context.Context) error {
	return f.step(ctx, -1)
}

func (f *Flow) step(ctx context.Context, delta int) error {
	if _, ok := complete(f.claims.Status()); !ok {
		return ErrIncomplete
	}

	f.mu.Lock()
	next := f.phaseIndex + delta
	switch {
	case next < 0:
		f.mu.Unlock()
		return ErrFirstPhase
	case next >= len(models.PhaseOrder):
		f.mu.Unlock()
		return ErrLastPhase
	}
	f.phaseIndex = next
	phase := models.PhaseOrder[next]
	f.mu.Unlock()

	log.Debug().Str("phase", string(phase)).Msg("scouting phase changed")
	return f.claims.AdvancePhase(ctx, phase)
}

// UpdateAnswers merges partial into the session's answers. Online, the
// partial is also sent to the backend; a failed send is only logged since
// the full answers go out on submit.
func (f *Flow) UpdateAnswers(ctx context.Context, partial models.Answers) {
	f.mu.Lock()
	f.answers = f.answers.Merge(partial)
	f.mu.Unlock()

	st := f.claims.Status()
	team, ok := complete(st)
	if !ok || !f.env.Snapshot().Usable() {
		return
	}
	if !f.gateway.PatchAnswers(ctx, st.Context.Match, team, st.Context.MatchType, f.cfg.Scouter, partial) {
		log.Warn().Int("match", st.Context.Match).Int("team", team).Msg("answer patch failed")
	}
}

// Run autosaves the session on the configured interval until ctx is done.
func (f *Flow) Run(ctx context.Context) {
	ticker := f.clock.NewTicker(f.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := f.Autosave(ctx); err != nil {
				log.Error().Err(err).Msg("autosave failed")
			}
		}
	}
}

// Autosave persists the session as a draft whose status is the current
// phase. Sessions without a full match and team are skipped.
func (f *Flow) Autosave(ctx context.Context) error {
	d, ok := f.draft(f.Phase())
	if !ok {
		return nil
	}
	if err := f.drafts.SaveDraft(ctx, d); err != nil {
		return fmt.Errorf("failed to save draft %s: %w", d.Key, err)
	}
	return nil
}

// Submit hands the finished record to the backend, or keeps it on the
// device as completed when offline.
func (f *Flow) Submit(ctx context.Context) (SubmitOutcome, error) {
	st := f.claims.Status()
	team, ok := complete(st)
	if !ok {
		return Failed, ErrIncomplete
	}
	c := st.Context

	if !f.env.Snapshot().Usable() {
		d, _ := f.draft(models.PhaseCompleted)
		if err := f.drafts.SaveDraft(ctx, d); err != nil {
			return Failed, fmt.Errorf("failed to keep completed draft: %w", err)
		}
		log.Info().Int("match", c.Match).Int("team", team).Msg("offline: record saved locally")
		f.finish(ctx)
		return SavedLocally, nil
	}

	f.mu.Lock()
	payload := scouting_client.SubmitPayload{
		MatchType: c.MatchType,
		Alliance:  c.Alliance,
		Scouter:   f.cfg.Scouter,
		Data:      f.answers.Clone(),
	}
	f.mu.Unlock()

	if !f.gateway.SubmitScouting(ctx, c.Match, team, payload) {
		// keep what was entered; the caller may retry
		if err := f.Autosave(ctx); err != nil {
			log.Error().Err(err).Msg("failed to save draft after rejected submit")
		}
		return Failed, nil
	}

	if err := f.drafts.DeleteDraft(ctx, models.DraftKey(c.MatchType, c.Match, team)); err != nil {
		log.Warn().Err(err).Int("match", c.Match).Int("team", team).Msg("failed to delete submitted draft")
	}
	log.Info().Int("match", c.Match).Int("team", team).Msg("record submitted")
	f.finish(ctx)
	return Submitted, nil
}

// FindResumable returns the most recent draft still in data entry, or nil.
func (f *Flow) FindResumable(ctx context.Context) (*models.ScoutingDraft, error) {
	drafts, err := f.drafts.ListDrafts(ctx, models.PhaseOrder...)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, nil
	}
	return &drafts[0], nil
}

// Resume restores d into the session: its context and team are handed to
// the claim synchronizer and the phase and answers are reloaded.
func (f *Flow) Resume(ctx context.Context, d models.ScoutingDraft) error {
	idx := phaseIndex(d.Status)
	if idx < 0 {
		return ErrNotResumable
	}

	err := f.claims.SetContext(ctx, claim.Context{
		MatchType: d.MatchType,
		Match:     d.Match,
		Alliance:  d.Alliance,
		Mode:      models.ModeMatch,
	})
	if err != nil {
		return err
	}
	if err := f.claims.EnterManual(ctx, d.TeamNumber); err != nil {
		return err
	}

	f.mu.Lock()
	f.phaseIndex = idx
	f.answers = d.Answers.Clone()
	if f.answers == nil {
		f.answers = models.Answers{}
	}
	f.mu.Unlock()

	log.Info().Str("key", d.Key).Str("phase", string(d.Status)).Msg("resumed draft")
	if idx > 0 {
		return f.claims.AdvancePhase(ctx, d.Status)
	}
	return nil
}

// Discard drops a draft the user chose not to resume.
func (f *Flow) Discard(ctx context.Context, d models.ScoutingDraft) error {
	return f.drafts.DeleteDraft(ctx, d.Key)
}

// UploadCompleted submits drafts stored while offline. Each accepted draft
// is deleted; rejected ones stay for the next attempt.
func (f *Flow) UploadCompleted(ctx context.Context) (int, error) {
	if !f.env.Snapshot().Usable() {
		return 0, nil
	}
	drafts, err := f.drafts.ListDrafts(ctx, models.PhaseCompleted)
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, d := range drafts {
		scouter := d.Scouter
		if scouter == "" {
			scouter = f.cfg.Scouter
		}
		ok := f.gateway.SubmitScouting(ctx, d.Match, d.TeamNumber, scouting_client.SubmitPayload{
			MatchType: d.MatchType,
			Alliance:  d.Alliance,
			Scouter:   scouter,
			Data:      d.Answers,
		})
		if !ok {
			log.Warn().Str("key", d.Key).Msg("upload of completed draft failed")
			continue
		}
		if err := f.drafts.DeleteDraft(ctx, d.Key); err != nil {
			return uploaded, fmt.Errorf("failed to delete uploaded draft %s: %w", d.Key, err)
		}
		uploaded++
	}

	log.Info().Int("uploaded", uploaded).Int("pending", len(drafts)-uploaded).Msg("completed drafts uploaded")
	return uploaded, nil
}

func (f *Flow) draft(status models.Phase) (models.ScoutingDraft, bool) {
	st := f.claims.Status()
	team, ok := complete(st)
	if !ok {
		return models.ScoutingDraft{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return models.ScoutingDraft{
		Key:        models.DraftKey(st.Context.MatchType, st.Context.Match, team),
		MatchType:  st.Context.MatchType,
		Match:      st.Context.Match,
		Alliance:   st.Context.Alliance,
		TeamNumber: team,
		Scouter:    f.cfg.Scouter,
		Status:     status,
		Answers:    f.answers.Clone(),
		UpdatedAt:  f.clock.Now(),
	}, true
}

// finish resets the session after its record left the flow.
func (f *Flow) finish(ctx context.Context) {
	f.claims.OnSubmitted(ctx)

	f.mu.Lock()
	f.phaseIndex = 0
	f.answers = f.cfg.InitialAnswers.Clone()
	f.mu.Unlock()
}

func complete(st claim.Status) (int, bool) {
	c := st.Context
	if st.Team == nil || c.Match <= 0 || !c.MatchType.Valid() || !c.Alliance.Valid() {
		return 0, false
	}
	return *st.Team, true
}

func phaseIndex(p models.Phase) int {
	for i, o := range models.PhaseOrder {
		if o == p {
			return i
		}
	}
	return -1
}
