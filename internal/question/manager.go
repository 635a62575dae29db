// Package question mirrors the campaign's live question and its results
// for the session core. The mirror is fed by the store subscription and
// re-derived from the latest snapshot, so a missed update only delays the
// display until the next mutation.
package question

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
	"github.com/soyeahso/pulsestage/internal/store"
	"github.com/soyeahso/pulsestage/internal/ui"
)

// ErrNoActiveQuestion is returned when a results operation runs with no
// question on screen.
var ErrNoActiveQuestion = errors.New("no active question")

// Manager tracks the active question for one campaign and pushes
// display-worthy state to the UI bus.
type Manager struct {
	campaignID string
	store      store.Store
	bus        *ui.Bus
	log        *logging.Logger

	mu      sync.RWMutex
	active  *domain.Question
	results *domain.Results
}

func NewManager(campaignID string, st store.Store, bus *ui.Bus, log *logging.Logger) *Manager {
	return &Manager{
		campaignID: campaignID,
		store:      st,
		bus:        bus,
		log:        log.Sub("question"),
	}
}

// Start primes the mirror from the store and consumes snapshots until ctx
// is cancelled. A store that cannot be reached at startup is not fatal;
// the manager simply runs on locally adopted state.
func (m *Manager) Start(ctx context.Context) error {
	if q, err := m.store.ActiveQuestion(ctx, m.campaignID); err == nil && q != nil {
		res, rerr := m.store.GetResults(ctx, q.ID)
		m.mu.Lock()
		m.active = q
		if rerr == nil {
			m.results = &res
		}
		m.mu.Unlock()
	} else if err != nil {
		m.log.Warn().Err(err).Msg("prime from store failed")
	}

	snaps, err := m.store.Subscribe(ctx, m.campaignID)
	if err != nil {
		m.log.Warn().Err(err).Msg("store subscription unavailable")
		return err
	}
	go m.consume(snaps)
	return nil
}

func (m *Manager) consume(snaps <-chan store.Snapshot) {
	for snap := range snaps {
		m.mu.Lock()
		m.active = snap.Active
		m.results = snap.Results
		active := snap.Active
		results := snap.Results
		m.mu.Unlock()

		// Live movement: re-render results whenever the audience shifts
		// them. The renderer treats repeated frames as idempotent.
		if active != nil && results != nil {
			m.bus.Emit(resultsEvent(*active, *results))
		}
	}
	m.log.Debug().Msg("snapshot stream closed")
}

// Active returns the mirrored live question, or nil.
func (m *Manager) Active() *domain.Question {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// LiveResults returns the mirrored results for the live question, or nil.
func (m *Manager) LiveResults() *domain.Results {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results
}

// AdoptLocal installs a question and its results directly into the mirror.
// Used when the store cannot be written and the show continues on local
// state only.
func (m *Manager) AdoptLocal(q domain.Question, res domain.Results) {
	m.mu.Lock()
	m.active = &q
	m.results = &res
	m.mu.Unlock()
}

// ShowProposal puts an unconfirmed question preview on screen.
func (m *Manager) ShowProposal(p domain.Proposal) {
	evt := domain.Event{Type: domain.EventPollPreview, Proposal: &p}
	if p.Kind == domain.KindOpen {
		evt.Type = domain.EventOpenPreview
	}
	m.bus.Emit(evt)
}

// ShowQuestion puts a confirmed question with its results on screen and
// updates the mirror so result tools see it immediately, ahead of the
// subscription catching up.
func (m *Manager) ShowQuestion(q domain.Question, res domain.Results) {
	m.AdoptLocal(q, res)
	m.bus.Emit(resultsEvent(q, res))
}

// ShowResults re-renders the active question with the given results.
func (m *Manager) ShowResults(res domain.Results) error {
	q := m.Active()
	if q == nil {
		return ErrNoActiveQuestion
	}
	m.mu.Lock()
	m.results = &res
	m.mu.Unlock()
	m.bus.Emit(resultsEvent(*q, res))
	return nil
}

func resultsEvent(q domain.Question, res domain.Results) domain.Event {
	evt := domain.Event{Type: domain.EventPollResults, Question: &q, Results: &res}
	if q.Kind == domain.KindOpen {
		evt.Type = domain.EventOpenResults
	}
	return evt
}
