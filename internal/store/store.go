// Package store persists campaign questions and their aggregated results.
// The session core treats every call as a fallible remote operation; a
// store outage must never take the show down.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/pulsestage/internal/domain"
)

var (
	ErrNotFound = errors.New("question not found")
	ErrClosed   = errors.New("store closed")
)

// Snapshot is one observation of a campaign's live state, delivered on
// every mutation to subscribers.
type Snapshot struct {
	Active  *domain.Question
	Results *domain.Results
}

// Store is the keyed question/result store contract.
type Store interface {
	// CreateQuestion persists a new question (inactive).
	CreateQuestion(ctx context.Context, q domain.Question) error

	// SetActive marks the question live, deactivating any other active
	// question in the same campaign.
	SetActive(ctx context.Context, campaignID, questionID string) error

	// Deactivate clears the campaign's active question, if any.
	Deactivate(ctx context.Context, campaignID string) error

	// WriteSeedVotes replaces the vote tallies for a question.
	WriteSeedVotes(ctx context.Context, questionID string, votes []domain.OptionCount) error

	// WriteSeedAnswers replaces the answer set for a question.
	WriteSeedAnswers(ctx context.Context, questionID string, answers []domain.AnswerCount) error

	// RecordVote increments one option's tally (audience ingest path).
	RecordVote(ctx context.Context, questionID, option string) error

	// RecordAnswer adds or increments a free-text answer.
	RecordAnswer(ctx context.Context, questionID, text string) error

	// GetResults returns the aggregated results for a question.
	GetResults(ctx context.Context, questionID string) (domain.Results, error)

	// ActiveQuestion returns the campaign's live question, or nil.
	ActiveQuestion(ctx context.Context, campaignID string) (*domain.Question, error)

	// Subscribe streams snapshots for a campaign until ctx is cancelled.
	// A snapshot is delivered after every mutation touching the campaign.
	Subscribe(ctx context.Context, campaignID string) (<-chan Snapshot, error)

	Close() error
}

// notifier fans snapshots out to per-campaign subscribers. Shared by the
// in-process backends (memory, sqlite); the redis backend uses pub/sub.
type notifier struct {
	mu   sync.Mutex
	subs map[string][]chan Snapshot
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string][]chan Snapshot)}
}

func (n *notifier) subscribe(ctx context.Context, campaignID string) <-chan Snapshot {
	ch := make(chan Snapshot, 8)

	n.mu.Lock()
	n.subs[campaignID] = append(n.subs[campaignID], ch)
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		chans := n.subs[campaignID]
		for i, c := range chans {
			if c == ch {
				n.subs[campaignID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch
}

// notify delivers a snapshot to all campaign subscribers without blocking;
// a subscriber with a full buffer misses that update and catches up on the
// next one.
func (n *notifier) notify(campaignID string, snap Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[campaignID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, chans := range n.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(n.subs, id)
	}
}
