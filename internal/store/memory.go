package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/pulsestage/internal/domain"
)

// MemoryStore is an in-memory Store for tests and offline demo runs.
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[string]*domain.Question
	votes     map[string]map[string]int // questionID → option → count
	answers   map[string]map[string]int // questionID → text → count
	active    map[string]string         // campaignID → questionID
	closed    bool

	notify *notifier
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[string]*domain.Question),
		votes:     make(map[string]map[string]int),
		answers:   make(map[string]map[string]int),
		active:    make(map[string]string),
		notify:    newNotifier(),
	}
}

func (s *MemoryStore) CreateQuestion(ctx context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	now := time.Now()
	q.CreatedAt, q.UpdatedAt = now, now
	s.questions[q.ID] = &q
	s.votes[q.ID] = make(map[string]int)
	s.answers[q.ID] = make(map[string]int)
	return nil
}

func (s *MemoryStore) SetActive(ctx context.Context, campaignID, questionID string) error {
	s.mu.Lock()
	q, ok := s.questions[questionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if prevID, ok := s.active[campaignID]; ok && prevID != questionID {
		if prev, ok := s.questions[prevID]; ok {
			prev.Active = false
		}
	}
	q.Active = true
	q.UpdatedAt = time.Now()
	s.active[campaignID] = questionID
	s.mu.Unlock()

	s.publish(ctx, campaignID)
	return nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, campaignID string) error {
	s.mu.Lock()
	if id, ok := s.active[campaignID]; ok {
		if q, ok := s.questions[id]; ok {
			q.Active = false
		}
		delete(s.active, campaignID)
	}
	s.mu.Unlock()

	s.publish(ctx, campaignID)
	return nil
}

func (s *MemoryStore) WriteSeedVotes(ctx context.Context, questionID string, votes []domain.OptionCount) error {
	s.mu.Lock()
	q, ok := s.questions[questionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	m := make(map[string]int, len(votes))
	for _, oc := range votes {
		m[oc.Option] = oc.Votes
	}
	s.votes[questionID] = m
	campaign := q.CampaignID
	s.mu.Unlock()

	s.publish(ctx, campaign)
	return nil
}

func (s *MemoryStore) WriteSeedAnswers(ctx context.Context, questionID string, answers []domain.AnswerCount) error {
	s.mu.Lock()
	q, ok := s.questions[questionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	m := make(map[string]int, len(answers))
	for _, ac := range answers {
		m[ac.Text] = ac.Count
	}
	s.answers[questionID] = m
	campaign := q.CampaignID
	s.mu.Unlock()

	s.publish(ctx, campaign)
	return nil
}

func (s *MemoryStore) RecordVote(ctx context.Context, questionID, option string) error {
	s.mu.Lock()
	q, ok := s.questions[questionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.votes[questionID][option]++
	campaign := q.CampaignID
	s.mu.Unlock()

	s.publish(ctx, campaign)
	return nil
}

func (s *MemoryStore) RecordAnswer(ctx context.Context, questionID, text string) error {
	s.mu.Lock()
	q, ok := s.questions[questionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.answers[questionID][text]++
	campaign := q.CampaignID
	s.mu.Unlock()

	s.publish(ctx, campaign)
	return nil
}

func (s *MemoryStore) GetResults(ctx context.Context, questionID string) (domain.Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultsLocked(questionID)
}

// resultsLocked builds a Results view; callers must hold at least a read lock.
func (s *MemoryStore) resultsLocked(questionID string) (domain.Results, error) {
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Results{}, ErrNotFound
	}

	res := domain.Results{QuestionID: questionID}
	if q.Kind == domain.KindPoll {
		for _, opt := range q.Options {
			votes := s.votes[questionID][opt]
			res.Votes = append(res.Votes, domain.OptionCount{Option: opt, Votes: votes})
			res.Total += votes
		}
		return res, nil
	}

	for text, count := range s.answers[questionID] {
		res.Answers = append(res.Answers, domain.AnswerCount{Text: text, Count: count})
		res.Total += count
	}
	sort.Slice(res.Answers, func(i, j int) bool {
		if res.Answers[i].Count != res.Answers[j].Count {
			return res.Answers[i].Count > res.Answers[j].Count
		}
		return res.Answers[i].Text < res.Answers[j].Text
	})
	return res, nil
}

func (s *MemoryStore) ActiveQuestion(ctx context.Context, campaignID string) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[campaignID]
	if !ok {
		return nil, nil
	}
	q, ok := s.questions[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, campaignID string) (<-chan Snapshot, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return s.notify.subscribe(ctx, campaignID), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notify.closeAll()
	return nil
}

// publish snapshots the campaign's current state and notifies subscribers.
func (s *MemoryStore) publish(ctx context.Context, campaignID string) {
	s.mu.RLock()
	var snap Snapshot
	if id, ok := s.active[campaignID]; ok {
		if q, ok := s.questions[id]; ok {
			cp := *q
			snap.Active = &cp
			if res, err := s.resultsLocked(id); err == nil {
				snap.Results = &res
			}
		}
	}
	s.mu.RUnlock()

	s.notify.notify(campaignID, snap)
}
