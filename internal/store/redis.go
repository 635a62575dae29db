package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
)

// RedisStore is a Store backend for multi-process venue deployments.
// Question state lives in Redis keys; Subscribe rides pub/sub so every
// process observes mutations made by any other.
type RedisStore struct {
	rdb *redis.Client
	log *logging.Logger
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, log *logging.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	log.Sub("store").Info().Str("addr", addr).Msg("redis connected")
	return &RedisStore{rdb: rdb, log: log.Sub("store")}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func questionKey(id string) string        { return "ps:question:" + id }
func votesKey(id string) string           { return "ps:question:" + id + ":votes" }
func answersKey(id string) string         { return "ps:question:" + id + ":answers" }
func activeKey(campaign string) string    { return "ps:campaign:" + campaign + ":active" }
func changedChannel(campaign string) string { return "ps:campaign:" + campaign + ":changed" }

func (s *RedisStore) CreateQuestion(ctx context.Context, q domain.Question) error {
	now := time.Now()
	q.CreatedAt, q.UpdatedAt = now, now
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encoding question: %w", err)
	}
	if err := s.rdb.Set(ctx, questionKey(q.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("writing question: %w", err)
	}
	return nil
}

func (s *RedisStore) SetActive(ctx context.Context, campaignID, questionID string) error {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}

	// Deactivate the previous question, if different.
	prevID, err := s.rdb.Get(ctx, activeKey(campaignID)).Result()
	if err == nil && prevID != "" && prevID != questionID {
		if prev, err := s.loadQuestion(ctx, prevID); err == nil {
			prev.Active = false
			s.saveQuestion(ctx, prev)
		}
	}

	q.Active = true
	q.UpdatedAt = time.Now()
	if err := s.saveQuestion(ctx, q); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, activeKey(campaignID), questionID, 0).Err(); err != nil {
		return fmt.Errorf("setting active pointer: %w", err)
	}

	s.announce(ctx, campaignID)
	return nil
}

func (s *RedisStore) Deactivate(ctx context.Context, campaignID string) error {
	prevID, err := s.rdb.Get(ctx, activeKey(campaignID)).Result()
	if err == nil && prevID != "" {
		if prev, err := s.loadQuestion(ctx, prevID); err == nil {
			prev.Active = false
			s.saveQuestion(ctx, prev)
		}
	}
	if err := s.rdb.Del(ctx, activeKey(campaignID)).Err(); err != nil {
		return fmt.Errorf("clearing active pointer: %w", err)
	}
	s.announce(ctx, campaignID)
	return nil
}

func (s *RedisStore) WriteSeedVotes(ctx context.Context, questionID string, votes []domain.OptionCount) error {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, votesKey(questionID))
	for _, oc := range votes {
		pipe.HSet(ctx, votesKey(questionID), oc.Option, oc.Votes)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing votes: %w", err)
	}
	s.announce(ctx, q.CampaignID)
	return nil
}

func (s *RedisStore) WriteSeedAnswers(ctx context.Context, questionID string, answers []domain.AnswerCount) error {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, answersKey(questionID))
	for _, ac := range answers {
		pipe.HSet(ctx, answersKey(questionID), ac.Text, ac.Count)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing answers: %w", err)
	}
	s.announce(ctx, q.CampaignID)
	return nil
}

func (s *RedisStore) RecordVote(ctx context.Context, questionID, option string) error {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := s.rdb.HIncrBy(ctx, votesKey(questionID), option, 1).Err(); err != nil {
		return fmt.Errorf("recording vote: %w", err)
	}
	s.announce(ctx, q.CampaignID)
	return nil
}

func (s *RedisStore) RecordAnswer(ctx context.Context, questionID, text string) error {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := s.rdb.HIncrBy(ctx, answersKey(questionID), text, 1).Err(); err != nil {
		return fmt.Errorf("recording answer: %w", err)
	}
	s.announce(ctx, q.CampaignID)
	return nil
}

func (s *RedisStore) GetResults(ctx context.Context, questionID string) (domain.Results, error) {
	q, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return domain.Results{}, err
	}

	res := domain.Results{QuestionID: questionID}
	if q.Kind == domain.KindPoll {
		raw, err := s.rdb.HGetAll(ctx, votesKey(questionID)).Result()
		if err != nil {
			return res, fmt.Errorf("reading votes: %w", err)
		}
		for _, opt := range q.Options {
			n, _ := strconv.Atoi(raw[opt])
			res.Votes = append(res.Votes, domain.OptionCount{Option: opt, Votes: n})
			res.Total += n
		}
		return res, nil
	}

	raw, err := s.rdb.HGetAll(ctx, answersKey(questionID)).Result()
	if err != nil {
		return res, fmt.Errorf("reading answers: %w", err)
	}
	for text, countStr := range raw {
		n, _ := strconv.Atoi(countStr)
		res.Answers = append(res.Answers, domain.AnswerCount{Text: text, Count: n})
		res.Total += n
	}
	sortAnswers(res.Answers)
	return res, nil
}

func (s *RedisStore) ActiveQuestion(ctx context.Context, campaignID string) (*domain.Question, error) {
	id, err := s.rdb.Get(ctx, activeKey(campaignID)).Result()
	if err == redis.Nil || id == "" {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading active pointer: %w", err)
	}
	q, err := s.loadQuestion(ctx, id)
	if err == ErrNotFound {
		return nil, nil
	}
	return q, err
}

func (s *RedisStore) Subscribe(ctx context.Context, campaignID string) (<-chan Snapshot, error) {
	pubsub := s.rdb.Subscribe(ctx, changedChannel(campaignID))
	out := make(chan Snapshot, 8)

	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				snap, err := s.snapshot(ctx, campaignID)
				if err != nil {
					s.log.Warn().Err(err).Str("campaign", campaignID).Msg("snapshot read failed")
					continue
				}
				select {
				case out <- snap:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) snapshot(ctx context.Context, campaignID string) (Snapshot, error) {
	var snap Snapshot
	q, err := s.ActiveQuestion(ctx, campaignID)
	if err != nil {
		return snap, err
	}
	if q != nil {
		snap.Active = q
		if res, err := s.GetResults(ctx, q.ID); err == nil {
			snap.Results = &res
		}
	}
	return snap, nil
}

func (s *RedisStore) announce(ctx context.Context, campaignID string) {
	if err := s.rdb.Publish(ctx, changedChannel(campaignID), "changed").Err(); err != nil {
		s.log.Warn().Err(err).Str("campaign", campaignID).Msg("publish failed")
	}
}

func (s *RedisStore) loadQuestion(ctx context.Context, id string) (*domain.Question, error) {
	data, err := s.rdb.Get(ctx, questionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading question: %w", err)
	}
	var q domain.Question
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decoding question: %w", err)
	}
	return &q, nil
}

func (s *RedisStore) saveQuestion(ctx context.Context, q *domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encoding question: %w", err)
	}
	if err := s.rdb.Set(ctx, questionKey(q.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("writing question: %w", err)
	}
	return nil
}
