package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/results"
)

// Generated demo totals land in this range when no seed data is given.
const (
	minDemoVotes = 120
	maxDemoVotes = 420
	demoAnswers  = 8
)

type proposePollArgs struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	SeedVotes []int    `json:"seedVotes"`
}

type proposeOpenArgs struct {
	Question    string   `json:"question"`
	SeedAnswers []string `json:"seedAnswers"`
}

type confirmArgs struct {
	SeedAnswers []string `json:"seedAnswers"`
}

// proposePoll stages a poll draft. Nothing is written to the store; the
// draft only becomes live on confirm_question.
func (d *Dispatcher) proposePoll(ctx context.Context, raw json.RawMessage) (any, error) {
	var args proposePollArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(args.Question)
	if text == "" {
		return nil, errors.New("question text is required")
	}
	if len(args.Options) < 2 || len(args.Options) > 6 {
		return nil, fmt.Errorf("a poll needs 2 to 6 options, got %d", len(args.Options))
	}
	if len(args.SeedVotes) > 0 && len(args.SeedVotes) != len(args.Options) {
		return nil, fmt.Errorf("seedVotes has %d entries for %d options", len(args.SeedVotes), len(args.Options))
	}

	p := domain.Proposal{
		Kind:      domain.KindPoll,
		Text:      text,
		Options:   args.Options,
		SeedVotes: args.SeedVotes,
	}
	d.stageProposal(ctx, &p)

	return map[string]any{
		"success":  true,
		"status":   "proposed",
		"question": text,
		"options":  args.Options,
		"note":     "shown as a preview; call confirm_question once the host approves",
	}, nil
}

// proposeOpenQuestion stages an open-question draft.
func (d *Dispatcher) proposeOpenQuestion(ctx context.Context, raw json.RawMessage) (any, error) {
	var args proposeOpenArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(args.Question)
	if text == "" {
		return nil, errors.New("question text is required")
	}

	p := domain.Proposal{
		Kind:        domain.KindOpen,
		Text:        text,
		SeedAnswers: args.SeedAnswers,
	}
	d.stageProposal(ctx, &p)

	return map[string]any{
		"success":  true,
		"status":   "proposed",
		"question": text,
		"note":     "shown as a preview; call confirm_question once the host approves",
	}, nil
}

// stageProposal installs p as the single pending draft, reusing an
// already-live question when the text matches it, and previews it.
func (d *Dispatcher) stageProposal(ctx context.Context, p *domain.Proposal) {
	if active := d.questions.Active(); active != nil && active.Kind == p.Kind && sameQuestionText(active.Text, p.Text) {
		p.ExistingID = active.ID
		p.Text = active.Text
		if p.Kind == domain.KindPoll && len(p.Options) == 0 {
			p.Options = active.Options
		}
		d.log.Debug().Str("questionId", active.ID).Msg("proposal reuses live question")
	}

	d.mu.Lock()
	if d.proposal != nil {
		d.log.Debug().Str("discarded", d.proposal.Text).Msg("replacing pending proposal")
	}
	d.proposal = p
	d.mu.Unlock()

	d.questions.ShowProposal(*p)
}

func sameQuestionText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// confirmQuestion commits the pending proposal: persist, activate, seed,
// compute the displayable result set and its deep-dive breakdowns, and
// put it on screen. A store failure degrades to local demo mode instead
// of aborting the show.
func (d *Dispatcher) confirmQuestion(ctx context.Context, raw json.RawMessage) (any, error) {
	var args confirmArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	d.mu.Lock()
	p := d.proposal
	d.proposal = nil
	d.mu.Unlock()
	if p == nil {
		return nil, errors.New("no pending proposal: call propose_poll or propose_open_question first")
	}
	// Confirm-time seed answers win over ones supplied at propose time.
	if len(args.SeedAnswers) > 0 {
		p.SeedAnswers = args.SeedAnswers
	}

	q := domain.Question{
		ID:         p.ExistingID,
		CampaignID: d.campaignID,
		Kind:       p.Kind,
		Text:       p.Text,
		Options:    p.Options,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if q.ID == "" {
		q.ID = uuid.New().String()
	}

	res := d.seedResults(ctx, p, q)
	persisted := d.persistConfirmed(ctx, p, q, res)

	d.cacheBreakdowns(q, res)
	d.questions.ShowQuestion(q, res)
	d.notifier.SetNextTurnInstructions(resultsBias)

	out := map[string]any{
		"success":    true,
		"questionId": q.ID,
		"kind":       q.Kind,
		"question":   q.Text,
	}
	if !persisted {
		out["demoMode"] = true
		out["note"] = "results could not be saved; continuing with local data"
	}
	addResultSummary(out, q, res)
	return out, nil
}

// seedResults builds the initial displayable result set from supplied
// seed data, from what the store already holds for a reused question, or
// from the generator.
func (d *Dispatcher) seedResults(ctx context.Context, p *domain.Proposal, q domain.Question) domain.Results {
	res := domain.Results{QuestionID: q.ID}

	switch q.Kind {
	case domain.KindPoll:
		if len(p.SeedVotes) == len(q.Options) && len(p.SeedVotes) > 0 {
			for i, opt := range q.Options {
				res.Votes = append(res.Votes, domain.OptionCount{Option: opt, Votes: p.SeedVotes[i]})
				res.Total += p.SeedVotes[i]
			}
			return res
		}
		if p.ExistingID != "" {
			if stored, err := d.store.GetResults(ctx, p.ExistingID); err == nil && stored.Total > 0 {
				return stored
			}
		}
		total := minDemoVotes + rand.IntN(maxDemoVotes-minDemoVotes)
		res.Votes = results.Votes(q.Options, total)
		res.Total = total
		return res

	default:
		if len(p.SeedAnswers) > 0 {
			for _, text := range p.SeedAnswers {
				res.Answers = append(res.Answers, domain.AnswerCount{
					Text:  strings.TrimSpace(text),
					Count: 2 + rand.IntN(10),
				})
			}
			sort.Slice(res.Answers, func(i, j int) bool { return res.Answers[i].Count > res.Answers[j].Count })
			res.Total = results.AnswersTotal(res.Answers)
			return res
		}
		if p.ExistingID != "" {
			if stored, err := d.store.GetResults(ctx, p.ExistingID); err == nil && stored.Total > 0 {
				return stored
			}
		}
		res.Answers = results.Answers(q.Text, demoAnswers)
		res.Total = results.AnswersTotal(res.Answers)
		return res
	}
}

// persistConfirmed writes the confirmed question and its seed data.
// Reports false when any write failed; the caller carries on locally.
func (d *Dispatcher) persistConfirmed(ctx context.Context, p *domain.Proposal, q domain.Question, res domain.Results) bool {
	ok := true
	fail := func(step string, err error) {
		ok = false
		d.log.Warn().Err(err).Str("step", step).Str("questionId", q.ID).
			Msg("store write failed, continuing in local demo mode")
	}

	if p.ExistingID == "" {
		if err := d.store.CreateQuestion(ctx, q); err != nil {
			fail("create", err)
			return false
		}
	}
	if err := d.store.SetActive(ctx, d.campaignID, q.ID); err != nil {
		fail("activate", err)
		return false
	}
	switch q.Kind {
	case domain.KindPoll:
		if err := d.store.WriteSeedVotes(ctx, q.ID, res.Votes); err != nil {
			fail("seed votes", err)
		}
	default:
		if err := d.store.WriteSeedAnswers(ctx, q.ID, res.Answers); err != nil {
			fail("seed answers", err)
		}
	}
	return ok
}

// cacheBreakdowns derives the deep-dive views for the question just
// confirmed. They are session-local; deep-dive tools serve them later.
func (d *Dispatcher) cacheBreakdowns(q domain.Question, res domain.Results) {
	views := make(map[domain.BreakdownDimension]domain.Breakdown)
	switch q.Kind {
	case domain.KindPoll:
		views[domain.DimensionRegion] = results.RegionalBreakdown(q, res)
		views[domain.DimensionProfile] = results.ProfileBreakdown(q, res)
	default:
		views[domain.DimensionAnswers] = results.AnswerBreakdown(q, res)
	}

	d.mu.Lock()
	d.breakdowns = views
	d.breakdownsFor = q.ID
	d.mu.Unlock()
}

// addResultSummary enriches a tool payload with narratable totals.
func addResultSummary(out map[string]any, q domain.Question, res domain.Results) {
	switch q.Kind {
	case domain.KindPoll:
		out["totalVotes"] = res.Total
		pct := results.Percentages(res.Votes)
		options := make([]map[string]any, len(res.Votes))
		for i, oc := range res.Votes {
			options[i] = map[string]any{"option": oc.Option, "votes": oc.Votes, "percent": pct[i]}
		}
		out["results"] = options
		if winner, ok := res.Winner(); ok {
			out["winner"] = winner.Option
		}
	default:
		out["totalAnswers"] = res.Total
		out["topAnswers"] = res.TopAnswers(5)
	}
}
