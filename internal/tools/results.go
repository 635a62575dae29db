package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/results"
)

// SeatTotal is the fixed number of discrete seats show_seat_allocation
// distributes across poll options.
const SeatTotal = 150

// notReady is the structured outcome for the zero-response guard: the
// agent narrates "results aren't in yet" instead of a zero-vote chart.
func notReady(what string) map[string]any {
	return map[string]any{
		"success": false,
		"message": fmt.Sprintf("no %s recorded yet, ask again in a moment", what),
	}
}

// activeOfKind returns the live question and its results when a question
// of the wanted kind is on screen.
func (d *Dispatcher) activeOfKind(kind domain.QuestionKind) (*domain.Question, *domain.Results, error) {
	q := d.questions.Active()
	if q == nil {
		return nil, nil, errors.New("no active question: propose and confirm one first")
	}
	if q.Kind != kind {
		return nil, nil, fmt.Errorf("the active question is of kind %s, not %s", q.Kind, kind)
	}
	return q, d.questions.LiveResults(), nil
}

// Stand-in questions served when a result tool fires before anything has
// been confirmed, so a rehearsal or store outage never stalls the show.
var (
	demoPollQuestion = domain.Question{
		Kind:    domain.KindPoll,
		Text:    "Which theme should we explore next?",
		Options: []string{"Economy", "Climate", "Healthcare", "Education"},
	}
	demoOpenQuestion = domain.Question{
		Kind: domain.KindOpen,
		Text: "What is the first word that comes to mind tonight?",
	}
)

// demoResults fabricates a question of the wanted kind with generated
// results, adopts it locally exactly like a confirm that failed to
// persist, and returns a demo-mode payload.
func (d *Dispatcher) demoResults(kind domain.QuestionKind) any {
	q := demoPollQuestion
	if kind == domain.KindOpen {
		q = demoOpenQuestion
	}
	q.ID = uuid.New().String()
	q.CampaignID = d.campaignID
	q.Active = true
	q.CreatedAt = time.Now().UTC()
	q.UpdatedAt = q.CreatedAt

	res := domain.Results{QuestionID: q.ID}
	switch kind {
	case domain.KindPoll:
		total := minDemoVotes + rand.IntN(maxDemoVotes-minDemoVotes)
		res.Votes = results.Votes(q.Options, total)
		res.Total = total
	default:
		res.Answers = results.Answers(q.Text, demoAnswers)
		res.Total = results.AnswersTotal(res.Answers)
	}

	d.cacheBreakdowns(q, res)
	d.questions.ShowQuestion(q, res)
	d.notifier.SetNextTurnInstructions(resultsBias)
	d.log.Info().Str("questionId", q.ID).Str("kind", string(kind)).
		Msg("no live question, serving generated demo results")

	out := map[string]any{
		"success":    true,
		"demoMode":   true,
		"questionId": q.ID,
		"question":   q.Text,
		"note":       "no live question yet; showing locally generated demo data",
	}
	addResultSummary(out, q, res)
	return out
}

func (d *Dispatcher) getPollResults(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.questions.Active() == nil {
		return d.demoResults(domain.KindPoll), nil
	}
	q, live, err := d.activeOfKind(domain.KindPoll)
	if err != nil {
		return nil, err
	}
	if live == nil || live.Total == 0 {
		return notReady("votes"), nil
	}

	if err := d.questions.ShowResults(*live); err != nil {
		return nil, err
	}
	d.notifier.SetNextTurnInstructions(resultsBias)

	out := map[string]any{"success": true, "questionId": q.ID, "question": q.Text}
	addResultSummary(out, *q, *live)
	return out, nil
}

func (d *Dispatcher) getWordcloudResults(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.questions.Active() == nil {
		return d.demoResults(domain.KindOpen), nil
	}
	q, live, err := d.activeOfKind(domain.KindOpen)
	if err != nil {
		return nil, err
	}
	if live == nil || live.Total == 0 {
		return notReady("answers"), nil
	}

	if err := d.questions.ShowResults(*live); err != nil {
		return nil, err
	}
	d.notifier.SetNextTurnInstructions(resultsBias)

	out := map[string]any{"success": true, "questionId": q.ID, "question": q.Text}
	addResultSummary(out, *q, *live)
	return out, nil
}

func (d *Dispatcher) analyzePollRegions(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.deepDive(domain.KindPoll, domain.DimensionRegion)
}

func (d *Dispatcher) analyzePollProfiles(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.deepDive(domain.KindPoll, domain.DimensionProfile)
}

func (d *Dispatcher) analyzeWordcloudDeep(ctx context.Context, _ json.RawMessage) (any, error) {
	return d.deepDive(domain.KindOpen, domain.DimensionAnswers)
}

// deepDive serves the breakdown generated when the question was
// confirmed. Breakdowns are session-local and never recomputed here, so
// repeated calls narrate consistent numbers.
func (d *Dispatcher) deepDive(kind domain.QuestionKind, dim domain.BreakdownDimension) (any, error) {
	q, _, err := d.activeOfKind(kind)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	view, ok := d.breakdowns[dim]
	current := d.breakdownsFor == q.ID
	d.mu.Unlock()
	if !ok || !current {
		return nil, errors.New("no breakdown available for this question: confirm it first")
	}

	d.bus.Emit(domain.Event{Type: domain.EventDeepDive, Question: q, Breakdown: &view})
	d.notifier.SetNextTurnInstructions(resultsBias)

	insights := make([]string, 0, len(view.Segments))
	for _, seg := range view.Segments {
		if seg.Insight != "" {
			insights = append(insights, seg.Insight)
			continue
		}
		if top, share := seg.Top(); top != "" {
			insights = append(insights, fmt.Sprintf("%s: %q leads with %.0f%%", seg.Name, top, share))
		}
	}
	return map[string]any{
		"success":   true,
		"dimension": dim,
		"insights":  insights,
		"summary":   strings.Join(insights, "; "),
	}, nil
}

type seatArgs struct {
	Seats int `json:"seats"`
}

// showSeatAllocation converts the live poll result into a seat
// distribution, reconciling rounding remainders onto the leader so the
// total is exact.
func (d *Dispatcher) showSeatAllocation(ctx context.Context, raw json.RawMessage) (any, error) {
	var args seatArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	total := args.Seats
	if total <= 0 {
		total = SeatTotal
	}

	q, live, err := d.activeOfKind(domain.KindPoll)
	if err != nil {
		return nil, err
	}
	if live == nil || live.Total == 0 {
		return nil, errors.New("no computed poll results: fetch or confirm results first")
	}

	seats := results.AllocateSeats(live.Votes, total)
	d.bus.Emit(domain.Event{Type: domain.EventSeatAllocation, Question: q, Seats: seats})

	return map[string]any{
		"success":    true,
		"totalSeats": total,
		"seats":      seats,
	}, nil
}
