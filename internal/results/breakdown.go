package results

import (
	"fmt"
	"math/rand/v2"

	"github.com/soyeahso/pulsestage/internal/domain"
)

// Fixed segment sets used by deep-dive breakdowns.
var (
	Regions  = []string{"North", "East", "South", "West"}
	Profiles = []string{"Students", "Professionals", "Entrepreneurs", "Seniors"}
)

// RegionalBreakdown splits a poll's results over the fixed region set with
// independently randomized sub-totals.
func RegionalBreakdown(q domain.Question, base domain.Results) domain.Breakdown {
	return pollBreakdown(q, base, domain.DimensionRegion, Regions)
}

// ProfileBreakdown splits a poll's results over the fixed audience-profile set.
func ProfileBreakdown(q domain.Question, base domain.Results) domain.Breakdown {
	return pollBreakdown(q, base, domain.DimensionProfile, Profiles)
}

func pollBreakdown(q domain.Question, base domain.Results, dim domain.BreakdownDimension, names []string) domain.Breakdown {
	segments := make([]domain.Segment, 0, len(names))
	for _, name := range names {
		segTotal := segmentTotal(base.Total, len(names))
		votes := Votes(q.Options, segTotal)
		seg := domain.Segment{
			Name:  name,
			Votes: votes,
			Total: segTotal,
		}
		if top, share := seg.Top(); top != "" {
			seg.Insight = fmt.Sprintf("%s leads in %s with %.0f%% of %d votes", top, name, share, segTotal)
		}
		segments = append(segments, seg)
	}
	return domain.Breakdown{QuestionID: q.ID, Dimension: dim, Segments: segments}
}

// AnswerBreakdown splits an open question's answers over the audience
// profiles, sampling a distinct answer mix per segment.
func AnswerBreakdown(q domain.Question, base domain.Results) domain.Breakdown {
	segments := make([]domain.Segment, 0, len(Profiles))
	for _, name := range Profiles {
		answers := sampleAnswers(base.Answers, q.Text)
		total := AnswersTotal(answers)
		seg := domain.Segment{
			Name:    name,
			Answers: answers,
			Total:   total,
		}
		if top, share := seg.Top(); top != "" {
			seg.Insight = fmt.Sprintf("%q dominates among %s (%.0f%%)", top, name, share)
		}
		segments = append(segments, seg)
	}
	return domain.Breakdown{QuestionID: q.ID, Dimension: domain.DimensionAnswers, Segments: segments}
}

// segmentTotal randomizes an even split by ±40% so segments look organic.
func segmentTotal(total, segments int) int {
	if segments == 0 {
		return 0
	}
	even := float64(total) / float64(segments)
	factor := 0.6 + rand.Float64()*0.8
	n := int(even * factor)
	if n < 1 {
		n = 1
	}
	return n
}

// sampleAnswers re-weights the base answers for one segment, falling back
// to generated answers when the base set is empty.
func sampleAnswers(base []domain.AnswerCount, questionText string) []domain.AnswerCount {
	if len(base) == 0 {
		return Answers(questionText, 5)
	}
	out := make([]domain.AnswerCount, len(base))
	for i, a := range base {
		count := 1 + rand.IntN(a.Count+3)
		out[i] = domain.AnswerCount{Text: a.Text, Count: count}
	}
	return out
}

// AllocateSeats proportionally allocates seatTotal discrete seats across
// the options by rounding percentage shares, reconciling any rounding
// remainder onto the leading option so the sum is exact.
func AllocateSeats(counts []domain.OptionCount, seatTotal int) []domain.SeatShare {
	if len(counts) == 0 || seatTotal <= 0 {
		return nil
	}
	total := 0
	for _, oc := range counts {
		total += oc.Votes
	}
	if total == 0 {
		return nil
	}

	out := make([]domain.SeatShare, len(counts))
	allocated := 0
	leader := 0
	for i, oc := range counts {
		pct := float64(oc.Votes) / float64(total) * 100
		seats := int(float64(seatTotal)*pct/100 + 0.5)
		out[i] = domain.SeatShare{Option: oc.Option, Percent: pct, Seats: seats}
		allocated += seats
		if oc.Votes > counts[leader].Votes {
			leader = i
		}
	}
	out[leader].Seats += seatTotal - allocated
	return out
}
