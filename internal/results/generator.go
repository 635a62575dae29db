// Package results produces plausible demo result sets: vote tallies,
// open-answer samples, and segment breakdowns. Everything here is a pure
// function of its inputs plus randomness; nothing touches the store.
package results

import (
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/soyeahso/pulsestage/internal/domain"
)

// VoteFloor is the minimum vote count any option receives when the total
// allows it. Keeps demo polls from showing an embarrassing zero.
const VoteFloor = 3

// Votes distributes total votes over the given options non-uniformly.
// Every option gets at least VoteFloor votes (or total/len when the total
// is too small) and the counts sum to exactly total.
func Votes(options []string, total int) []domain.OptionCount {
	n := len(options)
	if n == 0 || total <= 0 {
		return nil
	}

	floor := VoteFloor
	if total < n*floor {
		floor = total / n
	}

	weights := make([]float64, n)
	var wsum float64
	for i := range weights {
		// Skewed weights so one option plausibly leads.
		weights[i] = 0.5 + rand.Float64()*2.5
		wsum += weights[i]
	}

	counts := make([]int, n)
	remaining := total - n*floor
	assigned := 0
	for i := range counts {
		share := int(float64(remaining) * weights[i] / wsum)
		counts[i] = floor + share
		assigned += floor + share
	}

	// Rounding leftovers go to the heaviest option.
	heaviest := 0
	for i, w := range weights {
		if w > weights[heaviest] {
			heaviest = i
		}
	}
	counts[heaviest] += total - assigned

	out := make([]domain.OptionCount, n)
	for i, opt := range options {
		out[i] = domain.OptionCount{Option: opt, Votes: counts[i]}
	}
	return out
}

// Percentages returns each option's whole-percent share, rounded down.
// The rounded values sum to at most 100 and at least 100-(len-1).
func Percentages(counts []domain.OptionCount) []float64 {
	total := 0
	for _, oc := range counts {
		total += oc.Votes
	}
	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, oc := range counts {
		out[i] = math.Floor(float64(oc.Votes) / float64(total) * 100)
	}
	return out
}

// answerPool is a set of canned answers used when a question matches one
// of its keywords.
type answerPool struct {
	keywords []string
	answers  []string
}

var answerPools = []answerPool{
	{
		keywords: []string{"ai", "tech", "robot", "digital", "computer", "future"},
		answers: []string{
			"Smarter assistants", "Job displacement", "Better healthcare",
			"Privacy concerns", "Self-driving cars", "Creative tools",
			"More free time", "Deepfakes", "Personalized education",
		},
	},
	{
		keywords: []string{"sport", "win", "match", "game", "team", "cup", "final"},
		answers: []string{
			"The underdogs", "Home advantage decides", "Penalties again",
			"Defense wins titles", "The favorites", "A last-minute goal",
			"Too close to call", "Whoever wants it more",
		},
	},
	{
		keywords: []string{"food", "eat", "dinner", "lunch", "snack", "taste"},
		answers: []string{
			"Pizza", "Sushi", "Anything with cheese", "Street food",
			"Home cooking", "Ramen", "Tacos", "A good burger",
		},
	},
	{
		keywords: []string{"climate", "energy", "green", "sustainab", "planet"},
		answers: []string{
			"Solar everywhere", "Less flying", "Nuclear comeback",
			"Plant-based eating", "Better insulation", "Carbon pricing",
			"Public transport", "Repair over replace",
		},
	},
	{
		keywords: []string{"music", "song", "festival", "artist", "concert"},
		answers: []string{
			"Live shows beat streaming", "Vinyl is back", "Pop reigns",
			"Techno all night", "The classics", "Whatever my kids play",
			"Festival season", "Headphones on, world off",
		},
	},
	{
		keywords: []string{"work", "office", "remote", "job", "career"},
		answers: []string{
			"Fully remote", "Hybrid is the sweet spot", "Four-day week",
			"Better managers", "No more meetings", "Office friendships",
			"Async everything", "A shorter commute",
		},
	},
}

var defaultAnswers = []string{
	"More of this", "Surprise me", "Hard to say", "Absolutely yes",
	"Probably not", "Depends on the day", "Ask the audience",
	"Something unexpected", "The simple option", "Both, honestly",
}

// Answers samples n plausible free-text answers matched to the question's
// topic, each with a randomized count, sorted by count descending.
func Answers(questionText string, n int) []domain.AnswerCount {
	if n <= 0 {
		return nil
	}
	pool := matchPool(strings.ToLower(questionText))

	idx := rand.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]domain.AnswerCount, n)
	for i := 0; i < n; i++ {
		out[i] = domain.AnswerCount{
			Text:  pool[idx[i]],
			Count: 1 + rand.IntN(12),
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// matchPool picks the first topic pool whose keyword appears in the
// question text, falling back to the generic pool.
func matchPool(lower string) []string {
	for _, p := range answerPools {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.answers
			}
		}
	}
	return defaultAnswers
}

// AnswersTotal sums the counts of a sampled answer set.
func AnswersTotal(answers []domain.AnswerCount) int {
	total := 0
	for _, a := range answers {
		total += a.Count
	}
	return total
}
