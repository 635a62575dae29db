package domain

import "time"

// QuestionKind distinguishes multiple-choice polls from open questions.
type QuestionKind string

const (
	KindPoll QuestionKind = "poll"
	KindOpen QuestionKind = "open"
)

// Question is a poll or open question shown to the audience.
// At most one question per campaign is active at any time.
type Question struct {
	ID         string       `json:"id"`
	CampaignID string       `json:"campaignId"`
	Kind       QuestionKind `json:"kind"`
	Text       string       `json:"text"`
	Options    []string     `json:"options,omitempty"` // poll only, 2–6 entries
	Active     bool         `json:"active"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// OptionCount is the vote tally for one poll option.
type OptionCount struct {
	Option string `json:"option"`
	Votes  int    `json:"votes"`
}

// AnswerCount is a free-text answer and how often it was given.
type AnswerCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Results holds the aggregated responses for a question.
// Votes is populated for polls, Answers for open questions.
type Results struct {
	QuestionID string        `json:"questionId"`
	Votes      []OptionCount `json:"votes,omitempty"`
	Answers    []AnswerCount `json:"answers,omitempty"`
	Total      int           `json:"total"`
}

// Winner returns the option with the most votes. The second return is
// false when there are no votes recorded.
func (r Results) Winner() (OptionCount, bool) {
	if len(r.Votes) == 0 {
		return OptionCount{}, false
	}
	best := r.Votes[0]
	for _, oc := range r.Votes[1:] {
		if oc.Votes > best.Votes {
			best = oc
		}
	}
	return best, r.Total > 0
}

// TopAnswers returns up to n answers ordered as stored (the store keeps
// them sorted by count descending).
func (r Results) TopAnswers(n int) []AnswerCount {
	if n > len(r.Answers) {
		n = len(r.Answers)
	}
	return r.Answers[:n]
}
