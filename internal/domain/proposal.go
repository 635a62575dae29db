package domain

// Proposal is an uncommitted poll or open-question draft awaiting host
// approval. It lives only in orchestrator memory; nothing is persisted
// until the matching confirm tool call commits it.
type Proposal struct {
	Kind        QuestionKind `json:"kind"`
	Text        string       `json:"text"`
	Options     []string     `json:"options,omitempty"`
	SeedVotes   []int        `json:"seedVotes,omitempty"`
	SeedAnswers []string     `json:"seedAnswers,omitempty"`

	// ExistingID is set when the proposal reuses an already-live question
	// whose text matches case-insensitively.
	ExistingID string `json:"existingId,omitempty"`
}

// Breakdown dimensions for deep-dive views.
type BreakdownDimension string

const (
	DimensionRegion  BreakdownDimension = "region"
	DimensionProfile BreakdownDimension = "profile"
	DimensionAnswers BreakdownDimension = "answers"
)

// Segment is one slice of a deep-dive breakdown: a region or audience
// profile with its own sub-totals and a short narrative insight.
type Segment struct {
	Name    string        `json:"name"`
	Votes   []OptionCount `json:"votes,omitempty"`
	Answers []AnswerCount `json:"answers,omitempty"`
	Total   int           `json:"total"`
	Insight string        `json:"insight,omitempty"`
}

// Top returns the leading option or answer in the segment and its share
// of the segment total in percent.
func (s Segment) Top() (string, float64) {
	if s.Total == 0 {
		return "", 0
	}
	best, count := "", -1
	for _, oc := range s.Votes {
		if oc.Votes > count {
			best, count = oc.Option, oc.Votes
		}
	}
	for _, ac := range s.Answers {
		if ac.Count > count {
			best, count = ac.Text, ac.Count
		}
	}
	if count < 0 {
		return "", 0
	}
	return best, float64(count) / float64(s.Total) * 100
}

// Breakdown is a derived, session-local analytic view of a question's
// results split by one dimension. Never persisted.
type Breakdown struct {
	QuestionID string             `json:"questionId"`
	Dimension  BreakdownDimension `json:"dimension"`
	Segments   []Segment          `json:"segments"`
}
