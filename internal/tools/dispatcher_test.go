package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
	"github.com/soyeahso/pulsestage/internal/question"
	"github.com/soyeahso/pulsestage/internal/services"
	"github.com/soyeahso/pulsestage/internal/store"
	"github.com/soyeahso/pulsestage/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type fakeNotifier struct {
	mu           sync.Mutex
	silent       []string
	responded    []string
	instructions []string
}

func (f *fakeNotifier) SendSilentNotification(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = append(f.silent, text)
	return nil
}

func (f *fakeNotifier) SendNotificationAndRespond(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responded = append(f.responded, text)
	return nil
}

func (f *fakeNotifier) SetNextTurnInstructions(instructions string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instructions = append(f.instructions, instructions)
}

func (f *fakeNotifier) silentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.silent...)
}

func (f *fakeNotifier) respondedMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.responded...)
}

type fakeSearcher struct {
	results []services.SearchResult
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]services.SearchResult, error) {
	return f.results, f.err
}

type fakeImages struct {
	url string
	err error
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (string, error) {
	return f.url, f.err
}

// failingStore simulates a store outage for every write.
type failingStore struct {
	store.Store
}

func (failingStore) CreateQuestion(context.Context, domain.Question) error {
	return errors.New("store down")
}

func (failingStore) SetActive(context.Context, string, string) error {
	return errors.New("store down")
}

func (failingStore) WriteSeedVotes(context.Context, string, []domain.OptionCount) error {
	return errors.New("store down")
}

func (failingStore) WriteSeedAnswers(context.Context, string, []domain.AnswerCount) error {
	return errors.New("store down")
}

type rig struct {
	d        *Dispatcher
	st       store.Store
	qm       *question.Manager
	notifier *fakeNotifier
	search   *fakeSearcher
	images   *fakeImages
	events   *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) record(evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) ofType(typ domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, evt := range r.events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

func (r *eventRecorder) waitFor(t *testing.T, typ domain.EventType) domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evts := r.ofType(typ); len(evts) > 0 {
			return evts[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s event observed", typ)
	return domain.Event{}
}

func newRig(t *testing.T, st store.Store) *rig {
	t.Helper()
	if st == nil {
		mem := store.NewMemoryStore()
		t.Cleanup(func() { mem.Close() })
		st = mem
	}
	bus := ui.NewBus(silentLog())
	rec := &eventRecorder{}
	bus.Listen(rec.record)

	r := &rig{
		st:       st,
		qm:       question.NewManager("demo", st, bus, silentLog()),
		notifier: &fakeNotifier{},
		search:   &fakeSearcher{},
		images:   &fakeImages{},
		events:   rec,
	}
	r.d = NewDispatcher("demo", st, r.qm, r.search, r.images, r.notifier, bus, silentLog())
	return r
}

// exec runs one tool call and decodes the payload.
func exec(t *testing.T, d *Dispatcher, name, args string) map[string]any {
	t.Helper()
	payload := d.Execute(context.Background(), name, "call_"+name, args)
	var out map[string]any
	require.NoError(t, json.Unmarshal(payload, &out), "payload: %s", payload)
	return out
}

func TestUnknownToolReturnsErrorPayload(t *testing.T) {
	r := newRig(t, nil)
	out := exec(t, r.d, "launch_fireworks", `{}`)
	assert.Contains(t, out["error"], "unknown tool")
}

func TestMalformedArgumentsNeverCrashDispatch(t *testing.T) {
	r := newRig(t, nil)

	// Truncated mid-string: repaired, then rejected on validation.
	out := exec(t, r.d, "propose_poll", `{"question":"abc`)
	assert.Contains(t, out["error"], "options")

	// Hopeless input: runs on an empty argument set.
	out = exec(t, r.d, "propose_poll", `§§§`)
	assert.Contains(t, out["error"], "question text is required")
}

func TestProposePollWritesNothing(t *testing.T) {
	r := newRig(t, nil)

	out := exec(t, r.d, "propose_poll", `{"question":"Coffee or tea?","options":["Coffee","Tea"]}`)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "proposed", out["status"])

	previews := r.events.ofType(domain.EventPollPreview)
	require.Len(t, previews, 1)
	assert.Equal(t, "Coffee or tea?", previews[0].Proposal.Text)

	// Nothing reached the store.
	active, err := r.st.ActiveQuestion(context.Background(), "demo")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestProposePollValidation(t *testing.T) {
	r := newRig(t, nil)

	out := exec(t, r.d, "propose_poll", `{"question":"x","options":["only one"]}`)
	assert.Contains(t, out["error"], "2 to 6 options")

	out = exec(t, r.d, "propose_poll", `{"question":"x","options":["a","b"],"seedVotes":[1,2,3]}`)
	assert.Contains(t, out["error"], "seedVotes")
}

func TestConfirmWithoutProposal(t *testing.T) {
	r := newRig(t, nil)
	out := exec(t, r.d, "confirm_question", `{}`)
	assert.Contains(t, out["error"], "no pending proposal")

	// And no store writes happened.
	active, err := r.st.ActiveQuestion(context.Background(), "demo")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSecondProposeDiscardsFirst(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"First?","options":["A","B"]}`)
	exec(t, r.d, "propose_open_question", `{"question":"Second?"}`)
	out := exec(t, r.d, "confirm_question", `{}`)

	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Second?", out["question"])
	assert.Equal(t, string(domain.KindOpen), out["kind"])
}

func TestConfirmPollHappyPath(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"Wie wint?","options":["A","B"],"seedVotes":[60,40]}`)
	out := exec(t, r.d, "confirm_question", `{}`)

	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(100), out["totalVotes"])
	assert.Equal(t, "A", out["winner"])
	assert.Nil(t, out["demoMode"])

	// Persisted and active.
	active, err := r.st.ActiveQuestion(context.Background(), "demo")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "Wie wint?", active.Text)

	stored, err := r.st.GetResults(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Total)

	// On screen with results.
	shown := r.events.ofType(domain.EventPollResults)
	require.NotEmpty(t, shown)
	assert.Equal(t, 100, shown[0].Results.Total)

	// The next turn gets the results bias.
	assert.NotEmpty(t, r.notifier.instructions)
}

func TestConfirmGeneratesResultsWithoutSeeds(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"Best season?","options":["Summer","Winter","Spring"]}`)
	out := exec(t, r.d, "confirm_question", `{}`)

	require.Equal(t, true, out["success"])
	total := int(out["totalVotes"].(float64))
	assert.GreaterOrEqual(t, total, minDemoVotes)
	assert.Less(t, total, maxDemoVotes)
}

func TestConfirmOpenQuestionWithConfirmTimeSeeds(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_open_question", `{"question":"One word for today?","seedAnswers":["old"]}`)
	out := exec(t, r.d, "confirm_question", `{"seedAnswers":["energie","inspiratie","druk"]}`)

	require.Equal(t, true, out["success"])
	top := out["topAnswers"].([]any)
	texts := make([]string, 0, len(top))
	for _, a := range top {
		texts = append(texts, a.(map[string]any)["text"].(string))
	}
	assert.ElementsMatch(t, []string{"energie", "inspiratie", "druk"}, texts)
	assert.NotContains(t, texts, "old")
}

func TestConfirmStoreFailureDegradesToDemoMode(t *testing.T) {
	mem := store.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })
	r := newRig(t, failingStore{Store: mem})

	exec(t, r.d, "propose_poll", `{"question":"Wie wint?","options":["A","B"],"seedVotes":[30,20]}`)
	out := exec(t, r.d, "confirm_question", `{}`)

	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["demoMode"])
	assert.Equal(t, float64(50), out["totalVotes"])

	// The show continues on local state.
	require.NotNil(t, r.qm.Active())
	results := exec(t, r.d, "get_poll_results", `{}`)
	assert.Equal(t, true, results["success"])
	assert.Equal(t, float64(50), results["totalVotes"])
}

func TestProposeReusesMatchingLiveQuestion(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"Wie wint?","options":["A","B"],"seedVotes":[10,5]}`)
	first := exec(t, r.d, "confirm_question", `{}`)
	firstID := first["questionId"].(string)

	// Same text, different case and whitespace: the live question is
	// reused instead of creating a duplicate.
	exec(t, r.d, "propose_poll", `{"question":"  wie WINT? ","options":["A","B"]}`)
	second := exec(t, r.d, "confirm_question", `{}`)

	assert.Equal(t, firstID, second["questionId"])
	assert.Equal(t, float64(15), second["totalVotes"])
}

func TestGetPollResultsZeroResponseGuard(t *testing.T) {
	r := newRig(t, nil)

	q := domain.Question{ID: "q1", CampaignID: "demo", Kind: domain.KindPoll, Text: "x", Options: []string{"A", "B"}}
	r.qm.AdoptLocal(q, domain.Results{QuestionID: "q1"})

	out := exec(t, r.d, "get_poll_results", `{}`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["message"], "no votes recorded yet")
}

func TestGetPollResultsDemoFallbackWithoutActiveQuestion(t *testing.T) {
	r := newRig(t, nil)

	out := exec(t, r.d, "get_poll_results", `{}`)
	require.Equal(t, true, out["success"])
	assert.Equal(t, true, out["demoMode"])
	assert.NotEmpty(t, out["winner"])
	total := out["totalVotes"].(float64)
	assert.GreaterOrEqual(t, total, float64(minDemoVotes))
	assert.Less(t, total, float64(maxDemoVotes))
	assert.Len(t, r.events.ofType(domain.EventPollResults), 1)

	// The fabricated question is adopted locally, so deep dives on it
	// work just like after a real confirm.
	dive := exec(t, r.d, "analyze_poll_regions", `{}`)
	assert.Equal(t, true, dive["success"])
}

func TestGetWordcloudResultsDemoFallbackWithoutActiveQuestion(t *testing.T) {
	r := newRig(t, nil)

	out := exec(t, r.d, "get_wordcloud_results", `{}`)
	require.Equal(t, true, out["success"])
	assert.Equal(t, true, out["demoMode"])
	assert.NotEmpty(t, out["topAnswers"])
	assert.Len(t, r.events.ofType(domain.EventOpenResults), 1)
}

func TestGetPollResultsWrongKind(t *testing.T) {
	r := newRig(t, nil)

	q := domain.Question{ID: "q1", CampaignID: "demo", Kind: domain.KindOpen, Text: "x"}
	r.qm.AdoptLocal(q, domain.Results{QuestionID: "q1", Total: 3})
	out := exec(t, r.d, "get_poll_results", `{}`)
	assert.Contains(t, out["error"], "not poll")
}

func TestGetPollResultsIdempotent(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"Wie wint?","options":["A","B"],"seedVotes":[60,40]}`)
	exec(t, r.d, "confirm_question", `{}`)

	first := exec(t, r.d, "get_poll_results", `{}`)
	second := exec(t, r.d, "get_poll_results", `{}`)
	assert.Equal(t, first["totalVotes"], second["totalVotes"])
	assert.Equal(t, first["winner"], second["winner"])
}

func TestDeepDiveRequiresBreakdown(t *testing.T) {
	r := newRig(t, nil)

	q := domain.Question{ID: "q1", CampaignID: "demo", Kind: domain.KindPoll, Text: "x", Options: []string{"A", "B"}}
	r.qm.AdoptLocal(q, domain.Results{QuestionID: "q1", Total: 10, Votes: []domain.OptionCount{{Option: "A", Votes: 10}}})

	out := exec(t, r.d, "analyze_poll_regions", `{}`)
	assert.Contains(t, out["error"], "no breakdown")
}

func TestDeepDiveAfterConfirm(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"Wie wint?","options":["A","B"],"seedVotes":[60,40]}`)
	exec(t, r.d, "confirm_question", `{}`)

	for _, tool := range []string{"analyze_poll_regions", "analyze_poll_profiles"} {
		out := exec(t, r.d, tool, `{}`)
		require.Equal(t, true, out["success"], "tool %s", tool)
		insights := out["insights"].([]any)
		assert.Len(t, insights, 4)
	}
	assert.Len(t, r.events.ofType(domain.EventDeepDive), 2)

	// A wordcloud deep dive does not apply to a poll.
	out := exec(t, r.d, "analyze_wordcloud_deep", `{}`)
	assert.Contains(t, out["error"], "not open")
}

func TestShowSummaryValidation(t *testing.T) {
	r := newRig(t, nil)

	out := exec(t, r.d, "show_summary", `{"title":"Recap","highlights":["a"],"content":"b"}`)
	assert.Contains(t, out["error"], "not both")

	out = exec(t, r.d, "show_summary", `{"title":"Recap"}`)
	assert.Contains(t, out["error"], "not both")

	out = exec(t, r.d, "show_summary", `{"highlights":["a"]}`)
	assert.Contains(t, out["error"], "title")
}

func TestShowSummaryCapsHighlights(t *testing.T) {
	r := newRig(t, nil)

	out := exec(t, r.d, "show_summary",
		`{"title":"Recap","highlights":["1","2","3","4","5","6","7","8"]}`)
	assert.Equal(t, true, out["success"])

	shown := r.events.ofType(domain.EventSummary)
	require.Len(t, shown, 1)
	assert.Len(t, shown[0].Summary.Highlights, maxHighlights)
}

func TestSeatAllocationExactTotal(t *testing.T) {
	r := newRig(t, nil)

	exec(t, r.d, "propose_poll", `{"question":"Wie wint?","options":["A","B","C"],"seedVotes":[47,33,20]}`)
	exec(t, r.d, "confirm_question", `{}`)

	out := exec(t, r.d, "show_seat_allocation", `{}`)
	require.Equal(t, true, out["success"])

	seats := out["seats"].([]any)
	sum := 0
	for _, s := range seats {
		sum += int(s.(map[string]any)["seats"].(float64))
	}
	assert.Equal(t, SeatTotal, sum)
	assert.Len(t, r.events.ofType(domain.EventSeatAllocation), 1)
}

func TestSeatAllocationRequiresResults(t *testing.T) {
	r := newRig(t, nil)
	out := exec(t, r.d, "show_seat_allocation", `{}`)
	assert.Contains(t, out["error"], "no active question")
}

func TestGenerateImageFireAndForget(t *testing.T) {
	r := newRig(t, nil)
	r.images.url = "https://img.example/1.png"

	out := exec(t, r.d, "generate_image", `{"prompt":"a crowd cheering"}`)
	assert.Equal(t, "generating", out["status"])
	assert.Len(t, r.events.ofType(domain.EventImageGenerating), 1)

	r.events.waitFor(t, domain.EventImageReady)
	require.Eventually(t, func() bool {
		return len(r.notifier.silentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, r.notifier.silentMessages()[0], "ready")

	shown := exec(t, r.d, "show_generated_image", `{}`)
	assert.Equal(t, "https://img.example/1.png", shown["url"])
	assert.Len(t, r.events.ofType(domain.EventImageShown), 1)
}

func TestGenerateImageFailureNotifiesSilently(t *testing.T) {
	r := newRig(t, nil)
	r.images.err = errors.New("model overloaded")

	out := exec(t, r.d, "generate_image", `{"prompt":"x"}`)
	assert.Equal(t, true, out["success"])

	r.events.waitFor(t, domain.EventImageError)
	require.Eventually(t, func() bool {
		return len(r.notifier.silentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, r.notifier.silentMessages()[0], "failed")
}

func TestShowGeneratedImageWithoutOne(t *testing.T) {
	r := newRig(t, nil)
	out := exec(t, r.d, "show_generated_image", `{}`)
	assert.Contains(t, out["error"], "no generated image")
}

func TestWebSearchDeliversFindings(t *testing.T) {
	r := newRig(t, nil)
	r.search.results = []services.SearchResult{
		{Title: "Election results", Description: "Latest tallies"},
	}

	out := exec(t, r.d, "web_search", `{"query":"election results"}`)
	assert.Equal(t, "searching", out["status"])

	require.Eventually(t, func() bool {
		return len(r.notifier.respondedMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, r.notifier.respondedMessages()[0], "Election results")
}

func TestWebSearchFailureNotifiesSilently(t *testing.T) {
	r := newRig(t, nil)
	r.search.err = errors.New("api unreachable")

	out := exec(t, r.d, "web_search", `{"query":"x"}`)
	assert.Equal(t, true, out["success"])

	require.Eventually(t, func() bool {
		return len(r.notifier.silentMessages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, r.notifier.silentMessages()[0], "failed")
}
