// Package tools maps intercepted tool calls to executors and normalizes
// every outcome into a JSON payload the agent can narrate. Executors
// never panic the session: failures come back as {"error": ...} shapes.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/logging"
	"github.com/soyeahso/pulsestage/internal/question"
	"github.com/soyeahso/pulsestage/internal/realtime"
	"github.com/soyeahso/pulsestage/internal/services"
	"github.com/soyeahso/pulsestage/internal/store"
	"github.com/soyeahso/pulsestage/internal/ui"
)

// Notifier is the orchestrator surface background executors report
// through. Background work never touches session state directly; it only
// posts notifications.
type Notifier interface {
	SendSilentNotification(text string) error
	SendNotificationAndRespond(ctx context.Context, text string) error
	SetNextTurnInstructions(instructions string)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]services.SearchResult, error)
}

// ImageGenerator produces an image URL for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Instructions for the turn following a results tool: the agent should
// react to the numbers, not read them out.
const resultsBias = "The audience results on screen just updated. React conversationally: lead with the most surprising or lopsided finding and what it might mean, do not recite every number."

type executor func(ctx context.Context, args json.RawMessage) (any, error)

// Dispatcher executes tool calls against session state, the question
// store, and external services.
type Dispatcher struct {
	campaignID string
	store      store.Store
	questions  *question.Manager
	search     Searcher
	images     ImageGenerator
	notifier   Notifier
	bus        *ui.Bus
	log        *logging.Logger

	registry map[string]executor

	mu sync.Mutex
	// proposal is the single uncommitted draft; a new propose call
	// overwrites it, confirm consumes it.
	proposal *domain.Proposal
	// breakdowns are generated at confirm time for the question they
	// belong to; deep-dive tools refuse to run without them.
	breakdowns    map[domain.BreakdownDimension]domain.Breakdown
	breakdownsFor string
	lastImage     *domain.Image
}

func NewDispatcher(campaignID string, st store.Store, qm *question.Manager, search Searcher, images ImageGenerator, notifier Notifier, bus *ui.Bus, log *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		campaignID: campaignID,
		store:      st,
		questions:  qm,
		search:     search,
		images:     images,
		notifier:   notifier,
		bus:        bus,
		log:        log.Sub("tools"),
	}
	d.registry = map[string]executor{
		"propose_poll":           d.proposePoll,
		"propose_open_question":  d.proposeOpenQuestion,
		"confirm_question":       d.confirmQuestion,
		"get_poll_results":       d.getPollResults,
		"get_wordcloud_results":  d.getWordcloudResults,
		"analyze_poll_regions":   d.analyzePollRegions,
		"analyze_poll_profiles":  d.analyzePollProfiles,
		"analyze_wordcloud_deep": d.analyzeWordcloudDeep,
		"show_summary":           d.showSummary,
		"show_seat_allocation":   d.showSeatAllocation,
		"generate_image":         d.generateImage,
		"show_generated_image":   d.showGeneratedImage,
		"web_search":             d.webSearch,
	}
	return d
}

// Execute satisfies the orchestrator's dispatcher contract. Argument text
// goes through the repair pass first; a tool with hopeless arguments runs
// on an empty set rather than not at all.
func (d *Dispatcher) Execute(ctx context.Context, name, callID, rawArgs string) json.RawMessage {
	args := realtime.ParseArguments(rawArgs)
	d.log.Debug().Str("tool", name).Str("callId", callID).RawJSON("args", args).Msg("executing tool")

	exec, ok := d.registry[name]
	if !ok {
		d.log.Warn().Str("tool", name).Msg("unknown tool requested")
		return errorPayload(fmt.Sprintf("unknown tool %q", name))
	}

	out, err := exec(ctx, args)
	if err != nil {
		d.log.Warn().Err(err).Str("tool", name).Msg("tool failed")
		return errorPayload(err.Error())
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errorPayload("serialize result: " + err.Error())
	}
	return payload
}

// Names returns the registered tool names, for status output.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.registry))
	for name := range d.registry {
		names = append(names, name)
	}
	return names
}

func errorPayload(msg string) json.RawMessage {
	p, _ := json.Marshal(map[string]string{"error": msg})
	return p
}

func decodeArgs(raw json.RawMessage, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
