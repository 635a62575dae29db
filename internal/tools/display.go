package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/pulsestage/internal/domain"
	"github.com/soyeahso/pulsestage/internal/services"
)

// maxHighlights caps the bulleted summary form.
const maxHighlights = 6

// backgroundTimeout bounds the detached search/image calls.
const backgroundTimeout = 2 * time.Minute

type summaryArgs struct {
	Title      string   `json:"title"`
	Highlights []string `json:"highlights"`
	Content    string   `json:"content"`
}

// showSummary forwards a presenter overlay verbatim: either a highlights
// list or free-form content, never both.
func (d *Dispatcher) showSummary(ctx context.Context, raw json.RawMessage) (any, error) {
	var args summaryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Title) == "" {
		return nil, errors.New("a summary needs a title")
	}
	hasHighlights := len(args.Highlights) > 0
	hasContent := strings.TrimSpace(args.Content) != ""
	if hasHighlights == hasContent {
		return nil, errors.New("provide either highlights or content, not both")
	}
	if len(args.Highlights) > maxHighlights {
		args.Highlights = args.Highlights[:maxHighlights]
	}

	d.bus.Emit(domain.Event{Type: domain.EventSummary, Summary: &domain.Summary{
		Title:      args.Title,
		Highlights: args.Highlights,
		Content:    args.Content,
	}})
	return map[string]any{"success": true}, nil
}

type imageArgs struct {
	Prompt string `json:"prompt"`
}

// generateImage starts image generation in the background and
// acknowledges immediately; completion reaches the agent as a silent
// notification it can bring up when the host asks.
func (d *Dispatcher) generateImage(ctx context.Context, raw json.RawMessage) (any, error) {
	var args imageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(args.Prompt)
	if prompt == "" {
		return nil, errors.New("an image prompt is required")
	}
	if d.images == nil {
		return nil, errors.New("image generation is not configured")
	}

	d.bus.Emit(domain.Event{Type: domain.EventImageGenerating, Image: &domain.Image{Prompt: prompt}})

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		url, err := d.images.Generate(bg, prompt)
		if err != nil {
			d.log.Warn().Err(err).Msg("image generation failed")
			d.bus.Emit(domain.Event{Type: domain.EventImageError, Image: &domain.Image{Prompt: prompt}, Message: err.Error()})
			d.notify(fmt.Sprintf("Image generation failed: %v. Let the host know if they ask.", err))
			return
		}

		img := domain.Image{Prompt: prompt, URL: url}
		d.mu.Lock()
		d.lastImage = &img
		d.mu.Unlock()
		d.bus.Emit(domain.Event{Type: domain.EventImageReady, Image: &img})
		d.notify(fmt.Sprintf("The image for %q is ready. Use show_generated_image to put it on screen when the host wants it.", prompt))
	}()

	return map[string]any{
		"success": true,
		"status":  "generating",
		"note":    "generation runs in the background; you will be notified when it is ready",
	}, nil
}

// showGeneratedImage puts the most recently generated image on screen.
func (d *Dispatcher) showGeneratedImage(ctx context.Context, _ json.RawMessage) (any, error) {
	d.mu.Lock()
	img := d.lastImage
	d.mu.Unlock()
	if img == nil || img.URL == "" {
		return nil, errors.New("no generated image available: call generate_image first")
	}

	d.bus.Emit(domain.Event{Type: domain.EventImageShown, Image: img})
	return map[string]any{"success": true, "url": img.URL}, nil
}

type searchArgs struct {
	Query string `json:"query"`
}

// webSearch runs the search detached and hands the condensed findings
// back through a notification that also requests a turn, so the agent
// relays the answer as soon as it is free to speak.
func (d *Dispatcher) webSearch(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, errors.New("a search query is required")
	}
	if d.search == nil {
		return nil, errors.New("web search is not configured")
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		found, err := d.search.Search(bg, query)
		if err != nil {
			d.log.Warn().Err(err).Str("query", query).Msg("web search failed")
			d.notify(fmt.Sprintf("Web search for %q failed: %v. Tell the host if they ask.", query, err))
			return
		}
		condensed := services.Condense(query, found)
		if err := d.notifier.SendNotificationAndRespond(bg, condensed); err != nil {
			d.log.Warn().Err(err).Str("query", query).Msg("search findings not delivered")
		}
	}()

	return map[string]any{
		"success": true,
		"status":  "searching",
		"note":    "results arrive as a notification shortly",
	}, nil
}

// notify posts a silent notification, logging delivery failures. There is
// no retry; a dropped notification just never comes up in conversation.
func (d *Dispatcher) notify(text string) {
	if err := d.notifier.SendSilentNotification(text); err != nil {
		d.log.Warn().Err(err).Msg("notification not delivered")
	}
}
