// Package bot turns authenticated Talk events into replies: command dispatch, task
// completion and the conversational turn through the reasoning backend.
package bot

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/activity"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/logging"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/reasoning"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

// Turn outcomes reported to the webhook caller.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Registry    *Registry
	Store       *conversation.Store
	Bindings    Bindings
	Reasoner    reasoning.Backend
	Transcriber Transcriber
	Extractor   Extractor
	Closer      Closer
}

// Options tune the orchestrator.
type Options struct {
	Organization         string
	AssistantName        string
	ReasoningTimeout     time.Duration
	TranscriptionTimeout time.Duration
	CloseDelay           time.Duration
	// TempDir receives downloaded audio and documents.
	TempDir string
	// MaxReplyLength caps replies from the reasoning backend.
	MaxReplyLength int
	Now            func() time.Time
}

func (o *Options) setDefaults() {
	if o.AssistantName == "" {
		o.AssistantName = "Claude"
	}
	if o.ReasoningTimeout <= 0 {
		o.ReasoningTimeout = 10 * time.Minute
	}
	if o.TranscriptionTimeout <= 0 {
		o.TranscriptionTimeout = 5 * time.Minute
	}
	if o.CloseDelay <= 0 {
		o.CloseDelay = 3 * time.Second
	}
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.MaxReplyLength <= 0 {
		o.MaxReplyLength = 30000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Orchestrator handles one authenticated event at a time per conversation.
type Orchestrator struct {
	deps   Deps
	opts   Options
	locks  *keyedMutex
	routes []route
}

// NewOrchestrator wires the route table.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	opts.setDefaults()
	o := &Orchestrator{deps: deps, opts: opts, locks: newKeyedMutex()}
	o.routes = o.buildRoutes()
	return o
}

// Registry returns the configured bots.
func (o *Orchestrator) Registry() *Registry { return o.deps.Registry }

// Stats reports conversation memory totals.
func (o *Orchestrator) Stats() conversation.Stats { return o.deps.Store.Stats() }

// Result is the outcome of one handled event.
type Result struct {
	Route  string
	Status string
}

// turn is the state of one event while it is being handled.
type turn struct {
	bot     *Bot
	event   *activity.Event
	msg     activity.Message
	token   string
	actor   string
	text    string // trimmed, original casing
	lower   string // lower-cased for matching
	replyTo int
	log     *zerolog.Logger

	binding       *taskbinding.TaskBinding
	bindingLoaded bool
}

// Handle runs the first matching route for ev. The conversation is locked for the whole
// turn so events of one conversation never interleave.
func (o *Orchestrator) Handle(ctx context.Context, b *Bot, ev *activity.Event) Result {
	msg := ev.Content()
	t := &turn{
		bot:   b,
		event: ev,
		msg:   msg,
		token: ev.Token(),
		actor: ev.ActorName(),
		text:  strings.TrimSpace(msg.Text),
		log:   logging.From(ctx),
	}
	t.lower = strings.ToLower(t.text)
	if id, ok := ev.ReplyTo(); ok {
		t.replyTo = id
	}

	unlock := o.locks.Lock(t.token)
	defer unlock()

	r := o.selectRoute(ctx, t)
	if r.name != routeConfirmPrompt && r.name != routeAffirmation {
		o.deps.Store.ClearPendingConfirmation(t.token)
	}

	t.log.Info().
		Str("route", r.name).
		Str("actor", t.actor).
		Str("token", t.token).
		Msg("Dispatching turn")
	metrics.RoutesTotal.WithLabelValues(r.name).Inc()

	status := StatusFailed
	if r.handle(ctx, t) {
		status = StatusOK
	}
	return Result{Route: r.name, Status: status}
}

func (o *Orchestrator) selectRoute(ctx context.Context, t *turn) route {
	for _, r := range o.routes {
		if r.match(ctx, t) {
			return r
		}
	}
	// the last route always matches
	return o.routes[len(o.routes)-1]
}

// taskBinding loads the conversation's binding once per turn. Lookup failures other than
// a missing binding are logged and treated as no binding.
func (o *Orchestrator) taskBinding(ctx context.Context, t *turn) *taskbinding.TaskBinding {
	if t.bindingLoaded {
		return t.binding
	}
	t.bindingLoaded = true
	if o.deps.Bindings == nil {
		return nil
	}
	b, err := o.deps.Bindings.Get(ctx, t.token)
	if err != nil {
		if !errors.Is(err, taskbinding.ErrNotFound) {
			t.log.Error().Err(err).Str("token", t.token).Msg("Task binding lookup failed")
		}
		return nil
	}
	t.binding = b
	return b
}

// send posts text into the conversation and reports success.
func (o *Orchestrator) send(ctx context.Context, t *turn, text string) bool {
	return o.sendReply(ctx, t, text, 0)
}

func (o *Orchestrator) sendReply(ctx context.Context, t *turn, text string, replyTo int) bool {
	if err := t.bot.Platform.SendMessage(ctx, t.token, text, replyTo); err != nil {
		t.log.Error().Err(err).Str("token", t.token).Msg("Failed to send message")
		return false
	}
	return true
}

// progress posts an interim message whose delivery does not decide the outcome.
func (o *Orchestrator) progress(ctx context.Context, t *turn, text string) {
	_ = o.send(ctx, t, text)
}

func truncateRunes(s string, limit int, marker string) string {
	runes := []rune(s)
	limit = max(limit, 0)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + marker
}
