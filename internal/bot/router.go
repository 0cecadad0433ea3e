package bot

import (
	"context"
	"strings"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/intent"
)

// Route names, also used as metric labels.
const (
	routeCompleteIntent = "complete_intent"
	routeConfirmPrompt  = "confirm_prompt"
	routeAffirmation    = "affirmation"
	routeConverse       = "converse"
)

// route is one entry of the dispatch table. The first route whose match returns true
// handles the turn; handle reports whether the reply was delivered.
type route struct {
	name   string
	match  func(ctx context.Context, t *turn) bool
	handle func(ctx context.Context, t *turn) bool
}

// buildRoutes returns the dispatch table in precedence order: exact commands, prefix
// commands, completion intent on an active task, a confirmed completion, and finally the
// conversational turn.
func (o *Orchestrator) buildRoutes() []route {
	routes := []route{
		exact("/reset", o.handleReset),
		exact("/history", o.handleHistory),
		exact("/whoami", o.handleWhoAmI),
		exact("/facts", o.handleFacts),
		exact("/boards", o.handleBoards),
		exact("/help", o.handleHelp),
		exact("/done", o.handleDone),
		exact("/status", o.handleStatus),
		exact("/transcribe", o.handleTranscribe),
	}

	prefixed := []struct {
		cmd    string
		usage  string
		handle func(ctx context.Context, t *turn, arg string) bool
	}{
		{"/remember", usageRemember, o.handleRemember},
		{"/forget", usageForget, o.handleForget},
		{"/task", usageTask, o.handleTask},
		{"/share", usageShare, o.handleShare},
		{"/upload", usageUpload, o.handleUpload},
		{"/zoek", usageZoek, o.handleSearch},
		{"/vind", usageVind, o.handleFind},
		{"/preview", usagePreview, o.handlePreview},
	}
	for _, p := range prefixed {
		routes = append(routes, o.prefix(p.cmd, p.usage, p.handle))
	}

	return append(routes,
		route{
			name: routeCompleteIntent,
			match: func(ctx context.Context, t *turn) bool {
				b := o.taskBinding(ctx, t)
				return b != nil && b.Active() && intent.Classify(t.text) == intent.Complete
			},
			handle: func(ctx context.Context, t *turn) bool {
				return o.completeTask(ctx, t, t.binding)
			},
		},
		route{
			name: routeConfirmPrompt,
			match: func(ctx context.Context, t *turn) bool {
				b := o.taskBinding(ctx, t)
				return b != nil && b.Active() && intent.Classify(t.text) == intent.Confirm
			},
			handle: o.askCompletionConfirmation,
		},
		route{
			name: routeAffirmation,
			match: func(ctx context.Context, t *turn) bool {
				return intent.IsAffirmation(t.text) &&
					o.deps.Store.PendingConfirmation(t.token) &&
					o.taskBinding(ctx, t) != nil
			},
			handle: func(ctx context.Context, t *turn) bool {
				return o.completeTask(ctx, t, t.binding)
			},
		},
		route{
			name:   routeConverse,
			match:  func(context.Context, *turn) bool { return true },
			handle: o.converse,
		},
	)
}

// exact matches a zero-argument command, case-insensitively.
func exact(cmd string, handle func(ctx context.Context, t *turn) bool) route {
	return route{
		name:   strings.TrimPrefix(cmd, "/"),
		match:  func(_ context.Context, t *turn) bool { return t.lower == cmd },
		handle: handle,
	}
}

// prefix matches "cmd <argument>". The bare command, or one with a blank argument, gets
// the usage hint.
func (o *Orchestrator) prefix(cmd, usage string, handle func(ctx context.Context, t *turn, arg string) bool) route {
	return route{
		name: strings.TrimPrefix(cmd, "/"),
		match: func(_ context.Context, t *turn) bool {
			return t.lower == cmd || strings.HasPrefix(t.lower, cmd+" ")
		},
		handle: func(ctx context.Context, t *turn) bool {
			arg := strings.TrimSpace(t.text[len(cmd):])
			if arg == "" {
				return o.send(ctx, t, usage)
			}
			return handle(ctx, t, arg)
		},
	}
}
