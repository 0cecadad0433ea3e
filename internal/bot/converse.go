package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/activity"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/reasoning"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

// Deck comments are capped at this many characters.
const maxCardComment = 1000

// converse is the default turn: remember the message, ask the reasoning backend for a
// reply and post it. Audio attachments are transcribed first and stand in for the text.
func (o *Orchestrator) converse(ctx context.Context, t *turn) bool {
	if att, ok := activity.DetectAudio(t.event, t.msg, o.audioURLs(t)); ok {
		transcript, ok := o.autoTranscribe(ctx, t, att)
		if !ok {
			return false
		}
		t.text = transcriptPrefix + transcript
	}

	store := o.deps.Store
	store.AppendMessage(t.token, conversation.RoleUser, t.actor, t.text)

	binding := o.taskBinding(ctx, t)
	o.mirrorToCard(ctx, t, binding, fmt.Sprintf("**%s:** ", t.actor), t.text)

	req := reasoning.Request{
		Prompt:   conversation.BuildPrompt(store.RenderContext(t.token), t.actor, t.text),
		Identity: t.bot.reasoningIdentity(),
	}
	if binding != nil {
		req.Task = &reasoning.TaskContext{Title: binding.CardTitle, Description: binding.CardDescription}
		o.progress(ctx, t, fmt.Sprintf(msgWorkingOnTask, binding.CardTitle))
	} else {
		o.progress(ctx, t, o.thinkingMessage())
	}

	rctx, cancel := context.WithTimeout(ctx, o.opts.ReasoningTimeout)
	defer cancel()
	reply, err := o.deps.Reasoner.GenerateReply(rctx, req)
	if err != nil {
		return o.replyFailed(ctx, t, err)
	}

	reply = truncateRunes(reply, o.opts.MaxReplyLength, truncationMarker)
	store.AppendMessage(t.token, conversation.RoleAssistant, o.opts.AssistantName, reply)
	o.mirrorToCard(ctx, t, binding, fmt.Sprintf("**%s AI:** ", o.opts.AssistantName), reply)

	return o.sendReply(ctx, t, reply, t.replyTo)
}

func (o *Orchestrator) thinkingMessage() string {
	if o.opts.Organization == "" {
		return "AI is aan het nadenken..."
	}
	return fmt.Sprintf(msgThinking, o.opts.Organization)
}

// replyFailed tells the user the backend gave no answer and records the failed call in
// the history so the next turn's context shows it.
func (o *Orchestrator) replyFailed(ctx context.Context, t *turn, err error) bool {
	var reply string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reply = fmt.Sprintf(msgReplyTimeout, int(o.opts.ReasoningTimeout.Minutes()))
	case errors.Is(err, reasoning.ErrEmptyReply):
		reply = msgNoReply
	default:
		reply = fmt.Sprintf(msgReplyError, err)
	}
	t.log.Error().Err(err).Str("backend", o.deps.Reasoner.Name()).Msg("Reasoning backend failed")

	o.deps.Store.Append(t.token, conversation.Message{
		Role:    conversation.RoleAssistant,
		Name:    o.opts.AssistantName,
		Content: fmt.Sprintf(noteCallFailed, err),
		Kind:    conversation.KindCallFailed,
	})
	o.send(ctx, t, reply)
	return false
}

func (o *Orchestrator) autoTranscribe(ctx context.Context, t *turn, att *activity.Attachment) (string, bool) {
	o.progress(ctx, t, fmt.Sprintf(msgAudioDetected, attachmentName(att)))

	text, downloaded, err := o.fetchAudio(ctx, t, att)
	switch {
	case !downloaded:
		o.send(ctx, t, msgAutoNoDownload)
		return "", false
	case errors.Is(err, context.DeadlineExceeded):
		o.send(ctx, t, o.transcribeTooLong())
		return "", false
	case err != nil:
		o.send(ctx, t, msgAutoNoText)
		return "", false
	}

	o.progress(ctx, t, fmt.Sprintf(msgAutoTranscript, text))
	return text, true
}

// mirrorToCard copies a message onto the bound Deck card. Failures only get logged.
func (o *Orchestrator) mirrorToCard(ctx context.Context, t *turn, b *taskbinding.TaskBinding, prefix, content string) {
	if b == nil || b.BoardID <= 0 || b.CardID <= 0 {
		return
	}
	limit := max(maxCardComment-len([]rune(prefix))-3, 0)
	comment := prefix + truncateRunes(content, limit, "...")

	if err := t.bot.Platform.CommentOnCard(ctx, b.CardID, comment); err != nil {
		t.log.Warn().Err(err).Int("card_id", b.CardID).Msg("Failed to mirror message to card")
	}
}
