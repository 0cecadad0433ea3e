package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
)

func (o *Orchestrator) handleReset(ctx context.Context, t *turn) bool {
	o.deps.Store.ClearHistory(t.token)
	return o.send(ctx, t, msgReset)
}

func (o *Orchestrator) handleHistory(ctx context.Context, t *turn) bool {
	return o.send(ctx, t, fmt.Sprintf(msgHistoryCount, o.deps.Store.CountMessages(t.token)))
}

func (o *Orchestrator) handleWhoAmI(ctx context.Context, t *turn) bool {
	id := t.bot.Identity
	return o.send(ctx, t, fmt.Sprintf(msgWhoAmI, id.Name, id.ERPNextUser, id.ConfigDir))
}

func (o *Orchestrator) handleRemember(ctx context.Context, t *turn, fact string) bool {
	if o.deps.Store.AddKeyFact(t.token, fact) {
		return o.send(ctx, t, fmt.Sprintf(msgRemembered, fact))
	}
	return o.send(ctx, t, msgFactKnown)
}

func (o *Orchestrator) handleFacts(ctx context.Context, t *turn) bool {
	facts := o.deps.Store.KeyFacts(t.token)
	if len(facts) == 0 {
		return o.send(ctx, t, msgNoFacts)
	}

	var sb strings.Builder
	sb.WriteString(msgFactsHeader)
	for i, f := range facts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f)
	}
	sb.WriteString(msgFactsFooter)
	return o.send(ctx, t, sb.String())
}

func (o *Orchestrator) handleForget(ctx context.Context, t *turn, arg string) bool {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return o.send(ctx, t, usageForget)
	}
	removed, err := o.deps.Store.RemoveKeyFactByIndex(t.token, n)
	if errors.Is(err, conversation.ErrOutOfRange) {
		return o.send(ctx, t, msgForgetInvalid)
	}
	return o.send(ctx, t, fmt.Sprintf(msgForgotten, removed))
}

func (o *Orchestrator) handleBoards(ctx context.Context, t *turn) bool {
	boards, err := t.bot.Platform.ListBoards(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("Failed to list Deck boards")
	}
	if len(boards) == 0 {
		return o.send(ctx, t, msgNoBoards)
	}

	var sb strings.Builder
	sb.WriteString(msgBoardsHeader)
	for _, b := range boards {
		title := b.Title
		if title == "" {
			title = "Naamloos"
		}
		fmt.Fprintf(&sb, "- %s (ID: %d)\n", title, b.ID)
	}
	return o.send(ctx, t, sb.String())
}

func (o *Orchestrator) handleHelp(ctx context.Context, t *turn) bool {
	if b := o.taskBinding(ctx, t); b != nil {
		return o.send(ctx, t, fmt.Sprintf(helpTask, b.CardTitle))
	}
	return o.send(ctx, t, helpGeneral)
}
