package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/nextcloud"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

var (
	todoStackWords = []string{"to do", "todo", "backlog", "nieuw"}
	doneStackWords = []string{"klaar", "done", "afgerond"}
)

func containsAny(s string, words []string) bool {
	s = strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// createdTask describes a card made by /task.
type createdTask struct {
	Title string
	Board string
	Stack string
	URL   string
}

func (o *Orchestrator) handleTask(ctx context.Context, t *turn, arg string) bool {
	o.progress(ctx, t, fmt.Sprintf(msgTaskCreating, arg))

	title, description := arg, ""
	if before, after, ok := strings.Cut(arg, "|"); ok {
		title, description = strings.TrimSpace(before), strings.TrimSpace(after)
	}

	created, err := o.createTask(ctx, t.bot.Platform, title, description)
	if err != nil {
		t.log.Error().Err(err).Str("title", title).Msg("Failed to create task")
		return o.send(ctx, t, fmt.Sprintf(msgTaskFailed, err))
	}
	return o.send(ctx, t, fmt.Sprintf(msgTaskCreated, created.Title, created.Board, created.Stack, created.URL))
}

// createTask puts a card on the first board, in the first stack that looks like a to-do
// column or else the first stack.
func (o *Orchestrator) createTask(ctx context.Context, deck TaskTracker, title, description string) (*createdTask, error) {
	boards, err := deck.ListBoards(ctx)
	if err != nil {
		return nil, fmt.Errorf("Geen Deck boards gevonden: %w", err)
	}
	if len(boards) == 0 {
		return nil, errors.New("Geen Deck boards gevonden")
	}
	board := boards[0]
	boardTitle := board.Title
	if boardTitle == "" {
		boardTitle = "Unknown"
	}

	stacks, err := deck.ListStacks(ctx, board.ID)
	if err != nil || len(stacks) == 0 {
		return nil, fmt.Errorf("Geen kolommen gevonden in board %q", boardTitle)
	}
	stack := stacks[0]
	for _, s := range stacks {
		if containsAny(s.Title, todoStackWords) {
			stack = s
			break
		}
	}

	card, err := deck.CreateCard(ctx, board.ID, stack.ID, title, description)
	if err != nil {
		return nil, fmt.Errorf("Kon kaart niet aanmaken: %w", err)
	}

	return &createdTask{
		Title: title,
		Board: boardTitle,
		Stack: stack.Title,
		URL:   deck.CardURL(board.ID, card.ID),
	}, nil
}

func (o *Orchestrator) handleDone(ctx context.Context, t *turn) bool {
	b := o.taskBinding(ctx, t)
	if b == nil {
		return o.send(ctx, t, msgNotATask)
	}
	if !b.Active() {
		completed := "onbekend"
		if b.CompletedAt != nil {
			completed = formatStamp(*b.CompletedAt)
		}
		return o.send(ctx, t, fmt.Sprintf(msgAlreadyCompleted, b.CardTitle, completed))
	}
	return o.completeTask(ctx, t, b)
}

func (o *Orchestrator) handleStatus(ctx context.Context, t *turn) bool {
	b := o.taskBinding(ctx, t)
	if b == nil {
		return o.send(ctx, t, msgNotATask)
	}
	completed := ""
	if b.CompletedAt != nil {
		completed = fmt.Sprintf("**Afgerond:** %s\n", formatStamp(*b.CompletedAt))
	}
	return o.send(ctx, t, fmt.Sprintf(statusTemplate, b.CardTitle, b.Status, b.CardID, formatStamp(b.CreatedAt), completed))
}

func formatStamp(ts time.Time) string {
	if ts.IsZero() {
		return "onbekend"
	}
	return ts.Format("2006-01-02 15:04:05")
}

// askCompletionConfirmation asks whether the task may be closed and records that an answer
// is pending.
func (o *Orchestrator) askCompletionConfirmation(ctx context.Context, t *turn) bool {
	b := t.binding
	ok := o.send(ctx, t, fmt.Sprintf(msgConfirmComplete, b.CardTitle))

	o.deps.Store.AppendMessage(t.token, conversation.RoleUser, t.actor, t.text)
	o.deps.Store.Append(t.token, conversation.Message{
		Role:    conversation.RoleAssistant,
		Name:    o.opts.AssistantName,
		Content: noteConfirmRequest,
		Kind:    conversation.KindConfirmationRequest,
	})
	o.deps.Store.SetPendingConfirmation(t.token)
	return ok
}

// completeTask marks the binding completed, moves the card to the done column, confirms
// in the conversation and schedules the conversation for deletion. Only the first step is
// required to succeed.
func (o *Orchestrator) completeTask(ctx context.Context, t *turn, b *taskbinding.TaskBinding) bool {
	o.deps.Store.ClearPendingConfirmation(t.token)

	if err := o.deps.Bindings.MarkCompleted(ctx, t.token, o.opts.Now()); err != nil {
		t.log.Error().Err(err).Str("token", t.token).Msg("Failed to mark task completed")
		metrics.TaskCompletionsTotal.WithLabelValues("failed").Inc()
		o.send(ctx, t, msgCompleteFailed)
		return false
	}
	metrics.TaskCompletionsTotal.WithLabelValues("completed").Inc()

	o.moveCardToDone(ctx, t, b)

	delay := o.opts.CloseDelay
	seconds := int(delay.Round(time.Second) / time.Second)
	ok := o.send(ctx, t, fmt.Sprintf(msgTaskCompleted, b.CardTitle, seconds))

	if o.deps.Closer != nil {
		if err := o.deps.Closer.ScheduleClose(ctx, t.bot.Name(), t.token, delay); err != nil {
			t.log.Error().Err(err).Str("token", t.token).Msg("Failed to schedule conversation close")
		}
	}
	return ok
}

func (o *Orchestrator) moveCardToDone(ctx context.Context, t *turn, b *taskbinding.TaskBinding) {
	deck := t.bot.Platform
	stacks, err := deck.ListStacks(ctx, b.BoardID)
	if err != nil {
		t.log.Warn().Err(err).Int("board_id", b.BoardID).Msg("Could not list stacks to move card")
		return
	}

	var done *nextcloud.Stack
	for i := range stacks {
		if containsAny(stacks[i].Title, doneStackWords) {
			done = &stacks[i]
			break
		}
	}
	if done == nil {
		t.log.Warn().Int("board_id", b.BoardID).Msg("No done stack found; card stays in place")
		return
	}
	if done.ID == b.StackID {
		return
	}

	if err := deck.MoveCardToStack(ctx, b.BoardID, b.StackID, b.CardID, done.ID); err != nil {
		t.log.Warn().Err(err).Int("card_id", b.CardID).Msg("Failed to move card to done stack")
		return
	}
	t.log.Info().Int("card_id", b.CardID).Str("stack", done.Title).Msg("Card moved to done stack")
}
