package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/activity"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/config"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/media"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/nextcloud"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/reasoning"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

type sentMessage struct {
	Token   string
	Text    string
	ReplyTo int
}

type cardMove struct {
	BoardID, FromStack, CardID, ToStack int
}

type fakePlatform struct {
	mu sync.Mutex

	sent      []sentMessage
	comments  []string
	shared    []string
	uploads   []string
	moves     []cardMove
	cards     []nextcloud.Card
	deleted   []string
	downloads []string

	boards      []nextcloud.Board
	stacks      map[int][]nextcloud.Stack
	files       []nextcloud.File
	existing    map[string]bool
	shareErr    error
	sendErr     error
	downloadErr error
}

var _ Platform = (*fakePlatform)(nil)

func (p *fakePlatform) SendMessage(_ context.Context, token, message string, replyTo int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, sentMessage{Token: token, Text: message, ReplyTo: replyTo})
	return nil
}

func (p *fakePlatform) DeleteConversation(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, token)
	return nil
}

func (p *fakePlatform) ListBoards(context.Context) ([]nextcloud.Board, error) {
	return p.boards, nil
}

func (p *fakePlatform) ListStacks(_ context.Context, boardID int) ([]nextcloud.Stack, error) {
	stacks, ok := p.stacks[boardID]
	if !ok {
		return nil, errors.New("board not found")
	}
	return stacks, nil
}

func (p *fakePlatform) CreateCard(_ context.Context, boardID, stackID int, title, description string) (*nextcloud.Card, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := nextcloud.Card{ID: 100 + len(p.cards), Title: title, Description: description, StackID: stackID}
	p.cards = append(p.cards, c)
	return &c, nil
}

func (p *fakePlatform) MoveCardToStack(_ context.Context, boardID, fromStackID, cardID, toStackID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves = append(p.moves, cardMove{boardID, fromStackID, cardID, toStackID})
	return nil
}

func (p *fakePlatform) CommentOnCard(_ context.Context, cardID int, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.comments = append(p.comments, fmt.Sprintf("%d:%s", cardID, message))
	return nil
}

func (p *fakePlatform) CardURL(boardID, cardID int) string {
	return fmt.Sprintf("https://cloud.test/apps/deck/board/%d/card/%d", boardID, cardID)
}

func (p *fakePlatform) ShareFile(_ context.Context, filePath, token, caption string) (*nextcloud.ShareResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shareErr != nil {
		return nil, p.shareErr
	}
	p.shared = append(p.shared, filePath)
	return &nextcloud.ShareResult{Path: filePath}, nil
}

func (p *fakePlatform) UploadFile(_ context.Context, localPath, remotePath string) (*nextcloud.Upload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := filepath.Base(localPath)
	if remotePath == "" {
		remotePath = nextcloud.DefaultUploadDir + "/" + name
	}
	p.uploads = append(p.uploads, remotePath)
	return &nextcloud.Upload{RemotePath: remotePath, Name: name}, nil
}

func (p *fakePlatform) FileExists(_ context.Context, filePath string) (bool, error) {
	return p.existing[filePath], nil
}

func (p *fakePlatform) SearchFiles(_ context.Context, query string, limit int) ([]nextcloud.File, error) {
	if len(p.files) > limit {
		return p.files[:limit], nil
	}
	return p.files, nil
}

func (p *fakePlatform) DownloadFile(_ context.Context, fileURL, dir string) (string, error) {
	if p.downloadErr != nil {
		return "", p.downloadErr
	}
	f, err := os.CreateTemp(dir, "download-*.bin")
	if err != nil {
		return "", err
	}
	f.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloads = append(p.downloads, f.Name())
	return f.Name(), nil
}

func (p *fakePlatform) FileURL(path string) string { return "https://cloud.test/dav" + path }
func (p *fakePlatform) BaseURL() string { return "https://cloud.test" }
func (p *fakePlatform) User() string { return "ed" }

func (p *fakePlatform) messages() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}

func (p *fakePlatform) lastText() string {
	msgs := p.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

type fakeBindings struct {
	mu        sync.Mutex
	bindings  map[string]*taskbinding.TaskBinding
	completed map[string]time.Time
	markErr   error
}

func (f *fakeBindings) Get(_ context.Context, token string) (*taskbinding.TaskBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bindings[token]
	if !ok {
		return nil, taskbinding.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBindings) MarkCompleted(_ context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	b, ok := f.bindings[token]
	if !ok {
		return taskbinding.ErrNotFound
	}
	b.Status = taskbinding.StatusCompleted
	b.CompletedAt = &at
	f.completed[token] = at
	return nil
}

type fakeReasoner struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	requests []reasoning.Request
}

func (r *fakeReasoner) Name() string { return "fake" }

func (r *fakeReasoner) GenerateReply(ctx context.Context, req reasoning.Request) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return "", fmt.Errorf("reasoning CLI interrupted: %w", ctx.Err())
	}
	return r.reply, r.err
}

func (r *fakeReasoner) calls() []reasoning.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reasoning.Request(nil), r.requests...)
}

type fakeTranscriber struct {
	text  string
	err   error
	paths []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.paths = append(f.paths, audioPath)
	return f.text, f.err
}

type fakeExtractor struct {
	preview *media.Preview
	err     error
	paths   []string
}

func (f *fakeExtractor) ExtractText(_ context.Context, docPath string) (*media.Preview, error) {
	f.paths = append(f.paths, docPath)
	return f.preview, f.err
}

type closeCall struct {
	Bot, Token string
	Delay      time.Duration
}

type fakeCloser struct {
	calls []closeCall
}

func (f *fakeCloser) ScheduleClose(_ context.Context, bot, token string, delay time.Duration) error {
	f.calls = append(f.calls, closeCall{bot, token, delay})
	return nil
}

// harness is an orchestrator wired to fakes, serving one bot called "ed".
type harness struct {
	o           *Orchestrator
	bot         *Bot
	platform    *fakePlatform
	bindings    *fakeBindings
	reasoner    *fakeReasoner
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	closer      *fakeCloser
	store       *conversation.Store
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	h := &harness{
		platform: &fakePlatform{
			boards: []nextcloud.Board{{ID: 1, Title: "Werk"}},
			stacks: map[int][]nextcloud.Stack{
				1: {{ID: 10, Title: "Klaar"}, {ID: 11, Title: "To Do"}, {ID: 12, Title: "Bezig"}},
			},
			existing: map[string]bool{},
		},
		bindings: &fakeBindings{
			bindings:  map[string]*taskbinding.TaskBinding{},
			completed: map[string]time.Time{},
		},
		reasoner:    &fakeReasoner{reply: "Hallo terug"},
		transcriber: &fakeTranscriber{text: "hallo vanuit audio"},
		extractor:   &fakeExtractor{},
		closer:      &fakeCloser{},
		store:       conversation.New(conversation.Options{}),
	}
	h.bot = &Bot{
		Identity: config.BotIdentity{Name: "ed", ERPNextUser: "ed@example.com", ConfigDir: "/srv/ed"},
		Platform: h.platform,
	}
	registry, err := NewRegistry([]*Bot{h.bot}, "ed")
	require.NoError(t, err)

	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	}
	h.o = NewOrchestrator(Deps{
		Registry:    registry,
		Store:       h.store,
		Bindings:    h.bindings,
		Reasoner:    h.reasoner,
		Transcriber: h.transcriber,
		Extractor:   h.extractor,
		Closer:      h.closer,
	}, opts)
	return h
}

// bind attaches an active task to token.
func (h *harness) bind(token string) {
	h.bindings.bindings[token] = &taskbinding.TaskBinding{
		Token:           token,
		BoardID:         1,
		StackID:         11,
		CardID:          7,
		CardTitle:       "Offerte Jansen",
		CardDescription: "Offerte voor de verbouwing",
		Status:          taskbinding.StatusActive,
		CreatedAt:       time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC),
	}
}

func (h *harness) say(token, text string) Result {
	return h.o.Handle(context.Background(), h.bot, talkEvent(token, "Alice", text))
}

// talkEvent builds a Talk chat message event as the webhook delivers it.
func talkEvent(token, actor, text string) *activity.Event {
	content, _ := json.Marshal(map[string]any{"message": text, "parameters": map[string]any{}})
	return &activity.Event{
		Type:   activity.TypeCreate,
		Actor:  activity.Actor{Type: "users", ID: "users/alice", Name: actor},
		Object: activity.Object{ID: "42", Name: "message", Content: string(content), MediaType: "text/markdown"},
		Target: activity.Target{ID: activity.Flexible(token), Name: "Chat"},
	}
}
