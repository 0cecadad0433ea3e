package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/bot"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/config"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/nextcloud"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/reasoning"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/webhookutils"
)

const testSecret = "s3cret-shared-with-talk"

// talkStub is a bot.Platform that records sent messages and fails everything else.
type talkStub struct {
	mu   sync.Mutex
	sent []string
}

func (p *talkStub) SendMessage(_ context.Context, token, message string, replyTo int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, message)
	return nil
}

func (p *talkStub) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func (p *talkStub) DeleteConversation(context.Context, string) error { return nil }
func (p *talkStub) ListBoards(context.Context) ([]nextcloud.Board, error) {
	return nil, nil
}
func (p *talkStub) ListStacks(context.Context, int) ([]nextcloud.Stack, error) {
	return nil, nil
}
func (p *talkStub) CreateCard(context.Context, int, int, string, string) (*nextcloud.Card, error) {
	return nil, nextcloud.ErrUnexpectedStatus
}
func (p *talkStub) MoveCardToStack(context.Context, int, int, int, int) error { return nil }
func (p *talkStub) CommentOnCard(context.Context, int, string) error { return nil }
func (p *talkStub) CardURL(int, int) string { return "" }
func (p *talkStub) ShareFile(context.Context, string, string, string) (*nextcloud.ShareResult, error) {
	return nil, nextcloud.ErrUnexpectedStatus
}
func (p *talkStub) UploadFile(context.Context, string, string) (*nextcloud.Upload, error) {
	return nil, nextcloud.ErrUnexpectedStatus
}
func (p *talkStub) FileExists(context.Context, string) (bool, error) { return false, nil }
func (p *talkStub) SearchFiles(context.Context, string, int) ([]nextcloud.File, error) {
	return nil, nil
}
func (p *talkStub) DownloadFile(context.Context, string, string) (string, error) {
	return "", nextcloud.ErrUnexpectedStatus
}
func (p *talkStub) FileURL(string) string { return "" }
func (p *talkStub) BaseURL() string { return "https://cloud.test" }
func (p *talkStub) User() string { return "ed" }

type echoReasoner struct{}

func (echoReasoner) Name() string { return "echo" }

func (echoReasoner) GenerateReply(_ context.Context, req reasoning.Request) (string, error) {
	return "antwoord", nil
}

type testEnv struct {
	server *Server
	ed     *talkStub
	anna   *talkStub
	store  *conversation.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{ed: &talkStub{}, anna: &talkStub{}, store: conversation.New(conversation.Options{})}
	registry, err := bot.NewRegistry([]*bot.Bot{
		{Identity: config.BotIdentity{Name: "ed", Secret: testSecret, ERPNextUser: "ed@example.com"}, Platform: env.ed},
		{Identity: config.BotIdentity{Name: "anna", Secret: "other-secret", ERPNextUser: "anna@example.com"}, Platform: env.anna},
	}, "ed")
	require.NoError(t, err)

	o := bot.NewOrchestrator(bot.Deps{
		Registry: registry,
		Store:    env.store,
		Reasoner: echoReasoner{},
	}, bot.Options{TempDir: t.TempDir()})
	env.server = NewServer(o, config.ServerConfig{Port: 8085, ShutdownTimeout: time.Second})
	return env
}

func talkBody(t *testing.T, eventType, actorType, token, message string) []byte {
	t.Helper()
	content, err := json.Marshal(map[string]any{"message": message, "parameters": map[string]any{}})
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"type":   eventType,
		"actor":  map[string]any{"type": actorType, "id": "users/alice", "name": "Alice"},
		"object": map[string]any{"id": 17, "name": "message", "content": string(content), "mediaType": "text/markdown"},
		"target": map[string]any{"id": token, "name": "Chat"},
	})
	require.NoError(t, err)
	return body
}

func (env *testEnv) post(path string, body []byte, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		nonce := "0123456789abcdef"
		req.Header.Set(webhookutils.HeaderRandom, nonce)
		req.Header.Set(webhookutils.HeaderSignature, webhookutils.Sign(secret, nonce, string(body)))
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func TestWebhookHandlesSignedMessage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post("/webhook/ed", talkBody(t, "Create", "users", "tok1", "Hoi"), testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeStatus(t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, []string{"AI is aan het nadenken...", "antwoord"}, env.ed.messages())
	assert.Empty(t, env.anna.messages())
	assert.Equal(t, 2, env.store.CountMessages("tok1"))
}

func TestWebhookDefaultBot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post("/webhook", talkBody(t, "Create", "users", "tok1", "/history"), testSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Dit gesprek bevat 0 berichten in de geschiedenis."}, env.ed.messages())
}

func TestWebhookRejections(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     []byte
		secret   string
		wantCode int
	}{
		{
			name:     "unknown bot is rejected before verification",
			path:     "/webhook/piet",
			body:     []byte("not even json"),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "missing signature",
			path:     "/webhook/ed",
			body:     talkBody(t, "Create", "users", "tok1", "Hoi"),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "signed with another bot's secret",
			path:     "/webhook/ed",
			body:     talkBody(t, "Create", "users", "tok1", "Hoi"),
			secret:   "other-secret",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid signature wins over malformed body",
			path:     "/webhook/ed",
			body:     []byte("{broken"),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "malformed body",
			path:     "/webhook/ed",
			body:     []byte("{broken"),
			secret:   testSecret,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.post(tt.path, tt.body, tt.secret)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Empty(t, env.ed.messages())
			assert.Zero(t, env.store.Stats().TotalMessages)
		})
	}
}

func TestWebhookIgnoredEvents(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) []byte
	}{
		{"own message", func(t *testing.T) []byte { return talkBody(t, "Create", "Application", "tok1", "Hoi") }},
		{"unsupported type", func(t *testing.T) []byte { return talkBody(t, "Like", "users", "tok1", "Hoi") }},
		{"missing token", func(t *testing.T) []byte { return talkBody(t, "Create", "users", "", "Hoi") }},
		{"missing content", func(t *testing.T) []byte {
			return []byte(`{"type":"Create","actor":{"type":"users","name":"Alice"},"object":{"id":1},"target":{"id":"tok1"}}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.post("/webhook/ed", tt.body(t), testSecret)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, map[string]string{"status": "ignored"}, decodeStatus(t, rec))
			assert.Empty(t, env.ed.messages())
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.post("/webhook/ed", talkBody(t, "Create", "users", "tok1", "Hoi"), testSecret)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status        string            `json:"status"`
		Bots          []string          `json:"bots"`
		ERPNextUsers  map[string]string `json:"erpnext_users"`
		Conversations int               `json:"conversations"`
		TotalMessages int               `json:"total_messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, []string{"anna", "ed"}, got.Bots)
	assert.Equal(t, map[string]string{"anna": "anna@example.com", "ed": "ed@example.com"}, got.ERPNextUsers)
	assert.Equal(t, 1, got.Conversations)
	assert.Equal(t, 2, got.TotalMessages)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.post("/webhook/ed", talkBody(t, "Create", "users", "tok1", "/history"), testSecret)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "talkbot_webhooks_total")
	assert.Contains(t, rec.Body.String(), `route="history"`)
}
