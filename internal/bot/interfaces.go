package bot

import (
	"context"
	"time"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/media"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/nextcloud"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

// Messenger posts into Talk conversations.
type Messenger interface {
	SendMessage(ctx context.Context, token, message string, replyTo int) error
	DeleteConversation(ctx context.Context, token string) error
}

// TaskTracker manages Deck boards and cards.
type TaskTracker interface {
	ListBoards(ctx context.Context) ([]nextcloud.Board, error)
	ListStacks(ctx context.Context, boardID int) ([]nextcloud.Stack, error)
	CreateCard(ctx context.Context, boardID, stackID int, title, description string) (*nextcloud.Card, error)
	MoveCardToStack(ctx context.Context, boardID, fromStackID, cardID, toStackID int) error
	CommentOnCard(ctx context.Context, cardID int, message string) error
	CardURL(boardID, cardID int) string
}

// FileStore reaches the bot's Nextcloud file tree.
type FileStore interface {
	ShareFile(ctx context.Context, filePath, token, caption string) (*nextcloud.ShareResult, error)
	UploadFile(ctx context.Context, localPath, remotePath string) (*nextcloud.Upload, error)
	FileExists(ctx context.Context, filePath string) (bool, error)
	SearchFiles(ctx context.Context, query string, limit int) ([]nextcloud.File, error)
	DownloadFile(ctx context.Context, fileURL, dir string) (string, error)
	FileURL(p string) string
}

// Platform is everything a bot does on Nextcloud with its own credentials.
// *nextcloud.Client implements it.
type Platform interface {
	Messenger
	TaskTracker
	FileStore
	BaseURL() string
	User() string
}

// Bindings reads task bindings and records completion.
type Bindings interface {
	Get(ctx context.Context, token string) (*taskbinding.TaskBinding, error)
	MarkCompleted(ctx context.Context, token string, at time.Time) error
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Extractor pulls preview text out of a document.
type Extractor interface {
	ExtractText(ctx context.Context, docPath string) (*media.Preview, error)
}

// Closer schedules the deletion of a conversation.
type Closer interface {
	ScheduleClose(ctx context.Context, bot, token string, delay time.Duration) error
}
