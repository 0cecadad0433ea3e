package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/config"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/reasoning"
)

// Bot is one logical bot: its identity and its Nextcloud access.
type Bot struct {
	Identity config.BotIdentity
	Platform Platform
}

// Name is the bot's routing name.
func (b *Bot) Name() string { return b.Identity.Name }

// DisplayName is the name with a leading capital, as the bot introduces itself.
func (b *Bot) DisplayName() string {
	r, size := utf8.DecodeRuneInString(b.Identity.Name)
	if r == utf8.RuneError {
		return b.Identity.Name
	}
	return string(unicode.ToUpper(r)) + b.Identity.Name[size:]
}

func (b *Bot) reasoningIdentity() reasoning.Identity {
	return reasoning.Identity{
		BotName:          b.DisplayName(),
		NextcloudUser:    b.Identity.NextcloudUser,
		ERPNextUser:      b.Identity.ERPNextUser,
		ERPNextAPIKey:    b.Identity.ERPNextAPIKey,
		ERPNextAPISecret: b.Identity.ERPNextAPISecret,
		WorkingDir:       b.Identity.WorkingDir,
		ConfigDir:        b.Identity.ConfigDir,
	}
}

// Registry holds the configured bots. It is immutable after construction.
type Registry struct {
	bots       map[string]*Bot
	defaultBot string
}

// NewRegistry indexes bots by name. defaultBot may be empty.
func NewRegistry(bots []*Bot, defaultBot string) (*Registry, error) {
	r := &Registry{bots: make(map[string]*Bot, len(bots)), defaultBot: defaultBot}
	for _, b := range bots {
		name := strings.ToLower(b.Name())
		if name == "" {
			return nil, fmt.Errorf("bot without a name")
		}
		if _, dup := r.bots[name]; dup {
			return nil, fmt.Errorf("duplicate bot %s", name)
		}
		r.bots[name] = b
	}
	if defaultBot != "" {
		if _, ok := r.bots[strings.ToLower(defaultBot)]; !ok {
			return nil, fmt.Errorf("default bot %s is not configured", defaultBot)
		}
	}
	return r, nil
}

// Get returns the bot with the given name.
func (r *Registry) Get(name string) (*Bot, bool) {
	b, ok := r.bots[strings.ToLower(name)]
	return b, ok
}

// Default returns the bot served at the bare webhook path.
func (r *Registry) Default() (*Bot, bool) {
	if r.defaultBot == "" {
		return nil, false
	}
	return r.Get(r.defaultBot)
}

// Names returns the bot names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.bots))
	for name := range r.bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ERPNextUsers maps each bot to the ERPNext account it acts as.
func (r *Registry) ERPNextUsers() map[string]string {
	users := make(map[string]string, len(r.bots))
	for name, b := range r.bots {
		users[name] = b.Identity.ERPNextUser
	}
	return users
}

// DeleteConversation deletes token with the credentials of the named bot.
func (r *Registry) DeleteConversation(ctx context.Context, bot, token string) error {
	b, ok := r.Get(bot)
	if !ok {
		return fmt.Errorf("unknown bot %s", bot)
	}
	return b.Platform.DeleteConversation(ctx, token)
}
