// Package conversation keeps per-conversation message history and key facts in memory and
// snapshots them to disk after every mutation.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults used when Options leaves a limit at zero.
const (
	DefaultWindow           = 50
	DefaultMaxMessageLength = 500
	DefaultMaxFacts         = 20
)

// Options configures a Store.
type Options struct {
	// Window is the number of recent messages rendered into a prompt. History keeps
	// twice as many.
	Window int
	// MaxMessageLength caps each rendered message via middle-elision.
	MaxMessageLength int
	MaxFacts         int
	// HistoryPath and FactsPath are the snapshot files. Empty means memory only.
	HistoryPath string
	FactsPath   string
	// ConfirmationTTL expires a pending completion confirmation. Zero never expires.
	ConfirmationTTL time.Duration
	AssistantName   string
	Now             func() time.Time
}

func (o *Options) setDefaults() {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = DefaultMaxMessageLength
	}
	if o.MaxFacts <= 0 {
		o.MaxFacts = DefaultMaxFacts
	}
	if o.AssistantName == "" {
		o.AssistantName = "Claude"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Store owns all conversation state. History (with the pending confirmation flags) and key
// facts are guarded by independent locks; each lock is held for the in-memory change plus
// the snapshot write of its own file, never longer.
type Store struct {
	opts Options

	historyMu   sync.Mutex
	history     map[string][]Message
	pending     map[string]time.Time
	historyFile snapshotFile

	factsMu   sync.Mutex
	facts     map[string][]string
	factsFile snapshotFile
}

// New returns an empty store. Nothing is read from disk.
func New(opts Options) *Store {
	opts.setDefaults()
	return &Store{
		opts:        opts,
		history:     make(map[string][]Message),
		pending:     make(map[string]time.Time),
		historyFile: snapshotFile{path: opts.HistoryPath},
		facts:       make(map[string][]string),
		factsFile:   snapshotFile{path: opts.FactsPath},
	}
}

// Open returns a store loaded from the configured snapshot files. Missing files are
// treated as empty state; unreadable or corrupt files are an error so that the last good
// snapshot is never overwritten.
func Open(opts Options) (*Store, error) {
	s := New(opts)

	if err := s.historyFile.load(&s.history); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if err := s.factsFile.load(&s.facts); err != nil {
		return nil, fmt.Errorf("load key facts: %w", err)
	}
	if s.history == nil {
		s.history = make(map[string][]Message)
	}
	if s.facts == nil {
		s.facts = make(map[string][]string)
	}

	// A confirmation prompt at the tail of a conversation is still awaiting an answer.
	for token, msgs := range s.history {
		if n := len(msgs); n > 0 && msgs[n-1].Kind == KindConfirmationRequest {
			s.pending[token] = msgs[n-1].Timestamp
		}
	}

	log.Info().
		Int("conversations", len(s.history)).
		Int("fact_sets", len(s.facts)).
		Msg("Conversation store loaded")
	return s, nil
}

// AppendMessage adds a message to the conversation and evicts the oldest entries beyond
// twice the rendering window.
func (s *Store) AppendMessage(token string, role Role, name, content string) {
	s.Append(token, Message{Role: role, Name: name, Content: content})
}

// Append adds msg, stamping it with the current time when it has none.
func (s *Store) Append(token string, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.opts.Now()
	}

	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	msgs := append(s.history[token], msg)
	if limit := 2 * s.opts.Window; len(msgs) > limit {
		msgs = append([]Message(nil), msgs[len(msgs)-limit:]...)
	}
	s.history[token] = msgs
	s.persistHistoryLocked()
}

// History returns a copy of the conversation's retained messages, oldest first.
func (s *Store) History(token string) []Message {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return append([]Message(nil), s.history[token]...)
}

// CountMessages returns the number of retained messages for token.
func (s *Store) CountMessages(token string) int {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return len(s.history[token])
}

// ClearHistory drops the conversation's history and any pending confirmation.
func (s *Store) ClearHistory(token string) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	delete(s.pending, token)
	if _, ok := s.history[token]; !ok {
		return
	}
	delete(s.history, token)
	s.persistHistoryLocked()
}

// SetPendingConfirmation records that a completion confirmation prompt was sent.
func (s *Store) SetPendingConfirmation(token string) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.pending[token] = s.opts.Now()
}

// PendingConfirmation reports whether a completion confirmation is awaiting an answer.
// Expired entries are dropped.
func (s *Store) PendingConfirmation(token string) bool {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	since, ok := s.pending[token]
	if !ok {
		return false
	}
	if ttl := s.opts.ConfirmationTTL; ttl > 0 && s.opts.Now().Sub(since) > ttl {
		delete(s.pending, token)
		return false
	}
	return true
}

// ClearPendingConfirmation forgets a pending confirmation, reporting whether one existed.
func (s *Store) ClearPendingConfirmation(token string) bool {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	_, ok := s.pending[token]
	delete(s.pending, token)
	return ok
}

// AddKeyFact stores fact for token. It returns false without changing anything when the
// exact fact is already stored. The oldest facts are dropped beyond the cap.
func (s *Store) AddKeyFact(token, fact string) bool {
	s.factsMu.Lock()
	defer s.factsMu.Unlock()

	for _, f := range s.facts[token] {
		if f == fact {
			return false
		}
	}

	facts := append(s.facts[token], fact)
	if len(facts) > s.opts.MaxFacts {
		facts = append([]string(nil), facts[len(facts)-s.opts.MaxFacts:]...)
	}
	s.facts[token] = facts
	s.persistFactsLocked()
	return true
}

// KeyFacts returns a copy of the conversation's facts, oldest first.
func (s *Store) KeyFacts(token string) []string {
	s.factsMu.Lock()
	defer s.factsMu.Unlock()
	return append([]string(nil), s.facts[token]...)
}

// RemoveKeyFactByIndex removes the fact at the 1-based index and returns it.
func (s *Store) RemoveKeyFactByIndex(token string, index int) (string, error) {
	s.factsMu.Lock()
	defer s.factsMu.Unlock()

	facts := s.facts[token]
	if index < 1 || index > len(facts) {
		return "", fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(facts))
	}

	removed := facts[index-1]
	next := make([]string, 0, len(facts)-1)
	next = append(next, facts[:index-1]...)
	next = append(next, facts[index:]...)
	s.facts[token] = next
	s.persistFactsLocked()
	return removed, nil
}

// Stats reports how many conversations and messages are held.
func (s *Store) Stats() Stats {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	st := Stats{Conversations: len(s.history)}
	for _, msgs := range s.history {
		st.TotalMessages += len(msgs)
	}
	return st
}

// persistHistoryLocked writes the history snapshot. Failures are logged and the in-memory
// state is kept. Caller holds historyMu.
func (s *Store) persistHistoryLocked() {
	if err := s.historyFile.save(s.history); err != nil {
		log.Error().Err(err).Str("path", s.historyFile.path).Msg("Failed to persist conversation history")
	}
}

// persistFactsLocked writes the key facts snapshot. Caller holds factsMu.
func (s *Store) persistFactsLocked() {
	if err := s.factsFile.save(s.facts); err != nil {
		log.Error().Err(err).Str("path", s.factsFile.path).Msg("Failed to persist key facts")
	}
}
