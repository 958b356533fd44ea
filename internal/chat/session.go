package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/logger"
)

// ErrEmptyMessage is returned by Send for blank user input.
var ErrEmptyMessage = errors.New("message must not be empty")

// Session is one advisory conversation. It is not safe for concurrent use.
type Session struct {
	id        string
	assistant ai.Assistant
	provider  ai.Provider
	history   []ai.Message
	baseLog   *zap.Logger
	logger    *zap.Logger
}

func NewSession(assistant ai.Assistant, provider ai.Provider, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{
		assistant: assistant,
		provider:  provider,
		baseLog:   logger.WithCommonFields(log, string(provider), assistant.Model()),
	}
	s.Reset()

	return s
}

func (s *Session) ID() string {
	return s.id
}

// Send appends text as a user message, asks the assistant for a reply and
// appends the parsed reply. On transport failure the user message stays in
// the history and no assistant message is added.
func (s *Session) Send(ctx context.Context, text string) (ai.ParsedResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ai.ParsedResponse{}, ErrEmptyMessage
	}

	s.history = append(s.history, ai.Message{Role: ai.RoleUser, Content: text})

	started := time.Now()
	raw, err := s.assistant.Reply(ctx, s.History())
	if err != nil {
		s.logger.Warn("assistant reply failed", zap.Int("turn", len(s.history)), zap.Error(err))
		return ai.ParsedResponse{}, fmt.Errorf("assistant reply: %w", err)
	}

	parsed := ai.Parse(raw)
	s.history = append(s.history, parsed.Message())

	fields := []zap.Field{
		zap.Int("turn", len(s.history)),
		zap.Duration("took", time.Since(started)),
		zap.Int("reply_length", utf8.RuneCountInString(raw)),
		zap.Int("suggestions", len(parsed.Suggestions)),
		zap.Bool("recommendations", parsed.Recommendations != nil),
	}
	if !parsed.Structured {
		s.logger.Warn("assistant reply is not structured, using fallback suggestions", fields...)
	} else {
		s.logger.Debug("assistant replied", fields...)
	}

	return parsed, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []ai.Message {
	out := make([]ai.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Suggestions returns the quick replies of the last assistant message.
func (s *Session) Suggestions() []string {
	if len(s.history) == 0 {
		return nil
	}

	last := s.history[len(s.history)-1]
	if last.Role != ai.RoleAssistant {
		return nil
	}

	return append([]string(nil), last.Suggestions...)
}

// LastRecommendation returns the most recent structured stack proposal, if any.
func (s *Session) LastRecommendation() *ai.Recommendation {
	for i := len(s.history) - 1; i >= 0; i-- {
		if rec := s.history[i].Recommendations; rec != nil {
			return rec
		}
	}
	return nil
}

// Reset drops the history and starts a new conversation id.
func (s *Session) Reset() {
	s.id = uuid.NewString()
	s.history = nil
	s.logger = logger.WithSession(s.baseLog, s.id)
	s.logger.Debug("chat session started")
}
