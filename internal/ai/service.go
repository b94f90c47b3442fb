// Package ai keeps per-user conversation state and proxies it to the
// Anthropic Messages API. Any transport or API failure degrades to a
// fixed apology without touching the stored history.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"buildsbot/core/logger"
)

// Apology is the fixed user-facing reply on remote-API failure.
const Apology = "⚠️ Не удалось получить ответ от модели. Попробуйте ещё раз позже."

// Roles stored in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnknownModel rejects selection of a model absent from the registry.
var ErrUnknownModel = errors.New("ai: unknown model")

// Model describes one registry entry.
type Model struct {
	Name        string
	RemoteID    string
	Vision      bool
	Description string
}

// Registry returns the static model set offered by /model.
func Registry() []Model {
	return []Model{
		{
			Name:        "sonnet",
			RemoteID:    "claude-sonnet-4-0",
			Vision:      true,
			Description: "сбалансированная модель, понимает изображения",
		},
		{
			Name:        "opus",
			RemoteID:    "claude-opus-4-0",
			Vision:      true,
			Description: "самая сильная модель, понимает изображения",
		},
		{
			Name:        "haiku",
			RemoteID:    "claude-3-5-haiku-latest",
			Vision:      false,
			Description: "быстрая текстовая модель",
		},
	}
}

// Turn is one stored history entry.
type Turn struct {
	Role    string
	Content string
}

type image struct {
	mediaType string
	data      string
}

// messagesAPI is the slice of the Anthropic client the service calls,
// kept narrow so tests can substitute a fake.
type messagesAPI interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Options configures the conversation service.
type Options struct {
	// HistoryLimit caps stored turns per user, oldest discarded first.
	HistoryLimit int
	MaxTokens    int64
	Temperature  float64
}

// Service owns histories, last-uploaded images and the current model.
type Service struct {
	api    messagesAPI
	models []Model
	opts   Options

	currentMu sync.RWMutex
	current   Model

	stateMu   sync.Mutex
	histories map[int64][]Turn
	images    map[int64]image
}

// New builds the service around a live Anthropic client.
func New(client anthropic.Client, models []Model, opts Options) *Service {
	return newService(&client.Messages, models, opts)
}

func newService(api messagesAPI, models []Model, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if len(models) == 0 {
		models = Registry()
	}
	return &Service{
		api:       api,
		models:    models,
		opts:      opts,
		current:   models[0],
		histories: make(map[int64][]Turn),
		images:    make(map[int64]image),
	}
}

// Models lists the registry entries.
func (s *Service) Models() []Model {
	return s.models
}

// Current returns the process-wide selected model.
func (s *Service) Current() Model {
	s.currentMu.RLock()
	defer s.currentMu.RUnlock()
	return s.current
}

// Select switches the process-wide model by registry name.
func (s *Service) Select(name string) (Model, error) {
	for _, m := range s.models {
		if m.Name == name {
			s.currentMu.Lock()
			s.current = m
			s.currentMu.Unlock()
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
}

// Clear drops the user's history and stored image.
func (s *Service) Clear(userID int64) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	delete(s.histories, userID)
	delete(s.images, userID)
}

// SetImage replaces the user's held image; it rides along on the next
// vision-capable request until replaced.
func (s *Service) SetImage(userID int64, mediaType, base64Data string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.images[userID] = image{mediaType: mediaType, data: base64Data}
}

// History returns a copy of the user's stored turns.
func (s *Service) History(userID int64) []Turn {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return append([]Turn(nil), s.histories[userID]...)
}

// Ask sends the user's message with trimmed history to the current model.
// On success both turns are appended; on failure the apology is returned
// and history stays untouched.
func (s *Service) Ask(ctx context.Context, userID int64, text string) string {
	model := s.Current()

	s.stateMu.Lock()
	history := append([]Turn(nil), s.histories[userID]...)
	img, hasImage := s.images[userID]
	s.stateMu.Unlock()

	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	blocks := []anthropic.ContentBlockParamUnion{}
	if hasImage && model.Vision {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.mediaType, img.data))
	}
	blocks = append(blocks, anthropic.NewTextBlock(text))
	messages = append(messages, anthropic.NewUserMessage(blocks...))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.RemoteID),
		MaxTokens: s.opts.MaxTokens,
		Messages:  messages,
	}
	if s.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(s.opts.Temperature)
	}

	msg, err := s.api.New(ctx, params)
	if err != nil {
		logger.Error(ctx, "ai", "request.fail",
			slog.Int64("user_id", userID),
			slog.String("model", model.RemoteID),
			slog.String("err", err.Error()),
		)
		return Apology
	}
	reply := collectText(msg)
	if reply == "" {
		logger.Warn(ctx, "ai", "empty.response",
			slog.Int64("user_id", userID),
			slog.String("model", model.RemoteID),
		)
		return Apology
	}

	s.stateMu.Lock()
	turns := append(s.histories[userID],
		Turn{Role: RoleUser, Content: text},
		Turn{Role: RoleAssistant, Content: reply},
	)
	if over := len(turns) - s.opts.HistoryLimit; over > 0 {
		turns = turns[over:]
	}
	s.histories[userID] = turns
	s.stateMu.Unlock()

	return reply
}

func collectText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	return strings.TrimSpace(b.String())
}

// SplitMessage chunks long replies to fit the transport's message limit.
// Cuts land on newline or rune boundaries so every chunk stays valid UTF-8.
func SplitMessage(s string, max int) []string {
	if max <= 0 || len(s) <= max {
		return []string{s}
	}
	var parts []string
	for len(s) > max {
		cut := max
		if idx := strings.LastIndex(s[:max], "\n"); idx > max/2 {
			cut = idx + 1
		} else {
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(s)
				cut = size
			}
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
