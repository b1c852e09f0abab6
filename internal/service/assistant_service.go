package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/config"
)

var ErrAssistantUnavailable = errors.New("assistant upstream unavailable")

const assistantSystemPrompt = "You are the help assistant for an online exam " +
	"platform. Answer questions about using the platform: logging in, joining " +
	"exams, the countdown clock, fullscreen rules, and where to find results. " +
	"Never help with exam content or answers. Keep replies short."

// AssistantService forwards chat messages to a configured OpenAI-compatible
// chat-completions endpoint, injecting the platform system prompt. It holds no
// conversation state; the client resends its history on every call.
type AssistantService struct {
	cfg    *config.Config
	client *http.Client
	log    zerolog.Logger
}

func NewAssistantService(cfg *config.Config, log zerolog.Logger) *AssistantService {
	return &AssistantService{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log.With().Str("component", "assistant_service").Logger(),
	}
}

// ChatMessage is one turn of the conversation, in the upstream wire shape.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=4000"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Enabled reports whether an upstream API key is configured. Without one the
// handler returns 503 instead of forwarding doomed requests.
func (s *AssistantService) Enabled() bool {
	return s.cfg.AssistantAPIKey != ""
}

// Chat sends the conversation upstream and returns the assistant's reply.
func (s *AssistantService) Chat(ctx context.Context, history []ChatMessage) (string, error) {
	if !s.Enabled() {
		return "", ErrAssistantUnavailable
	}

	payload := chatRequest{
		Model:    s.cfg.AssistantModel,
		Messages: append([]ChatMessage{{Role: "system", Content: assistantSystemPrompt}}, history...),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AssistantAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AssistantAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Msg("assistant upstream request failed")
		return "", ErrAssistantUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a little of the body for the log, never for the client.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Warn().Int("status", resp.StatusCode).Bytes("body", snippet).Msg("assistant upstream error")
		return "", fmt.Errorf("%w: status %d", ErrAssistantUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return "", ErrAssistantUnavailable
	}
	return out.Choices[0].Message.Content, nil
}
