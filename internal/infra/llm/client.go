// Package llm はOpenAI互換のchat completions APIクライアント。
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"cafe/internal/apperr"

	"go.uber.org/zap"
)

const (
	maxRetries = 3
	initDelay  = 500 * time.Millisecond
)

var ErrNoAPIKey = errors.New("llm api key not set")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
	delay  time.Duration
}

// DI
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		// ストリームは本文の読み終わりまでかかるのでTimeoutはcontext側で持つ
		client: &http.Client{},
		log:    log,
		delay:  initDelay,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
		Delta   Message `json:"delta"`
	} `json:"choices"`
}

// Complete はブロッキングで全文を返す。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.KindLLMUnavailable, "decode response", err)
	}
	if len(out.Choices) == 0 {
		return "", apperr.New(apperr.KindLLMUnavailable, "empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// Stream はトークン列を返す。Closeで上流の接続も閉じる。
func (c *Client) Stream(ctx context.Context, req Request) (*TokenStream, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	resp, err := c.do(ctx, req, true)
	if err != nil {
		cancel()
		return nil, err
	}
	return &TokenStream{body: resp.Body, sc: bufio.NewScanner(resp.Body), cancel: cancel}, nil
}

// 429/5xxと通信エラーは指数バックオフで再試行する
func (c *Client) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if c.cfg.APIKey == "" {
		return nil, apperr.Wrap(apperr.KindLLMUnavailable, "api key not configured", ErrNoAPIKey)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindLLMUnavailable, "marshal request", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.delay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apperr.Wrap(apperr.KindLLMUnavailable, "canceled", ctx.Err())
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindLLMUnavailable, "create request", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		if stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = fmt.Errorf("llm api error (%d): %s", resp.StatusCode, string(b))
		c.log.Warn("llm call failed",
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
		)
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			break
		}
	}
	return nil, apperr.Wrap(apperr.KindLLMUnavailable, "llm call failed", lastErr)
}

// TokenStream は "data: {...}" 行を1トークンずつ返す。終端は io.EOF。
type TokenStream struct {
	body   io.ReadCloser
	sc     *bufio.Scanner
	cancel context.CancelFunc
	done   bool
}

func (s *TokenStream) Recv() (string, error) {
	for !s.done && s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if err := s.sc.Err(); err != nil && !s.done {
		return "", apperr.Wrap(apperr.KindLLMUnavailable, "stream read", err)
	}
	s.done = true
	return "", io.EOF
}

func (s *TokenStream) Close() error {
	s.done = true
	s.cancel()
	return s.body.Close()
}
