// Package chat はメニュー推薦チャット（意図分類、プロンプト、履歴、後処理）。
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/infra/llm"
	"cafe/internal/metrics"
	repo "cafe/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MessageTypeError = "error"
	maxMessageRunes  = 1000
)

// TokenStream は1トークンずつ返す。終わりは io.EOF。
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// LLM は chat completions の呼び出し
type LLM interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request) (TokenStream, error)
}

// Menus は販売中メニューの読み出し（キャッシュ経由）
type Menus interface {
	List(ctx context.Context, f repo.MenuFilter) ([]model.Menu, error)
}

type Input struct {
	Message   string
	SessionID string
}

type Response struct {
	Sentences      []string `json:"sentences"`
	RecommendedIDs []int64  `json:"recommendedIds"`
	SessionID      string   `json:"sessionId"`
	MessageType    string   `json:"messageType"`
}

// StreamFrame はストリームの1件。最後だけ Finished=true で Response が付く。
type StreamFrame struct {
	Token    string `json:"token,omitempty"`
	Finished bool   `json:"finished"`
	*Response
}

type Engine struct {
	llm     LLM
	menus   Menus
	history *History
	prompts Prompts
	metrics *metrics.Metrics
	log     *zap.Logger
}

// DI
func NewEngine(client LLM, menus Menus, history *History, prompts Prompts, m *metrics.Metrics, log *zap.Logger) *Engine {
	if history == nil {
		history = NewHistory(0, 0, 0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{llm: client, menus: menus, history: history, prompts: prompts, metrics: m, log: log.Named("chat")}
}

// Reply は1回で答える。LLMが使えない時はお詫び1文（messageType=error）。
func (e *Engine) Reply(ctx context.Context, in Input) (Response, error) {
	msg, sessionID, err := e.normalize(in)
	if err != nil {
		return Response{}, err
	}

	intent, menus, req := e.prepare(ctx, sessionID, msg)
	out, err := e.llm.Complete(ctx, req)
	if err != nil {
		return e.degraded(sessionID, intent, err), nil
	}
	return e.finish(sessionID, intent, menus, msg, out), nil
}

// Stream はトークンを emit に流し、最後に Finished=true を送る。
// emit がエラーを返したら（切断）上流のストリームを閉じて終わる。
func (e *Engine) Stream(ctx context.Context, in Input, emit func(StreamFrame) error) error {
	msg, sessionID, err := e.normalize(in)
	if err != nil {
		return err
	}

	intent, menus, req := e.prepare(ctx, sessionID, msg)
	stream, err := e.llm.Stream(ctx, req)
	if err != nil {
		r := e.degraded(sessionID, intent, err)
		return emit(StreamFrame{Finished: true, Response: &r})
	}
	defer stream.Close()

	var b strings.Builder
	for {
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r := e.degraded(sessionID, intent, err)
			return emit(StreamFrame{Finished: true, Response: &r})
		}
		b.WriteString(tok)
		if err := emit(StreamFrame{Token: tok}); err != nil {
			e.log.Debug("stream client gone", zap.String("session_id", sessionID), zap.Error(err))
			return err
		}
	}

	r := e.finish(sessionID, intent, menus, msg, b.String())
	return emit(StreamFrame{Finished: true, Response: &r})
}

func (e *Engine) normalize(in Input) (string, string, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return "", "", apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(msg) > maxMessageRunes {
		return "", "", apperr.Validation("message too long")
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" || len(sessionID) > 128 {
		sessionID = uuid.NewString()
	}
	return msg, sessionID, nil
}

// 意図を決めて、システムプロンプト＋履歴＋今回の発言を組み立てる
func (e *Engine) prepare(ctx context.Context, sessionID, msg string) (Intent, []model.Menu, llm.Request) {
	intent, err := e.classify(ctx, msg)
	if err != nil {
		e.log.Warn("intent classification failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	var menus []model.Menu
	if intent == IntentMenu && e.menus != nil {
		menus, err = e.menus.List(ctx, repo.MenuFilter{AvailableOnly: true})
		if err != nil {
			e.log.Warn("menu catalog unavailable", zap.Error(err))
		}
	}

	messages := []llm.Message{{Role: "system", Content: e.prompts.system(intent, menus)}}
	messages = append(messages, e.history.Get(sessionID)...)
	messages = append(messages, llm.Message{Role: "user", Content: msg})

	return intent, menus, llm.Request{Messages: messages, Temperature: 0.7, MaxTokens: 500}
}

// 後処理して履歴に残す
func (e *Engine) finish(sessionID string, intent Intent, menus []model.Menu, msg, raw string) Response {
	text := StripMarkdown(raw)

	ids := []int64{}
	if intent == IntentMenu {
		ids = RecommendIDs(text, menus)
	}

	e.history.Append(sessionID,
		llm.Message{Role: "user", Content: msg},
		llm.Message{Role: "assistant", Content: text},
	)
	e.metrics.ChatRequest(string(intent), "ok")

	return Response{
		Sentences:      SplitSentences(text),
		RecommendedIDs: ids,
		SessionID:      sessionID,
		MessageType:    string(intent),
	}
}

func (e *Engine) degraded(sessionID string, intent Intent, err error) Response {
	e.log.Error("llm unavailable, returning apology",
		zap.String("session_id", sessionID),
		zap.String("intent", string(intent)),
		zap.Error(err),
	)
	e.metrics.ChatRequest(string(intent), "degraded")
	return Response{
		Sentences:      []string{strings.TrimSpace(e.prompts.Apology)},
		RecommendedIDs: []int64{},
		SessionID:      sessionID,
		MessageType:    MessageTypeError,
	}
}

// ClientLLM は *llm.Client を LLM に合わせる
type ClientLLM struct{ *llm.Client }

func (c ClientLLM) Stream(ctx context.Context, req llm.Request) (TokenStream, error) {
	s, err := c.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}
