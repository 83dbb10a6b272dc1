package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/infra/llm"
	"cafe/internal/metrics"
	repo "cafe/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLLM は分類呼び出し（MaxTokens<=10）と本回答で返す値を分ける
type fakeLLM struct {
	mu       sync.Mutex
	intent   string
	answer   string
	tokens   []string
	err      error
	requests []llm.Request
	closed   bool
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.MaxTokens <= 10 {
		return f.intent, nil
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) Stream(_ context.Context, req llm.Request) (TokenStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeStream{owner: f, tokens: append([]string(nil), f.tokens...)}, nil
}

func (f *fakeLLM) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeStream struct {
	owner  *fakeLLM
	tokens []string
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return t, nil
}

func (s *fakeStream) Close() error {
	s.owner.mu.Lock()
	s.owner.closed = true
	s.owner.mu.Unlock()
	return nil
}

type fakeMenus struct {
	menus  []model.Menu
	filter repo.MenuFilter
}

func (m *fakeMenus) List(_ context.Context, f repo.MenuFilter) ([]model.Menu, error) {
	m.filter = f
	return m.menus, nil
}

func cafeMenus() *fakeMenus {
	return &fakeMenus{menus: []model.Menu{
		{ID: 1, Name: "아메리카노", Category: "coffee", Price: 4500, IsAvailable: true},
		{ID: 5, Name: "카페라떼", Category: "coffee", Price: 5000, IsAvailable: true},
		{ID: 7, Name: "바닐라라떼", Category: "coffee", Price: 5500, IsAvailable: true},
	}}
}

func newEngine(t *testing.T, f *fakeLLM, menus Menus, m *metrics.Metrics) *Engine {
	t.Helper()
	p, err := LoadPrompts()
	require.NoError(t, err)
	return NewEngine(f, menus, NewHistory(0, 0, 0), p, m, zap.NewNop())
}

func TestEngine_ReplyRecommendsMenus(t *testing.T) {
	f := &fakeLLM{
		intent: "menu_recommendation",
		answer: "**카페라떼**를 추천해요. 달콤한 게 좋다면 바닐라라떼도 좋아요.",
	}
	menus := cafeMenus()
	m := metrics.New()
	e := newEngine(t, f, menus, m)

	res, err := e.Reply(context.Background(), Input{Message: "부드러운 커피 추천해줘", SessionID: "s-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"카페라떼를 추천해요.", "달콤한 게 좋다면 바닐라라떼도 좋아요."}, res.Sentences)
	assert.Equal(t, []int64{5, 7}, res.RecommendedIDs)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Equal(t, "menu_recommendation", res.MessageType)
	assert.True(t, menus.filter.AvailableOnly)

	sys := f.last().Messages[0]
	assert.Equal(t, "system", sys.Role)
	assert.Contains(t, sys.Content, "id:5 카페라떼 5000원")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequests.WithLabelValues("menu_recommendation", "ok")))
}

func TestEngine_ReplyKeepsHistory(t *testing.T) {
	f := &fakeLLM{intent: "store_info", answer: "오전 8시에 문을 엽니다."}
	e := newEngine(t, f, cafeMenus(), nil)
	ctx := context.Background()

	_, err := e.Reply(ctx, Input{Message: "몇 시에 열어요?", SessionID: "s-2"})
	require.NoError(t, err)
	res, err := e.Reply(ctx, Input{Message: "주말에도요?", SessionID: "s-2"})
	require.NoError(t, err)
	assert.Empty(t, res.RecommendedIDs)
	assert.Equal(t, "store_info", res.MessageType)

	msgs := f.last().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "몇 시에 열어요?", msgs[1].Content)
	assert.Equal(t, "오전 8시에 문을 엽니다.", msgs[2].Content)
	assert.Equal(t, "주말에도요?", msgs[3].Content)
}

func TestEngine_ReplyNonMenuIntentHasNoRecommendations(t *testing.T) {
	f := &fakeLLM{intent: "complaint", answer: "불편을 드려 죄송합니다. 카페라떼는 다시 만들어 드릴게요."}
	e := newEngine(t, f, cafeMenus(), nil)

	res, err := e.Reply(context.Background(), Input{Message: "라떼가 너무 식었어요"})
	require.NoError(t, err)
	assert.Equal(t, []int64{}, res.RecommendedIDs)
	assert.Equal(t, "complaint", res.MessageType)
	assert.NotEmpty(t, res.SessionID)
}

func TestEngine_ReplyDegradesWhenLLMDown(t *testing.T) {
	f := &fakeLLM{intent: "menu_recommendation", err: apperr.New(apperr.KindLLMUnavailable, "llm down")}
	m := metrics.New()
	e := newEngine(t, f, cafeMenus(), m)

	res, err := e.Reply(context.Background(), Input{Message: "추천해줘", SessionID: "s-3"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, res.MessageType)
	require.Len(t, res.Sentences, 1)
	assert.Contains(t, res.Sentences[0], "죄송합니다")
	assert.Equal(t, []int64{}, res.RecommendedIDs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequests.WithLabelValues("menu_recommendation", "degraded")))
}

func TestEngine_Validation(t *testing.T) {
	e := newEngine(t, &fakeLLM{}, cafeMenus(), nil)

	_, err := e.Reply(context.Background(), Input{Message: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = e.Reply(context.Background(), Input{Message: strings.Repeat("가", 1001)})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestEngine_StreamTokensThenFinal(t *testing.T) {
	f := &fakeLLM{
		intent: "menu_recommendation",
		tokens: []string{"카페", "라떼를 ", "추천해요."},
	}
	e := newEngine(t, f, cafeMenus(), nil)

	var frames []StreamFrame
	err := e.Stream(context.Background(), Input{Message: "추천", SessionID: "s-4"}, func(fr StreamFrame) error {
		frames = append(frames, fr)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, frames, 4)
	assert.Equal(t, "카페", frames[0].Token)
	assert.False(t, frames[0].Finished)
	last := frames[3]
	assert.True(t, last.Finished)
	require.NotNil(t, last.Response)
	assert.Equal(t, []string{"카페라떼를 추천해요."}, last.Sentences)
	assert.Equal(t, []int64{5}, last.RecommendedIDs)
	assert.True(t, f.closed)
}

func TestEngine_StreamStopsOnClientGone(t *testing.T) {
	f := &fakeLLM{intent: "other", tokens: []string{"a", "b", "c"}}
	e := newEngine(t, f, cafeMenus(), nil)
	gone := errors.New("client gone")

	n := 0
	err := e.Stream(context.Background(), Input{Message: "hi"}, func(StreamFrame) error {
		n++
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, n)
	assert.True(t, f.closed)
}

func TestEngine_StreamDegrades(t *testing.T) {
	f := &fakeLLM{intent: "other", err: apperr.New(apperr.KindLLMUnavailable, "down")}
	e := newEngine(t, f, cafeMenus(), nil)

	var frames []StreamFrame
	err := e.Stream(context.Background(), Input{Message: "hi"}, func(fr StreamFrame) error {
		frames = append(frames, fr)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Finished)
	assert.Equal(t, MessageTypeError, frames[0].MessageType)
}
