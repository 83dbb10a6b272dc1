package chat

import (
	"sync"
	"time"

	"cafe/internal/infra/llm"
)

const (
	defaultMaxTurns    = 10
	defaultMaxSessions = 1000
	defaultSessionTTL  = 30 * time.Minute
)

type session struct {
	turns    []llm.Message
	lastSeen time.Time
}

// History はセッションごとの直近の会話（プロセス内だけ）。
// 古いセッションは TTL で捨て、数が上限を超えたら一番古いものから捨てる。
type History struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxTurns    int
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

func NewHistory(maxTurns, maxSessions int, ttl time.Duration) *History {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &History{
		sessions:    make(map[string]*session),
		maxTurns:    maxTurns,
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Get はコピーを返す
func (h *History) Get(id string) []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok || h.expired(s) {
		return nil
	}
	out := make([]llm.Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append は末尾に足して maxTurns を超えた分を前から捨てる
func (h *History) Append(id string, msgs ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok || h.expired(s) {
		if !ok && len(h.sessions) >= h.maxSessions {
			h.evictLocked()
		}
		s = &session{}
		h.sessions[id] = s
	}
	s.turns = append(s.turns, msgs...)
	if over := len(s.turns) - h.maxTurns; over > 0 {
		s.turns = append([]llm.Message(nil), s.turns[over:]...)
	}
	s.lastSeen = h.now()
}

// Sweep は期限切れのセッションを消して件数を返す
func (h *History) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for id, s := range h.sessions {
		if h.expired(s) {
			delete(h.sessions, id)
			n++
		}
	}
	return n
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *History) expired(s *session) bool {
	return h.now().Sub(s.lastSeen) > h.ttl
}

// 期限切れを全部、無ければ一番古いものを1つ消す
func (h *History) evictLocked() {
	var oldestID string
	var oldest time.Time
	removed := false
	for id, s := range h.sessions {
		if h.expired(s) {
			delete(h.sessions, id)
			removed = true
			continue
		}
		if oldestID == "" || s.lastSeen.Before(oldest) {
			oldestID, oldest = id, s.lastSeen
		}
	}
	if !removed && oldestID != "" {
		delete(h.sessions, oldestID)
	}
}
