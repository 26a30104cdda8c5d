package infrastructure

import (
	"sync"
	"time"
)

// replySession tracks the reply in flight for one conversation.
type replySession struct {
	processing bool
	startedAt  time.Time
}

// ReplyGuard allows a single reply in flight per conversation. A reply that
// has been running longer than staleAfter no longer blocks new ones.
type ReplyGuard struct {
	sessions   map[int64]*replySession
	mu         sync.Mutex
	staleAfter time.Duration
	now        func() time.Time
}

func NewReplyGuard(staleAfter time.Duration) *ReplyGuard {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &ReplyGuard{
		sessions:   make(map[int64]*replySession),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// TryStart marks the conversation as processing. It returns false when a
// reply is already in flight.
func (g *ReplyGuard) TryStart(conversationID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	session, exists := g.sessions[conversationID]
	if !exists {
		g.sessions[conversationID] = &replySession{processing: true, startedAt: now}
		return true
	}
	if session.processing && now.Sub(session.startedAt) < g.staleAfter {
		return false
	}

	session.processing = true
	session.startedAt = now
	return true
}

// Finish marks the conversation as done
func (g *ReplyGuard) Finish(conversationID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, conversationID)
}

// InFlight returns the number of conversations being answered.
func (g *ReplyGuard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}
