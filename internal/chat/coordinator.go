// Package chat owns chat session lifecycle: one open session per user,
// per-session message ordering, scoring of each inbound message, SOP-driven
// bot replies, and the single escalation a session may trigger.
package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/scoring"
	"github.com/safespace/safespace/internal/secrets"
	"github.com/safespace/safespace/internal/sop"
	"github.com/safespace/safespace/internal/storage"
)

var (
	// ErrSessionClosed is returned when a message targets a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotOwner is returned when a caller touches a session they don't own.
	ErrNotOwner = errors.New("not the session owner")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
)

type Coordinator struct {
	store  *storage.Store
	scorer scoring.Scorer
	box    *secrets.Box
	router *escalation.Router
	logger *slog.Logger

	mu        sync.Mutex
	sessionMu map[string]*sync.Mutex
}

func NewCoordinator(store *storage.Store, scorer scoring.Scorer, box *secrets.Box, router *escalation.Router) *Coordinator {
	return &Coordinator{
		store:     store,
		scorer:    scorer,
		box:       box,
		router:    router,
		logger:    slog.Default(),
		sessionMu: make(map[string]*sync.Mutex),
	}
}

// lockSession returns the per-session ordering lock. Messages within one
// session are scored and persisted in arrival order; cross-session traffic
// runs fully in parallel.
func (c *Coordinator) lockSession(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.sessionMu[sessionID]
	if !ok {
		m = &sync.Mutex{}
		c.sessionMu[sessionID] = m
	}
	return m
}

// GetOrCreate returns the user's open session, creating one if needed. At
// most one open session exists per user; created reports which case hit.
func (c *Coordinator) GetOrCreate(userID string) (storage.ChatSession, bool, error) {
	m := c.lockSession("user:" + userID)
	m.Lock()
	defer m.Unlock()

	sess, err := c.store.GetOpenChatSession(userID)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.ChatSession{}, false, err
	}

	now := time.Now().UTC()
	sess = storage.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    storage.SessionOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CreateChatSession(sess); err != nil {
		return storage.ChatSession{}, false, fmt.Errorf("creating session: %w", err)
	}
	return sess, true, nil
}

// Message is a decrypted message view.
type Message struct {
	ID        string
	SessionID string
	Sender    string
	Content   string
	CreatedAt time.Time
}

// Exchange is the result of handling one inbound message.
type Exchange struct {
	UserMessage Message
	BotMessage  Message
	Escalated   bool
	TicketID    string
}

// HandleMessage persists the user message, scores it, selects a bot reply by
// SOP matching, and escalates at most once per session. The dangerous-keyword
// fast path escalates without waiting for the scorer; scorer failures degrade
// to a neutral result and never block the message.
func (c *Coordinator) HandleMessage(sessionID, userID, content string) (Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return Exchange{}, fmt.Errorf("%w: content is required", ErrValidation)
	}

	m := c.lockSession(sessionID)
	m.Lock()
	defer m.Unlock()

	sess, err := c.store.GetChatSession(sessionID)
	if err != nil {
		return Exchange{}, err
	}
	if sess.UserID != userID {
		return Exchange{}, ErrNotOwner
	}
	if sess.Status == storage.SessionClosed {
		return Exchange{}, ErrSessionClosed
	}

	now := time.Now().UTC()
	userMsg, err := c.saveMessage(sessionID, storage.SenderUser, content, now)
	if err != nil {
		return Exchange{}, err
	}

	// Fast path first: keyword hits escalate even if the scorer would not.
	dangerous := matchesDangerous(content)

	res, err := c.scorer.Score(content)
	if err != nil {
		c.logger.Error("scorer failed, using neutral result", "session_id", sessionID, "error", err)
		res = scoring.Neutral()
	}
	escalate := dangerous || res.HasRisk()

	reply := c.selectReply(content, escalate)
	botMsg, err := c.saveMessage(sessionID, storage.SenderBot, reply, now.Add(time.Microsecond))
	if err != nil {
		return Exchange{}, err
	}

	ex := Exchange{UserMessage: userMsg, BotMessage: botMsg}
	if escalate {
		ticket, err := c.escalate(sess, content, now)
		if err != nil {
			c.logger.Error("chat escalation failed", "session_id", sessionID, "error", err)
		} else {
			ex.Escalated = true
			ex.TicketID = ticket.ID
		}
	}
	return ex, nil
}

func (c *Coordinator) saveMessage(sessionID, sender, content string, at time.Time) (Message, error) {
	sealed, err := c.box.Seal(content)
	if err != nil {
		return Message{}, fmt.Errorf("sealing message: %w", err)
	}
	msg := storage.ChatMessage{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Sender:        sender,
		ContentSealed: sealed,
		CreatedAt:     at,
	}
	if err := c.store.SaveChatMessage(msg); err != nil {
		return Message{}, fmt.Errorf("saving message: %w", err)
	}
	return Message{ID: msg.ID, SessionID: sessionID, Sender: sender, Content: content, CreatedAt: at}, nil
}

func (c *Coordinator) selectReply(content string, escalate bool) string {
	if escalate {
		return crisisResponse
	}
	docs, err := c.store.ListActiveSOPDocs()
	if err != nil {
		c.logger.Warn("listing SOP docs failed", "error", err)
		return defaultResponse
	}
	matcherDocs := make([]sop.Doc, 0, len(docs))
	for _, d := range docs {
		matcherDocs = append(matcherDocs, sop.Doc{
			ID:          d.ID,
			Title:       d.Title,
			Category:    d.Category,
			Content:     d.Content,
			Keywords:    sop.ParseKeywords(d.Keywords),
			EffectiveAt: d.EffectiveAt,
		})
	}
	if doc, ok := sop.Match(matcherDocs, content); ok {
		return responseFor(doc.Category)
	}
	return defaultResponse
}

// escalate opens (or attaches to) the session's ticket and marks the session
// escalated. The router's per-source idempotency guarantees a session never
// produces two pending tickets, however many triggers fire.
func (c *Coordinator) escalate(sess storage.ChatSession, content string, now time.Time) (storage.EscalationTicket, error) {
	src := escalation.Source{Type: storage.SourceChat, ID: sess.ID}
	reason := "Dangerous level detected in chat message: " + truncate(content, 100)
	ticket, err := c.router.OpenTicket(src, sess.UserID, reason)
	if err != nil {
		return storage.EscalationTicket{}, err
	}

	if sess.Status == storage.SessionOpen {
		if err := c.store.UpdateChatSessionStatus(sess.ID, storage.SessionEscalated, now); err != nil {
			return storage.EscalationTicket{}, fmt.Errorf("marking session escalated: %w", err)
		}
	}
	return ticket, nil
}

// Messages returns the session's messages in created_at order, decrypted.
func (c *Coordinator) Messages(sessionID, userID string) ([]Message, error) {
	sess, err := c.store.GetChatSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotOwner
	}

	stored, err := c.store.ListChatMessages(sessionID)
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(stored))
	for _, m := range stored {
		content, err := c.box.Open(m.ContentSealed)
		if err != nil {
			return nil, fmt.Errorf("opening message %s: %w", m.ID, err)
		}
		messages = append(messages, Message{
			ID:        m.ID,
			SessionID: m.SessionID,
			Sender:    m.Sender,
			Content:   content,
			CreatedAt: m.CreatedAt,
		})
	}
	return messages, nil
}

// Close transitions an open or escalated session to closed.
func (c *Coordinator) Close(sessionID, userID string) (storage.ChatSession, error) {
	m := c.lockSession(sessionID)
	m.Lock()
	defer m.Unlock()

	sess, err := c.store.GetChatSession(sessionID)
	if err != nil {
		return storage.ChatSession{}, err
	}
	if sess.UserID != userID {
		return storage.ChatSession{}, ErrNotOwner
	}
	if sess.Status == storage.SessionClosed {
		return sess, nil
	}

	now := time.Now().UTC()
	if err := c.store.UpdateChatSessionStatus(sessionID, storage.SessionClosed, now); err != nil {
		return storage.ChatSession{}, err
	}
	sess.Status = storage.SessionClosed
	sess.UpdatedAt = now
	return sess, nil
}

func matchesDangerous(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range dangerousKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
