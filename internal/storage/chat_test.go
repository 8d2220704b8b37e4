package storage

import (
	"fmt"
	"testing"
	"time"
)

func seedTestSession(t *testing.T, s *Store, id, userID string) ChatSession {
	t.Helper()
	now := time.Now().UTC()
	sess := ChatSession{ID: id, UserID: userID, Status: SessionOpen, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateChatSession(sess); err != nil {
		t.Fatalf("CreateChatSession(%s): %v", id, err)
	}
	return sess
}

func TestGetOpenChatSession(t *testing.T) {
	s := openTestStore(t)
	u := seedTestUser(t, s, "user-1")

	if _, err := s.GetOpenChatSession(u.ID); err != ErrNotFound {
		t.Errorf("no sessions yet: got %v, want ErrNotFound", err)
	}

	sess := seedTestSession(t, s, "sess-1", u.ID)
	got, err := s.GetOpenChatSession(u.ID)
	if err != nil {
		t.Fatalf("GetOpenChatSession: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("got session %s, want %s", got.ID, sess.ID)
	}

	// A closed session is not returned.
	if err := s.UpdateChatSessionStatus(sess.ID, SessionClosed, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateChatSessionStatus: %v", err)
	}
	if _, err := s.GetOpenChatSession(u.ID); err != ErrNotFound {
		t.Errorf("after close: got %v, want ErrNotFound", err)
	}
}

// TestListChatMessagesOrdered inserts messages out of order and verifies
// listing returns them sorted by created_at, then id.
func TestListChatMessagesOrdered(t *testing.T) {
	s := openTestStore(t)
	u := seedTestUser(t, s, "user-1")
	sess := seedTestSession(t, s, "sess-1", u.ID)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Insert newest first to defeat any insertion-order accident.
	offsets := []time.Duration{3 * time.Second, time.Microsecond, 2 * time.Second, 0}
	for i, off := range offsets {
		m := ChatMessage{
			ID:            fmt.Sprintf("msg-%d", i),
			SessionID:     sess.ID,
			Sender:        SenderUser,
			ContentSealed: []byte{byte(i)},
			CreatedAt:     base.Add(off),
		}
		if err := s.SaveChatMessage(m); err != nil {
			t.Fatalf("SaveChatMessage %d: %v", i, err)
		}
	}

	messages, err := s.ListChatMessages(sess.ID)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Errorf("messages out of order at %d: %v before %v",
				i, messages[i].CreatedAt, messages[i-1].CreatedAt)
		}
	}
	if messages[0].ID != "msg-3" || messages[1].ID != "msg-1" {
		t.Errorf("unexpected head order: %s, %s", messages[0].ID, messages[1].ID)
	}
}

func TestUpdateChatSessionStatusMissing(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateChatSessionStatus("nope", SessionClosed, time.Now().UTC()); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestListChatSessionsSince(t *testing.T) {
	s := openTestStore(t)
	u := seedTestUser(t, s, "user-1")

	now := time.Now().UTC()
	old := ChatSession{ID: "sess-old", UserID: u.ID, Status: SessionClosed,
		CreatedAt: now.Add(-10 * 24 * time.Hour), UpdatedAt: now.Add(-10 * 24 * time.Hour)}
	if err := s.CreateChatSession(old); err != nil {
		t.Fatalf("CreateChatSession: %v", err)
	}
	seedTestSession(t, s, "sess-new", u.ID)

	recent, err := s.ListChatSessionsSince(u.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("ListChatSessionsSince: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "sess-new" {
		t.Errorf("got %d sessions (first %v), want only sess-new", len(recent), recent)
	}
}
