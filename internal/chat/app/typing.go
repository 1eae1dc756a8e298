package app

import (
	"sync"

	"github.com/kothaapp/kotha/internal/chat/domain"
)

// typingTracker tracks per-chat sets of identities currently typing. State
// is ephemeral and purely socket-driven; the server reflects the last known
// state and clears it on disconnect.
type typingTracker struct {
	mu     sync.Mutex
	byChat map[string]map[string]struct{}
	byUser map[string]map[string]struct{}
}

func newTypingTracker() *typingTracker {
	return &typingTracker{
		byChat: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

// start records the user as typing in the chat. Returns false when the user
// was already in the set.
func (t *typingTracker) start(userID string, kind domain.ChatKind, chatID string) bool {
	key := chatRoomKey(kind, chatID)
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.byChat[key]
	if !ok {
		users = make(map[string]struct{})
		t.byChat[key] = users
	}
	if _, exists := users[userID]; exists {
		return false
	}
	users[userID] = struct{}{}

	chats, ok := t.byUser[userID]
	if !ok {
		chats = make(map[string]struct{})
		t.byUser[userID] = chats
	}
	chats[key] = struct{}{}
	return true
}

// stop removes the user from the chat's typing set. Returns false when the
// user was not typing there.
func (t *typingTracker) stop(userID string, kind domain.ChatKind, chatID string) bool {
	key := chatRoomKey(kind, chatID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(userID, key)
}

// clear removes the user from every chat's typing set and returns the room
// keys that changed so the caller can broadcast typing-off.
func (t *typingTracker) clear(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	chats := t.byUser[userID]
	cleared := make([]string, 0, len(chats))
	for key := range chats {
		if t.removeLocked(userID, key) {
			cleared = append(cleared, key)
		}
	}
	return cleared
}

func (t *typingTracker) removeLocked(userID, chatKey string) bool {
	users, ok := t.byChat[chatKey]
	if !ok {
		return false
	}
	if _, exists := users[userID]; !exists {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byChat, chatKey)
	}
	if chats, ok := t.byUser[userID]; ok {
		delete(chats, chatKey)
		if len(chats) == 0 {
			delete(t.byUser, userID)
		}
	}
	return true
}
