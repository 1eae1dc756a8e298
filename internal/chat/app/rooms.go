package app

import (
	"encoding/json"
	"sync"

	"github.com/kothaapp/kotha/internal/chat/domain"
)

// wsPeer serializes frame writes to one connection.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// roomKey addresses a broadcast room: one per chat plus one personal room
// per connected identity.
func chatRoomKey(kind domain.ChatKind, chatID string) string {
	return string(kind) + ":" + chatID
}

func personalRoomKey(userID string) string {
	return "user:" + userID
}

type room struct {
	mu          sync.Mutex
	key         string
	subscribers map[*wsPeer]struct{}
}

func newRoom(key string) *room {
	return &room{key: key, subscribers: make(map[*wsPeer]struct{})}
}

func (r *room) join(peer *wsPeer) {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	r.mu.Unlock()
}

func (r *room) leave(peer *wsPeer) bool {
	r.mu.Lock()
	delete(r.subscribers, peer)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *room) peers() []*wsPeer {
	r.mu.Lock()
	peers := make([]*wsPeer, 0, len(r.subscribers))
	for peer := range r.subscribers {
		peers = append(peers, peer)
	}
	r.mu.Unlock()
	return peers
}

// roomHub routes broadcasts to rooms. Membership is connection-scoped and
// forgotten when the connection closes.
type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*room)}
}

func (h *roomHub) room(key string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[key]
	if ok {
		return r
	}
	r = newRoom(key)
	h.rooms[key] = r
	return r
}

// broadcast writes the frame to every subscriber of the room, optionally
// excluding one peer (the originating sender).
func (h *roomHub) broadcast(key string, frame wsFrame, exclude *wsPeer) {
	for _, peer := range h.room(key).peers() {
		if peer == exclude {
			continue
		}
		_ = peer.writeFrame(frame)
	}
}

func (h *roomHub) leave(key string, peer *wsPeer) {
	h.mu.Lock()
	r, ok := h.rooms[key]
	h.mu.Unlock()
	if !ok {
		return
	}
	if r.leave(peer) {
		h.mu.Lock()
		if current, ok := h.rooms[key]; ok && current == r {
			delete(h.rooms, key)
		}
		h.mu.Unlock()
	}
}

// wsSession is one authenticated connection's state: the bound identity and
// the set of rooms it joined. The identity is immutable for the connection.
type wsSession struct {
	identity domain.Identity
	peer     *wsPeer

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newWSSession(identity domain.Identity, peer *wsPeer) *wsSession {
	return &wsSession{
		identity: identity,
		peer:     peer,
		rooms:    make(map[string]struct{}),
	}
}

func (s *wsSession) trackRoom(key string) {
	s.mu.Lock()
	s.rooms[key] = struct{}{}
	s.mu.Unlock()
}

func (s *wsSession) joinedRooms() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.rooms))
	for key := range s.rooms {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	return keys
}
