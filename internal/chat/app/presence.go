package app

import (
	"sync"

	"github.com/kothaapp/kotha/internal/chat/domain"
)

// presenceRegistry tracks which identities are currently connected. Exactly
// one entry per identity; a second connection replaces the stored handle.
//
// Ghost-mode identities register like everyone else so internal activity
// checks keep working, but their online/offline broadcasts are suppressed.
type presenceRegistry struct {
	mu      sync.Mutex
	byUser  map[string]*wsPeer
	allConn map[*wsPeer]struct{}
}

func newPresenceRegistry() *presenceRegistry {
	return &presenceRegistry{
		byUser:  make(map[string]*wsPeer),
		allConn: make(map[*wsPeer]struct{}),
	}
}

// markOnline registers the connection and returns the peers to notify, or
// nil when the identity hides its presence.
func (p *presenceRegistry) markOnline(identity domain.Identity, peer *wsPeer) []*wsPeer {
	p.mu.Lock()
	p.byUser[identity.ID] = peer
	p.allConn[peer] = struct{}{}
	others := p.otherPeersLocked(peer)
	p.mu.Unlock()

	if identity.GhostMode {
		return nil
	}
	return others
}

// markOffline removes the connection. The identity only goes offline when
// the departing peer is still the registered handle; a replaced connection
// leaves the newer registration intact.
func (p *presenceRegistry) markOffline(identity domain.Identity, peer *wsPeer) []*wsPeer {
	p.mu.Lock()
	delete(p.allConn, peer)
	wentOffline := false
	if current, ok := p.byUser[identity.ID]; ok && current == peer {
		delete(p.byUser, identity.ID)
		wentOffline = true
	}
	others := p.otherPeersLocked(peer)
	p.mu.Unlock()

	if !wentOffline || identity.GhostMode {
		return nil
	}
	return others
}

func (p *presenceRegistry) isOnline(userID string) bool {
	p.mu.Lock()
	_, ok := p.byUser[userID]
	p.mu.Unlock()
	return ok
}

func (p *presenceRegistry) otherPeersLocked(exclude *wsPeer) []*wsPeer {
	others := make([]*wsPeer, 0, len(p.allConn))
	for conn := range p.allConn {
		if conn != exclude {
			others = append(others, conn)
		}
	}
	return others
}
