package app

import (
	"sync"

	"github.com/dkeye/Conference/internal/app/negotiation"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Leg is one started media session as the session manager sees it: the
// signaling connection that asked for it, its negotiation and the element
// backing it.
type Leg struct {
	Kind         string
	Role         string
	ConnectionID string
	RoomID       domain.RoomID
	UserID       domain.UserID
	Session      *domain.MediaSession
	Negotiation  *negotiation.Session

	mu       sync.Mutex
	answered bool
	pending  []webrtc.ICECandidateInit
}

func (l *Leg) Element() domain.ElementID { return l.Negotiation.Element() }

// HoldCandidate queues c until the answer is out. It reports false once the
// leg is answered and the caller should deliver c itself.
func (l *Leg) HoldCandidate(c webrtc.ICECandidateInit) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.answered {
		return false
	}
	l.pending = append(l.pending, c)
	return true
}

// MarkAnswered flips the leg to answered and hands back the held candidates.
func (l *Leg) MarkAnswered() []webrtc.ICECandidateInit {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.answered = true
	out := l.pending
	l.pending = nil
	return out
}

type connKey struct {
	conn string
	kind string
}

// Registry indexes live legs by media session, element and connection.
type Registry struct {
	mu        sync.RWMutex
	legs      map[domain.MediaSessionID]*Leg
	byElement map[domain.ElementID]*Leg
	byConn    map[connKey][]*Leg
}

func NewRegistry() *Registry {
	return &Registry{
		legs:      make(map[domain.MediaSessionID]*Leg),
		byElement: make(map[domain.ElementID]*Leg),
		byConn:    make(map[connKey][]*Leg),
	}
}

func (r *Registry) Bind(l *Leg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.legs[l.Session.ID] = l
	r.byElement[l.Element()] = l
	k := connKey{l.ConnectionID, l.Kind}
	r.byConn[k] = append(r.byConn[k], l)
	log.Info().Str("module", "app.registry").
		Str("sid", string(l.Session.ID)).
		Str("conn", l.ConnectionID).
		Str("room", string(l.RoomID)).
		Msg("bound leg")
}

func (r *Registry) Get(id domain.MediaSessionID) (*Leg, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.legs[id]
	return l, ok
}

func (r *Registry) ByElement(el domain.ElementID) (*Leg, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byElement[el]
	return l, ok
}

// Latest returns the most recently bound leg of a connection for kind.
func (r *Registry) Latest(conn, kind string) (*Leg, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls := r.byConn[connKey{conn, kind}]
	if len(ls) == 0 {
		return nil, false
	}
	return ls[len(ls)-1], true
}

func (r *Registry) ByConnection(conn, kind string) []*Leg {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Leg(nil), r.byConn[connKey{conn, kind}]...)
}

func (r *Registry) All() []*Leg {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Leg, 0, len(r.legs))
	for _, l := range r.legs {
		out = append(out, l)
	}
	return out
}

func (r *Registry) Unbind(id domain.MediaSessionID) (*Leg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.legs[id]
	if !ok {
		return nil, false
	}
	delete(r.legs, id)
	delete(r.byElement, l.Element())
	k := connKey{l.ConnectionID, l.Kind}
	ls := r.byConn[k]
	for i, x := range ls {
		if x == l {
			ls = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(ls) == 0 {
		delete(r.byConn, k)
	} else {
		r.byConn[k] = ls
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unbind leg")
	return l, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.legs)
}
