package core

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// Floor events are emitted after the lock is released.
type roomImpl struct {
	room      *domain.Room
	events    Emitter
	connector MediaConnector

	mu        sync.RWMutex
	users     map[domain.UserID]*domain.User
	userOrder []domain.UserID
	sessions  map[domain.MediaSessionID]*domain.MediaSession
	order     []domain.MediaSessionID

	conference domain.Floor
	content    domain.Floor
}

// NewRoomService builds a room. connector may be nil, in which case Connect
// only records subscriptions.
func NewRoomService(room *domain.Room, events Emitter, connector MediaConnector) RoomService {
	return &roomImpl{
		room:      room,
		events:    events,
		connector: connector,
		users:     make(map[domain.UserID]*domain.User),
		sessions:  make(map[domain.MediaSessionID]*domain.MediaSession),
	}
}

func (r *roomImpl) ID() domain.RoomID  { return r.room.ID }
func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) AddUser(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		r.userOrder = append(r.userOrder, u.ID)
	}
	r.users[u.ID] = u
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(u.ID)).Msg("user added")
}

func (r *roomImpl) User(uid domain.UserID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[uid]
	return u, ok
}

// RemoveUser drops the user and every media session it owns.
func (r *roomImpl) RemoveUser(uid domain.UserID) []*domain.MediaSession {
	var removed []*domain.MediaSession
	for _, ms := range r.UserMediaSessions(uid) {
		if s, ok := r.RemoveMediaSession(ms.ID); ok {
			removed = append(removed, s)
		}
	}
	r.mu.Lock()
	delete(r.users, uid)
	r.userOrder = slices.DeleteFunc(r.userOrder, func(id domain.UserID) bool { return id == uid })
	r.mu.Unlock()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Int("sessions", len(removed)).Msg("user removed")
	return removed
}

func (r *roomImpl) AddMediaSession(ms *domain.MediaSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[ms.UserID]; !ok {
		return fmt.Errorf("add media session %s: %w", ms.ID, ErrUserNotFound)
	}
	if _, ok := r.sessions[ms.ID]; !ok {
		r.order = append(r.order, ms.ID)
	}
	r.sessions[ms.ID] = ms
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(ms.ID)).Str("user", string(ms.UserID)).Msg("media session added")
	return nil
}

// RemoveMediaSession detaches the session from both floor slots and drops
// subscriptions pointing at its units.
func (r *roomImpl) RemoveMediaSession(id domain.MediaSessionID) (*domain.MediaSession, bool) {
	r.mu.Lock()
	ms, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.sessions, id)
	r.order = slices.DeleteFunc(r.order, func(s domain.MediaSessionID) bool { return s == id })

	gone := make(map[domain.MediaUnitID]struct{}, len(ms.Medias))
	for _, m := range ms.Medias {
		gone[m.ID] = struct{}{}
	}
	for _, s := range r.sessions {
		for _, m := range s.Medias {
			if _, hit := gone[m.SubscribedTo()]; hit {
				m.Unsubscribe()
			}
		}
	}

	var evs []Event
	if r.conference.Forget(id) {
		evs = append(evs, r.conferenceEventLocked())
	}
	if r.content.Forget(id) {
		evs = append(evs, r.contentEventLocked())
	}
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(id)).Msg("media session removed")
	r.emit(evs...)
	return ms, true
}

func (r *roomImpl) MediaSession(id domain.MediaSessionID) (*domain.MediaSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.sessions[id]
	return ms, ok
}

func (r *roomImpl) MediaSessions() []*domain.MediaSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.MediaSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

func (r *roomImpl) SourceMediaSessionsOfType(kind domain.MediaKind) []*domain.MediaSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.MediaSession
	for _, id := range r.order {
		if ms := r.sessions[id]; ms.IsSourceOf(kind) {
			out = append(out, ms)
		}
	}
	return out
}

func (r *roomImpl) UserMediaSessions(uid domain.UserID) []*domain.MediaSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.MediaSession
	for _, id := range r.order {
		if ms := r.sessions[id]; ms.UserID == uid {
			out = append(out, ms)
		}
	}
	return out
}

// Members lists users first, then media sessions, both in join order.
func (r *roomImpl) Members() []domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Member, 0, len(r.userOrder)+len(r.order))
	for _, uid := range r.userOrder {
		out = append(out, domain.NewUserMember(uid))
	}
	for _, id := range r.order {
		ms := r.sessions[id]
		out = append(out, domain.NewMediaSessionMember(ms.UserID, ms.ID))
	}
	return out
}

func (r *roomImpl) Connect(ctx context.Context, src, sink *domain.MediaUnit, kind domain.MediaKind) error {
	if r.connector != nil {
		if err := r.connector.Connect(ctx, src.Element, sink.Element, kind); err != nil {
			return fmt.Errorf("connect %s -> %s: %w", src.ID, sink.ID, err)
		}
	}
	sink.SubscribeTo(src.ID)
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("src", string(src.ID)).Str("sink", string(sink.ID)).Str("kind", string(kind)).Msg("connected")
	return nil
}

func (r *roomImpl) SetConferenceFloor(id domain.MediaSessionID) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("conference floor %s: %w", id, ErrMediaSessionNotFound)
	}
	var evs []Event
	if r.conference.Set(id) {
		evs = append(evs, r.conferenceEventLocked())
	}
	r.mu.Unlock()
	r.emit(evs...)
	return nil
}

func (r *roomImpl) ReleaseConferenceFloor(id domain.MediaSessionID) bool {
	r.mu.Lock()
	cur, ok := r.conference.Current()
	if !ok || cur != id {
		r.mu.Unlock()
		return false
	}
	r.conference.Clear()
	ev := r.conferenceEventLocked()
	r.mu.Unlock()
	r.emit(ev)
	return true
}

func (r *roomImpl) SetContentFloor(id domain.MediaSessionID) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("content floor %s: %w", id, ErrMediaSessionNotFound)
	}
	var evs []Event
	if r.content.Set(id) {
		evs = append(evs, r.contentEventLocked())
	}
	r.mu.Unlock()
	r.emit(evs...)
	return nil
}

func (r *roomImpl) ReleaseContentFloor(id domain.MediaSessionID) bool {
	r.mu.Lock()
	cur, ok := r.content.Current()
	if !ok || cur != id {
		r.mu.Unlock()
		return false
	}
	r.content.Clear()
	ev := r.contentEventLocked()
	r.mu.Unlock()
	r.emit(ev)
	return true
}

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := make(map[domain.UserID]int, len(r.users))
	for _, ms := range r.sessions {
		count[ms.UserID]++
	}
	out := make([]MemberDTO, 0, len(r.users))
	for _, uid := range r.userOrder {
		u := r.users[uid]
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username, Sessions: count[uid]})
	}
	return out
}

func (r *roomImpl) conferenceEventLocked() Event {
	cur, ok := r.conference.Current()
	return ConferenceFloorChanged{
		RoomID:        r.room.ID,
		Floor:         floorRef(cur, ok),
		PreviousFloor: floorRefs(r.conference.History()),
	}
}

func (r *roomImpl) contentEventLocked() Event {
	cur, ok := r.content.Current()
	return ContentFloorChanged{
		RoomID:        r.room.ID,
		Floor:         floorRef(cur, ok),
		PreviousFloor: floorRefs(r.content.History()),
	}
}

func (r *roomImpl) emit(evs ...Event) {
	if r.events == nil {
		return
	}
	for _, ev := range evs {
		r.events.Emit(ev)
	}
}
