package core

import (
	"context"
	"errors"

	"github.com/dkeye/Conference/internal/domain"
)

var (
	ErrMediaSessionNotFound = errors.New("media session not found")
	ErrUserNotFound         = errors.New("user not found")
)

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Sessions int           `json:"sessions"`
}

// RoomGraph is the read side of a room's user/media graph plus the single
// mutation a floor strategy needs.
type RoomGraph interface {
	ID() domain.RoomID
	MediaSession(id domain.MediaSessionID) (*domain.MediaSession, bool)
	// SourceMediaSessionsOfType returns sessions having a unit that sends kind.
	SourceMediaSessionsOfType(kind domain.MediaKind) []*domain.MediaSession
	UserMediaSessions(uid domain.UserID) []*domain.MediaSession
	Members() []domain.Member
	// Connect links src into sink and records the sink's subscription.
	Connect(ctx context.Context, src, sink *domain.MediaUnit, kind domain.MediaKind) error
}

// RoomService is the core-facing API of a room.
// It owns the media graph but never touches transport resources.
type RoomService interface {
	RoomGraph
	Room() *domain.Room

	AddUser(u *domain.User)
	User(uid domain.UserID) (*domain.User, bool)
	RemoveUser(uid domain.UserID) []*domain.MediaSession

	AddMediaSession(ms *domain.MediaSession) error
	RemoveMediaSession(id domain.MediaSessionID) (*domain.MediaSession, bool)
	MediaSessions() []*domain.MediaSession

	SetConferenceFloor(id domain.MediaSessionID) error
	SetContentFloor(id domain.MediaSessionID) error
	// Release*Floor moves the floor into its history, only if id holds it.
	ReleaseConferenceFloor(id domain.MediaSessionID) bool
	ReleaseContentFloor(id domain.MediaSessionID) bool

	MemberCount() int
	MembersSnapshot() []MemberDTO
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) (room RoomService, created bool)
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
