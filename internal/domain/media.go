package domain

import (
	"sync"

	"github.com/google/uuid"
)

type (
	MediaSessionID string
	MediaUnitID    string
	// ElementID names a transport element on the media engine.
	ElementID string
)

type MediaKind string

const (
	MediaKindAudio   MediaKind = "audio"
	MediaKindVideo   MediaKind = "video"
	MediaKindContent MediaKind = "content"
)

// Direction is the capability of a media unit for one kind.
// The zero value means the kind is absent.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionSendRecv Direction = "sendrecv"
	DirectionRecvOnly Direction = "recvonly"
	DirectionSendOnly Direction = "sendonly"
)

// CanSend reports whether the direction produces a stream.
func (d Direction) CanSend() bool {
	return d == DirectionSendRecv || d == DirectionSendOnly
}

// CanReceive reports whether the direction consumes a stream.
func (d Direction) CanReceive() bool {
	return d == DirectionSendRecv || d == DirectionRecvOnly
}

type TransportKind string

const (
	TransportWebRTC TransportKind = "WebRtcEndpoint"
	TransportRTP    TransportKind = "RtpEndpoint"
	TransportURI    TransportKind = "URI"
)

// Interactive reports whether the transport negotiates ICE.
func (t TransportKind) Interactive() bool {
	return t == TransportWebRTC
}

type MediaTypes struct {
	Audio   Direction `json:"audio,omitempty"`
	Video   Direction `json:"video,omitempty"`
	Content Direction `json:"content,omitempty"`
}

func (t MediaTypes) Of(kind MediaKind) Direction {
	switch kind {
	case MediaKindAudio:
		return t.Audio
	case MediaKindVideo:
		return t.Video
	case MediaKindContent:
		return t.Content
	}
	return DirectionNone
}

// MediaUnit is the atomic connectable endpoint. It holds at most one
// subscription to another unit; subscribing again replaces it.
type MediaUnit struct {
	ID             MediaUnitID
	Name           string
	UserID         UserID
	MediaSessionID MediaSessionID
	Element        ElementID
	Types          MediaTypes

	mu           sync.RWMutex
	subscribedTo MediaUnitID
}

func (m *MediaUnit) SubscribedTo() MediaUnitID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscribedTo
}

func (m *MediaUnit) SubscribeTo(id MediaUnitID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribedTo = id
}

func (m *MediaUnit) Unsubscribe() {
	m.SubscribeTo("")
}

// IsVideoSource: has video and it is not receive only.
func (m *MediaUnit) IsVideoSource() bool {
	return m.Types.Video != DirectionNone && m.Types.Video != DirectionRecvOnly
}

func (m *MediaUnit) CanReceiveVideo() bool {
	return m.Types.Video.CanReceive()
}

// MediaSession is one signaling leg of a user, grouping its media units.
type MediaSession struct {
	ID     MediaSessionID
	RoomID RoomID
	UserID UserID
	Name   string
	Type   TransportKind
	Medias []*MediaUnit
}

func NewMediaSession(roomID RoomID, userID UserID, name string, transport TransportKind) *MediaSession {
	return &MediaSession{
		ID:     MediaSessionID(uuid.NewString()),
		RoomID: roomID,
		UserID: userID,
		Name:   name,
		Type:   transport,
	}
}

// AddMedia creates a unit bound to element and appends it to the session.
func (s *MediaSession) AddMedia(element ElementID, types MediaTypes) *MediaUnit {
	m := &MediaUnit{
		ID:             MediaUnitID(uuid.NewString()),
		Name:           s.Name,
		UserID:         s.UserID,
		MediaSessionID: s.ID,
		Element:        element,
		Types:          types,
	}
	s.Medias = append(s.Medias, m)
	return m
}

// IsSourceOf reports whether any unit of the session sends kind.
func (s *MediaSession) IsSourceOf(kind MediaKind) bool {
	for _, m := range s.Medias {
		if m.Types.Of(kind).CanSend() {
			return true
		}
	}
	return false
}
