package core

import "github.com/dkeye/Conference/internal/domain"

// EventKind is the closed set of room events.
type EventKind int

const (
	KindConferenceFloorChanged EventKind = iota + 1
	KindContentFloorChanged
	KindMediaConnected
	KindMediaDisconnected
)

func (k EventKind) String() string {
	switch k {
	case KindConferenceFloorChanged:
		return "ConferenceFloorChanged"
	case KindContentFloorChanged:
		return "ContentFloorChanged"
	case KindMediaConnected:
		return "MediaConnected"
	case KindMediaDisconnected:
		return "MediaDisconnected"
	}
	return "Unknown"
}

// Event is implemented only by the event types of this package.
type Event interface {
	Kind() EventKind
	isEvent()
}

type FloorRef struct {
	MediaSessionID domain.MediaSessionID `json:"mediaSessionId"`
}

type ConferenceFloorChanged struct {
	RoomID        domain.RoomID `json:"roomId"`
	Floor         *FloorRef     `json:"floor,omitempty"`
	PreviousFloor []FloorRef    `json:"previousFloor,omitempty"`
}

type ContentFloorChanged struct {
	RoomID        domain.RoomID `json:"roomId"`
	Floor         *FloorRef     `json:"floor,omitempty"`
	PreviousFloor []FloorRef    `json:"previousFloor,omitempty"`
}

type MediaConnected struct {
	RoomID         domain.RoomID         `json:"roomId"`
	MediaSessionID domain.MediaSessionID `json:"mediaSessionId"`
}

type MediaDisconnected struct {
	RoomID         domain.RoomID         `json:"roomId"`
	MediaSessionID domain.MediaSessionID `json:"mediaSessionId"`
}

func (ConferenceFloorChanged) Kind() EventKind { return KindConferenceFloorChanged }
func (ContentFloorChanged) Kind() EventKind    { return KindContentFloorChanged }
func (MediaConnected) Kind() EventKind         { return KindMediaConnected }
func (MediaDisconnected) Kind() EventKind      { return KindMediaDisconnected }

func (ConferenceFloorChanged) isEvent() {}
func (ContentFloorChanged) isEvent()    {}
func (MediaConnected) isEvent()         {}
func (MediaDisconnected) isEvent()      {}

func floorRefs(ids []domain.MediaSessionID) []FloorRef {
	out := make([]FloorRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, FloorRef{MediaSessionID: id})
	}
	return out
}

func floorRef(id domain.MediaSessionID, ok bool) *FloorRef {
	if !ok {
		return nil
	}
	return &FloorRef{MediaSessionID: id}
}
