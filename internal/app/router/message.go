package router

import (
	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Kind is the closed set of routable signaling message kinds.
type Kind string

const (
	KindScreenshare Kind = "screenshare"
	KindVideo       Kind = "video"
	KindAudio       Kind = "audio"
)

// Kinds lists every routable kind. Adding a kind means adding it here.
var Kinds = []Kind{KindScreenshare, KindVideo, KindAudio}

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindScreenshare, KindVideo, KindAudio:
		return k, true
	}
	return "", false
}

// ToChannel is where requests of the kind go to the session managers.
func (k Kind) ToChannel() string { return "to-" + string(k) }

// FromChannel is where session managers answer.
func (k Kind) FromChannel() string { return "from-" + string(k) }

// Actions carried in Message.ID.
const (
	ActionStart          = "start"
	ActionOnIceCandidate = "onIceCandidate"
	ActionStop           = "stop"
	ActionFloor          = "floor"
	ActionReleaseFloor   = "releaseFloor"
	ActionClose          = "close"
	ActionStartResponse  = "startResponse"
	ActionIceCandidate   = "iceCandidate"
	ActionError          = "error"
)

// Roles of a screenshare or video request.
const (
	RolePresenter = "presenter"
	RoleViewer    = "viewer"
	RoleShare     = "share"
)

const (
	ResponseAccepted = "accepted"
	ResponseRejected = "rejected"
)

// Message is the single wire shape of requests and responses.
type Message struct {
	Type           Kind                     `json:"type"`
	ID             string                   `json:"id"`
	ConnectionID   string                   `json:"connectionId,omitempty"`
	RoomID         domain.RoomID            `json:"roomId,omitempty"`
	UserID         domain.UserID            `json:"userId,omitempty"`
	UserName       string                   `json:"userName,omitempty"`
	Role           string                   `json:"role,omitempty"`
	MediaSessionID domain.MediaSessionID    `json:"mediaSessionId,omitempty"`
	SDPOffer       string                   `json:"sdpOffer,omitempty"`
	SDPAnswer      string                   `json:"sdpAnswer,omitempty"`
	Candidate      *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Response       string                   `json:"response,omitempty"`
	Message        string                   `json:"message,omitempty"`
}
