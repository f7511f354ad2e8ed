package core

import (
	"context"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/webrtc/v4"
)

//go:generate mockgen -source=media_iface.go -destination=mocks/mock_media.go -package=mocks

type OfferOptions struct {
	Name string
}

// MediaEngine is the RPC surface of the external media engine used by
// negotiation. Every call may fail remotely.
type MediaEngine interface {
	ProcessOffer(ctx context.Context, el domain.ElementID, offer string, opts OfferOptions) (string, error)
	GatherCandidates(ctx context.Context, el domain.ElementID) error
	AddIceCandidate(ctx context.Context, el domain.ElementID, candidate webrtc.ICECandidateInit) error
}

// MediaConnector links a source element to a sink element.
type MediaConnector interface {
	Connect(ctx context.Context, src, sink domain.ElementID, kind domain.MediaKind) error
}

// MediaController is the full engine a session manager drives.
type MediaController interface {
	MediaEngine
	MediaConnector
	CreateElement(ctx context.Context, host domain.HostID, transport domain.TransportKind) (domain.ElementID, error)
	Release(ctx context.Context, el domain.ElementID) error
	// OnIceCandidate sets a callback for locally gathered candidates.
	OnIceCandidate(func(el domain.ElementID, candidate webrtc.ICECandidateInit))
}
