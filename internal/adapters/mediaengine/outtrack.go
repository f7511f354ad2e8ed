package mediaengine

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// OutTrack is the window track of one sink fed by a relay. Once dropped it
// is never written again; a new switch installs a fresh OutTrack.
type OutTrack struct {
	Track   *webrtc.TrackLocalStaticRTP
	dropped atomic.Bool
}

func NewOutTrack(track *webrtc.TrackLocalStaticRTP) *OutTrack {
	return &OutTrack{Track: track}
}

func (ot *OutTrack) Dropped() bool { return ot.dropped.Load() }
func (ot *OutTrack) Drop()         { ot.dropped.Store(true) }
