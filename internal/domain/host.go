package domain

import "sync/atomic"

type HostID string

// Host is a media engine node with running stream counters.
type Host struct {
	ID HostID
	IP string

	audio atomic.Int64
	video atomic.Int64
}

func NewHost(id HostID, ip string) *Host {
	return &Host{ID: id, IP: ip}
}

func (h *Host) counter(kind MediaKind) *atomic.Int64 {
	switch kind {
	case MediaKindAudio:
		return &h.audio
	case MediaKindVideo, MediaKindContent:
		return &h.video
	}
	return nil
}

// AddStreams moves the counter of kind by delta and returns the new value.
func (h *Host) AddStreams(kind MediaKind, delta int64) int64 {
	c := h.counter(kind)
	if c == nil {
		return 0
	}
	return c.Add(delta)
}

func (h *Host) Streams(kind MediaKind) int64 {
	c := h.counter(kind)
	if c == nil {
		return 0
	}
	return c.Load()
}

func (h *Host) TotalStreams() int64 {
	return h.audio.Load() + h.video.Load()
}
