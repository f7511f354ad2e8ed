// Package balancer tracks media engine hosts and their stream load.
package balancer

import (
	"errors"
	"sync"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var ErrNoHosts = errors.New("no media hosts registered")

var hostStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "conference",
	Name:      "host_streams",
	Help:      "Active streams per media host and kind.",
}, []string{"host", "kind"})

type Balancer struct {
	mu    sync.RWMutex
	hosts map[domain.HostID]*domain.Host
	order []domain.HostID
}

func New(hosts ...*domain.Host) *Balancer {
	b := &Balancer{hosts: make(map[domain.HostID]*domain.Host)}
	for _, h := range hosts {
		b.AddHost(h)
	}
	return b
}

func (b *Balancer) AddHost(h *domain.Host) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.hosts[h.ID]; !ok {
		b.order = append(b.order, h.ID)
	}
	b.hosts[h.ID] = h
	log.Info().Str("module", "app.balancer").Str("host", string(h.ID)).Str("ip", h.IP).Msg("host registered")
}

func (b *Balancer) Host(id domain.HostID) (*domain.Host, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.hosts[id]
	return h, ok
}

// PickHost returns the host carrying the fewest streams. Ties go to the
// host registered first.
func (b *Balancer) PickHost() (*domain.Host, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var best *domain.Host
	for _, id := range b.order {
		h := b.hosts[id]
		if best == nil || h.TotalStreams() < best.TotalStreams() {
			best = h
		}
	}
	if best == nil {
		return nil, ErrNoHosts
	}
	return best, nil
}

func (b *Balancer) IncrementHostStreams(id domain.HostID, kind domain.MediaKind) {
	h, ok := b.Host(id)
	if !ok {
		log.Warn().Str("module", "app.balancer").Str("host", string(id)).Msg("increment on unknown host")
		return
	}
	n := h.AddStreams(kind, 1)
	hostStreams.WithLabelValues(string(id), string(kind)).Set(float64(n))
}

// DecrementHostStreams never takes a counter below zero.
func (b *Balancer) DecrementHostStreams(id domain.HostID, kind domain.MediaKind) {
	h, ok := b.Host(id)
	if !ok {
		return
	}
	n := h.AddStreams(kind, -1)
	if n < 0 {
		n = h.AddStreams(kind, 1)
	}
	hostStreams.WithLabelValues(string(id), string(kind)).Set(float64(n))
}
