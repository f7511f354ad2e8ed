package floor

import (
	"context"
	"errors"
	"slices"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

// connectFloors pairs one user's receiving units with floor sources.
// The first pass offers as many floors as there are sinks; leftovers of both
// sides meet in a second pass. floors is consumed.
func (e *Engine) connectFloors(ctx context.Context, sinks, floors []*domain.MediaUnit) error {
	available := slices.DeleteFunc(slices.Clone(sinks), func(m *domain.MediaUnit) bool {
		return !m.CanReceiveVideo()
	})

	n := min(len(available), len(floors))
	inRange, rest := floors[:n], floors[n:]

	available, err := e.matchFloors(ctx, inRange, available)
	// A sink already showing one of the offered floors is served.
	available = slices.DeleteFunc(available, func(s *domain.MediaUnit) bool {
		return slices.ContainsFunc(inRange, func(f *domain.MediaUnit) bool { return s.SubscribedTo() == f.ID })
	})
	if len(available) > 0 && len(rest) > 0 {
		_, err2 := e.matchFloors(ctx, rest, available)
		err = errors.Join(err, err2)
	}
	return err
}

// matchFloors walks floors in order and connects each to the first sink that
// accepts it. A connected sink leaves the pool. It returns the sinks left.
func (e *Engine) matchFloors(ctx context.Context, floors, sinks []*domain.MediaUnit) ([]*domain.MediaUnit, error) {
	var errs []error
	for _, f := range floors {
		i := slices.IndexFunc(sinks, func(s *domain.MediaUnit) bool { return e.ShouldConnect(s, f) })
		if i < 0 {
			// Nothing left can take it: the last sink already has this floor.
			if len(sinks) <= 1 {
				break
			}
			continue
		}
		sink := sinks[i]
		sinks = slices.Delete(sinks, i, i+1)

		if err := e.room.Connect(ctx, f, sink, domain.MediaKindVideo); err != nil {
			connectsTotal.WithLabelValues("error").Inc()
			errs = append(errs, err)
			continue
		}
		connectsTotal.WithLabelValues("ok").Inc()
		log.Info().Str("module", "app.floor").Str("room", string(e.room.ID())).
			Str("floor", string(f.ID)).Str("sink", string(sink.ID)).Msg("connected floor")
	}
	return sinks, errors.Join(errs...)
}

// ShouldConnect reports whether floor should be connected into sink.
func (e *Engine) ShouldConnect(sink, floor *domain.MediaUnit) bool {
	return sink.SubscribedTo() != floor.ID &&
		sink.ID != floor.ID &&
		sink.MediaSessionID != floor.MediaSessionID &&
		!e.sinkUserHasSubscribedTo(sink, floor)
}

// sinkUserHasSubscribedTo checks every unit of the sink's user, across all
// of the user's sessions.
func (e *Engine) sinkUserHasSubscribedTo(sink, floor *domain.MediaUnit) bool {
	for _, ms := range e.room.UserMediaSessions(sink.UserID) {
		for _, m := range ms.Medias {
			if m.SubscribedTo() == floor.ID {
				return true
			}
		}
	}
	return false
}
