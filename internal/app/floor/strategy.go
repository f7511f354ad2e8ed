package floor

import (
	"context"
	"errors"
	"slices"

	"github.com/dkeye/Conference/internal/domain"
	"github.com/rs/zerolog/log"
)

// RunStrategy recomputes the desired floor connections of the room from the
// current state and applies the missing ones. Concurrent callers are
// serialized.
func (e *Engine) RunStrategy(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	floors := e.floorList(e.snapshot())
	if len(floors) == 0 {
		return nil
	}
	return e.reviewMeetingFloors(ctx, floors)
}

// floorList picks the ordered floors of a run. An active content floor
// replaces everything else; the conference history stays in state for
// when content ends.
func (e *Engine) floorList(st state) []*domain.MediaSession {
	if st.content != nil {
		return []*domain.MediaSession{st.content}
	}

	fallback := filterByTransport(e.room.SourceMediaSessionsOfType(domain.MediaKindVideo))
	var current []*domain.MediaSession
	if st.conference != nil {
		current = []*domain.MediaSession{st.conference}
	}
	return AssembleFloorList(current, st.previousConference, fallback)
}

// AssembleFloorList concatenates the groups in priority order and keeps the
// first occurrence of every session id.
func AssembleFloorList(groups ...[]*domain.MediaSession) []*domain.MediaSession {
	seen := make(map[domain.MediaSessionID]struct{})
	var out []*domain.MediaSession
	for _, g := range groups {
		for _, ms := range g {
			if ms == nil {
				continue
			}
			if _, dup := seen[ms.ID]; dup {
				continue
			}
			seen[ms.ID] = struct{}{}
			out = append(out, ms)
		}
	}
	return out
}

// filterByTransport keeps sessions whose media can be switched: WebRTC and RTP.
func filterByTransport(sessions []*domain.MediaSession) []*domain.MediaSession {
	return slices.DeleteFunc(slices.Clone(sessions), func(ms *domain.MediaSession) bool {
		return ms.Type != domain.TransportWebRTC && ms.Type != domain.TransportRTP
	})
}

// floorMedias flattens the floors into their video source units.
func floorMedias(floors []*domain.MediaSession) []*domain.MediaUnit {
	var out []*domain.MediaUnit
	for _, ms := range floors {
		for _, m := range ms.Medias {
			if m.IsVideoSource() {
				out = append(out, m)
			}
		}
	}
	return out
}

func (e *Engine) reviewMeetingFloors(ctx context.Context, floors []*domain.MediaSession) error {
	var users []domain.UserID
	sinks := make(map[domain.UserID][]*domain.MediaUnit)
	for _, m := range e.room.Members() {
		if m.Type != domain.MemberMediaSession {
			continue
		}
		if _, ok := sinks[m.UserID]; !ok {
			users = append(users, m.UserID)
			sinks[m.UserID] = nil
		}
		if ms, ok := e.room.MediaSession(m.MediaSessionID); ok {
			sinks[m.UserID] = append(sinks[m.UserID], ms.Medias...)
		}
	}

	medias := floorMedias(floors)
	log.Debug().Str("module", "app.floor").Str("room", string(e.room.ID())).
		Int("floors", len(floors)).Int("floor_medias", len(medias)).Int("users", len(users)).Msg("review floors")

	var errs []error
	for _, uid := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.connectFloors(ctx, sinks[uid], slices.Clone(medias)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
