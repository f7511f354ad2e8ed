// Package negotiation drives the offer/answer and ICE exchange of one media
// unit against the media engine.
package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Conference/internal/core"
	"github.com/dkeye/Conference/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateCreated State = iota
	StateOfferSet
	StateProcessing
	StateAnswered
	StateIceGathering
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOfferSet:
		return "offer-set"
	case StateProcessing:
		return "processing"
	case StateAnswered:
		return "answered"
	case StateIceGathering:
		return "ice-gathering"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }

// HostLoad receives per-kind stream counts of live media units.
type HostLoad interface {
	IncrementHostStreams(id domain.HostID, kind domain.MediaKind)
}

type Config struct {
	Element   domain.ElementID
	Transport domain.TransportKind
	Host      *domain.Host
	Name      string
}

// Session is bound to one transport element. Process and AddIceCandidate
// never run concurrently on the same session.
type Session struct {
	engine core.MediaEngine
	load   HostLoad
	cfg    Config

	mu       sync.Mutex
	state    State
	offer    *Description
	answer   *Description
	hasVideo bool
	hasAudio bool
}

func New(engine core.MediaEngine, load HostLoad, cfg Config) *Session {
	return &Session{engine: engine, load: load, cfg: cfg}
}

// SetOffer parses and stores offer. An empty offer is ignored.
func (s *Session) SetOffer(offer string) error {
	if offer == "" {
		return nil
	}
	d, err := ParseDescription(offer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offer = d
	if s.state == StateCreated {
		s.state = StateOfferSet
	}
	return nil
}

func (s *Session) SetAnswer(answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAnswerLocked(answer)
}

func (s *Session) setAnswerLocked(answer string) error {
	if answer == "" {
		return nil
	}
	d, err := ParseDescription(answer)
	if err != nil {
		return err
	}
	s.answer = d
	return nil
}

// Process sends the offer to the engine and returns its answer. Interactive
// transports also gather candidates, after which the host load is counted.
func (s *Session) Process(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := log.With().Str("module", "app.negotiation").Str("element", string(s.cfg.Element)).Logger()

	if s.state.Terminal() || s.state == StateProcessing {
		return "", fmt.Errorf("process in state %s: %w", s.state, ErrInvalidState)
	}
	if s.offer == nil {
		return "", ErrNoOffer
	}
	if s.cfg.Host == nil {
		return "", ErrNoHost
	}
	s.state = StateProcessing

	answer, err := s.engine.ProcessOffer(ctx, s.cfg.Element, s.offer.String(), core.OfferOptions{Name: s.cfg.Name})
	if err != nil {
		return "", s.fail(&MediaEngineError{Op: "processOffer", Element: s.cfg.Element, Err: err})
	}
	if err := s.setAnswerLocked(answer); err != nil {
		return "", s.fail(err)
	}
	s.state = StateAnswered

	if answer != "" && !s.hasAvailableCodecLocked() {
		return "", s.fail(ErrNoAvailableCodec)
	}

	if !s.cfg.Transport.Interactive() {
		if err := s.offer.ReplaceServerIPv4(s.cfg.Host.IP); err != nil {
			return "", s.fail(err)
		}
		s.state = StateComplete
		l.Info().Str("transport", string(s.cfg.Transport)).Msg("negotiation complete")
		return answer, nil
	}

	s.state = StateIceGathering
	if err := s.engine.GatherCandidates(ctx, s.cfg.Element); err != nil {
		return "", s.fail(&MediaEngineError{Op: "gatherCandidates", Element: s.cfg.Element, Err: err})
	}
	s.updateHostLoadLocked()
	s.state = StateComplete

	l.Info().Bool("video", s.hasVideo).Bool("audio", s.hasAudio).Str("host", string(s.cfg.Host.ID)).Msg("negotiation complete")
	return answer, nil
}

func (s *Session) AddIceCandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.AddIceCandidate(ctx, s.cfg.Element, candidate); err != nil {
		return s.fail(&MediaEngineError{Op: "addIceCandidate", Element: s.cfg.Element, Err: err})
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) HasVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasVideo
}

func (s *Session) HasAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasAudio
}

func (s *Session) Element() domain.ElementID { return s.cfg.Element }

func (s *Session) Host() *domain.Host { return s.cfg.Host }

// Offer returns the offer text, rewritten for non-interactive transports
// once processed.
func (s *Session) Offer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offer == nil {
		return ""
	}
	return s.offer.String()
}

// MediaTypes reports what the offer advertises.
func (s *Session) MediaTypes() domain.MediaTypes {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offer == nil {
		return domain.MediaTypes{}
	}
	return s.offer.MediaTypes()
}

// hasAvailableCodecLocked: offer and answer agree per media class.
func (s *Session) hasAvailableCodecLocked() bool {
	if s.answer == nil {
		return true
	}
	return s.offer.HasAvailableCodec(domain.MediaKindVideo) == s.answer.HasAvailableCodec(domain.MediaKindVideo) &&
		s.offer.HasAvailableCodec(domain.MediaKindAudio) == s.answer.HasAvailableCodec(domain.MediaKindAudio)
}

func (s *Session) updateHostLoadLocked() {
	if s.offer.HasAvailableCodec(domain.MediaKindVideo) {
		s.load.IncrementHostStreams(s.cfg.Host.ID, domain.MediaKindVideo)
		s.hasVideo = true
	}
	if s.offer.HasAvailableCodec(domain.MediaKindAudio) {
		s.load.IncrementHostStreams(s.cfg.Host.ID, domain.MediaKindAudio)
		s.hasAudio = true
	}
}

func (s *Session) fail(err error) error {
	s.state = StateFailed
	log.Warn().Str("module", "app.negotiation").Str("element", string(s.cfg.Element)).Err(err).Msg("negotiation failed")
	return err
}
