package negotiation

import (
	"errors"
	"fmt"

	"github.com/dkeye/Conference/internal/domain"
)

var (
	// ErrNoAvailableCodec means offer and answer disagree on whether audio
	// or video can flow. It is never retried.
	ErrNoAvailableCodec = errors.New("no available codec")
	ErrNoOffer          = errors.New("no offer set")
	ErrNoHost           = errors.New("no host assigned")
	ErrInvalidState     = errors.New("invalid negotiation state")
)

// MediaEngineError wraps a failed media engine call.
type MediaEngineError struct {
	Op      string
	Element domain.ElementID
	Err     error
}

func (e *MediaEngineError) Error() string {
	return fmt.Sprintf("media engine %s on %s: %v", e.Op, e.Element, e.Err)
}

func (e *MediaEngineError) Unwrap() error { return e.Err }
