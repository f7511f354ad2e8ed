package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what to do with a client whose outbound queue is full.
// dropped counts consecutive frames lost for that client.
type Policy interface {
	OnBackPressure(connID string, dropped int) BackpressureAction
}

// SimplePolicy drops frames until MaxDropped is reached, then kicks.
// A zero MaxDropped kicks on the first drop.
type SimplePolicy struct {
	MaxDropped int
}

func (p SimplePolicy) OnBackPressure(_ string, dropped int) BackpressureAction {
	if dropped >= p.MaxDropped {
		return KickMember
	}
	return DropFrame
}
