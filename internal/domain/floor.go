package domain

import "slices"

// Floor is one floor slot of a room. The history keeps previously designated
// sessions in first-insertion order, never holds duplicates and never holds
// the current value.
type Floor struct {
	current MediaSessionID
	history []MediaSessionID
}

func (f *Floor) Current() (MediaSessionID, bool) {
	return f.current, f.current != ""
}

func (f *Floor) History() []MediaSessionID {
	return slices.Clone(f.history)
}

// Set designates id as the floor. It reports false if id already holds it.
func (f *Floor) Set(id MediaSessionID) bool {
	if id == "" || id == f.current {
		return false
	}
	f.retire()
	f.history = slices.DeleteFunc(f.history, func(h MediaSessionID) bool { return h == id })
	f.current = id
	return true
}

// Clear moves the current floor, if any, into the history.
func (f *Floor) Clear() bool {
	if f.current == "" {
		return false
	}
	f.retire()
	f.current = ""
	return true
}

// Forget drops id from the slot entirely, e.g. when its session ends.
// It reports whether the current floor was affected.
func (f *Floor) Forget(id MediaSessionID) bool {
	f.history = slices.DeleteFunc(f.history, func(h MediaSessionID) bool { return h == id })
	if f.current == id && id != "" {
		f.current = ""
		return true
	}
	return false
}

func (f *Floor) retire() {
	if f.current == "" || slices.Contains(f.history, f.current) {
		return
	}
	f.history = append(f.history, f.current)
}
