// Package selection tracks which captured shots fill the template slots.
package selection

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// Size is the number of photo slots a guest fills.
const Size = 4

const empty = -1

var (
	// ErrSelectionFull is returned when every slot is taken.
	ErrSelectionFull = errors.New("selection full")
	// ErrUnknownShot is returned for a shot index outside the shot set.
	ErrUnknownShot = errors.New("unknown shot")
)

// Selection maps slots to distinct shot indices.
type Selection struct {
	shots int
	slots [Size]int
}

// New creates an empty selection over a shot set of the given length.
func New(shots int) *Selection {
	s := &Selection{shots: shots}
	s.Clear()
	return s
}

// Clear empties every slot.
func (s *Selection) Clear() {
	for i := range s.slots {
		s.slots[i] = empty
	}
}

// Toggle removes shot from its slot if selected, otherwise places it in the
// first empty slot. It returns the affected slot and whether shot is now selected.
// A full selection is left untouched.
func (s *Selection) Toggle(shot int) (int, bool, error) {
	if shot < 0 || shot >= s.shots {
		return empty, false, fmt.Errorf("shot %d: %w", shot, ErrUnknownShot)
	}
	if slot := s.IndexOf(shot); slot != empty {
		s.slots[slot] = empty
		return slot, false, nil
	}
	for i, v := range s.slots {
		if v == empty {
			s.slots[i] = shot
			return i, true, nil
		}
	}
	return empty, false, ErrSelectionFull
}

// IndexOf returns the slot holding shot, or -1.
func (s *Selection) IndexOf(shot int) int {
	for i, v := range s.slots {
		if v == shot {
			return i
		}
	}
	return empty
}

// Count returns the number of filled slots.
func (s *Selection) Count() int {
	n := 0
	for _, v := range s.slots {
		if v != empty {
			n++
		}
	}
	return n
}

// Ready reports whether every slot is filled.
func (s *Selection) Ready() bool {
	return s.Count() == Size
}

// Slots returns the shot index per slot, -1 for empty slots.
func (s *Selection) Slots() [Size]int {
	return s.slots
}

// Frames resolves the slots against shots. Empty slots yield empty frames.
func (s *Selection) Frames(shots model.ShotSet) []model.Frame {
	out := make([]model.Frame, Size)
	for i, v := range s.slots {
		if v != empty && v < len(shots) {
			out[i] = shots[v]
		}
	}
	return out
}
