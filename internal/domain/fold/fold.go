// Package fold generates rolling-origin train/calibration/test windows over
// one entity's time-ordered rows.
package fold

import (
	"errors"
	"fmt"
)

// ErrInvalidLengths is returned for non-positive window lengths.
var ErrInvalidLengths = errors.New("window lengths must be positive")

// ErrInsufficientWindow marks an entity whose history is shorter than one
// full fold. It is informational: such an entity simply yields no folds.
var ErrInsufficientWindow = errors.New("history shorter than one fold")

// Window is a half-open row range [Start, End).
type Window struct {
	Start int
	End   int
}

// Len is the number of rows in the window.
func (w Window) Len() int { return w.End - w.Start }

// Shift offsets both ends by base.
func (w Window) Shift(base int) Window { return Window{Start: w.Start + base, End: w.End + base} }

func (w Window) String() string { return fmt.Sprintf("[%d,%d)", w.Start, w.End) }

// Lengths configures the three window sizes. The step between folds is Test.
type Lengths struct {
	Train int
	Cal   int
	Test  int
}

// Total is the number of rows one fold consumes.
func (l Lengths) Total() int { return l.Train + l.Cal + l.Test }

// Validate rejects non-positive lengths.
func (l Lengths) Validate() error {
	if l.Train <= 0 || l.Cal <= 0 || l.Test <= 0 {
		return fmt.Errorf("%w: train=%d cal=%d test=%d", ErrInvalidLengths, l.Train, l.Cal, l.Test)
	}
	return nil
}

// Fold is one rolling-origin split. Index is 1-based and windows are
// relative to the entity's first row.
type Fold struct {
	Entity string
	Index  int
	Train  Window
	Cal    Window
	Test   Window
}

// Splitter lazily walks the folds of one entity. It is restartable via Reset
// and not safe for concurrent use.
type Splitter struct {
	entity  string
	n       int
	lengths Lengths
	next    int // start offset of the next fold's train window
	index   int
}

// NewSplitter builds a splitter over n ordered rows.
func NewSplitter(entity string, n int, lengths Lengths) (*Splitter, error) {
	if err := lengths.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{entity: entity, n: n, lengths: lengths}, nil
}

// Next returns the next fold, or false once the remaining suffix is shorter
// than one full fold. Trailing partial windows are dropped.
func (s *Splitter) Next() (Fold, bool) {
	start := s.next
	if start+s.lengths.Total() > s.n {
		return Fold{}, false
	}
	trainEnd := start + s.lengths.Train
	calEnd := trainEnd + s.lengths.Cal
	s.index++
	s.next += s.lengths.Test
	return Fold{
		Entity: s.entity,
		Index:  s.index,
		Train:  Window{Start: start, End: trainEnd},
		Cal:    Window{Start: trainEnd, End: calEnd},
		Test:   Window{Start: calEnd, End: calEnd + s.lengths.Test},
	}, true
}

// Reset rewinds the splitter to the first fold.
func (s *Splitter) Reset() {
	s.next = 0
	s.index = 0
}

// Count is the total number of folds, independent of iteration state.
func (s *Splitter) Count() int {
	if s.n < s.lengths.Total() {
		return 0
	}
	return (s.n-s.lengths.Total())/s.lengths.Test + 1
}

// Sufficient returns ErrInsufficientWindow when the entity yields no folds.
func (s *Splitter) Sufficient() error {
	if s.Count() == 0 {
		return fmt.Errorf("%w: entity %q has %d rows, fold needs %d", ErrInsufficientWindow, s.entity, s.n, s.lengths.Total())
	}
	return nil
}

// All materializes every fold from the beginning without disturbing the
// iteration state.
func (s *Splitter) All() []Fold {
	c := &Splitter{entity: s.entity, n: s.n, lengths: s.lengths}
	out := make([]Fold, 0, c.Count())
	for f, ok := c.Next(); ok; f, ok = c.Next() {
		out = append(out, f)
	}
	return out
}
