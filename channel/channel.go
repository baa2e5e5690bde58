// Package channel holds the recorded trace of one channel together with its lifecycle state.
package channel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Count is the number of independent channel slots.
const Count = 3

// ID identifies one of the channel slots, 0 <= ID < Count.
type ID int

func (id ID) Valid() bool {
	return id >= 0 && id < Count
}

func (id ID) String() string {
	return fmt.Sprintf("ch%d", int(id))
}

// Sample is one point of a recorded trace.
type Sample struct {
	Time      float64
	Amplitude float64
}

type State int

const (
	Empty State = iota
	Loaded
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseError reports a row that does not fulfill the two numeric fields contract.
type ParseError struct {
	Row    int
	Column int
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("row %d: %v", e.Row+1, e.Err)
	}
	return fmt.Sprintf("row %d, column %d: cannot parse %q: %v", e.Row+1, e.Column+1, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var ErrFieldCount = errors.New("a row must have exactly 2 fields")

// Channel owns the samples of one slot. The samples are immutable once loaded, until Clear.
type Channel struct {
	id      ID
	samples []Sample
	state   State
	cursor  int
}

// New returns an empty channel.
func New(id ID) *Channel {
	return &Channel{id: id}
}

// Load parses the given rows into samples and replaces the content of the channel.
// Column 0 is the time, column 1 the amplitude. On error the channel stays untouched.
func (c *Channel) Load(rows [][]string) error {
	samples, err := ParseRows(rows)
	if err != nil {
		return err
	}

	c.Replace(samples)
	return nil
}

// Replace sets the given samples as new content of the channel. The channel takes
// ownership of the slice.
func (c *Channel) Replace(samples []Sample) {
	c.samples = samples
	c.state = Loaded
	c.cursor = 0
}

// ParseRows converts the given text rows into samples.
func ParseRows(rows [][]string) ([]Sample, error) {
	result := make([]Sample, 0, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, &ParseError{Row: i, Column: -1, Err: ErrFieldCount}
		}
		var values [2]float64
		for j, field := range row {
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, &ParseError{Row: i, Column: j, Value: field, Err: err}
			}
			values[j] = value
		}
		result = append(result, Sample{Time: values[0], Amplitude: values[1]})
	}
	return result, nil
}

// Clear empties the channel. Calling Clear on an empty channel is a no-op.
func (c *Channel) Clear() {
	c.samples = nil
	c.state = Empty
	c.cursor = 0
}

func (c *Channel) ID() ID {
	return c.id
}

func (c *Channel) State() State {
	return c.state
}

// SetState is used by the playback engine to drive the state machine.
func (c *Channel) SetState(state State) {
	c.state = state
}

func (c *Channel) HasData() bool {
	return len(c.samples) > 0
}

func (c *Channel) Len() int {
	return len(c.samples)
}

// Samples returns the full stored sequence. The caller must not modify it.
func (c *Channel) Samples() []Sample {
	return c.samples
}

func (c *Channel) Cursor() int {
	return c.cursor
}

// Advance moves the cursor forward by step samples, clamped to the number of samples.
// It returns the new cursor.
func (c *Channel) Advance(step int) int {
	c.cursor = min(c.cursor+step, len(c.samples))
	return c.cursor
}

// Revealed returns the prefix of the samples up to the cursor.
func (c *Channel) Revealed() []Sample {
	return c.samples[:c.cursor]
}

// Times returns a copy of the time column of the given samples.
func Times(samples []Sample) []float64 {
	result := make([]float64, len(samples))
	for i, s := range samples {
		result[i] = s.Time
	}
	return result
}

// Amplitudes returns a copy of the amplitude column of the given samples.
func Amplitudes(samples []Sample) []float64 {
	result := make([]float64, len(samples))
	for i, s := range samples {
		result[i] = s.Amplitude
	}
	return result
}

// Bounds returns the minimum and maximum of time and amplitude over the given samples.
// ok is false if there are no samples.
func Bounds(samples []Sample) (tMin, tMax, aMin, aMax float64, ok bool) {
	if len(samples) == 0 {
		return 0, 0, 0, 0, false
	}
	tMin, tMax = samples[0].Time, samples[0].Time
	aMin, aMax = samples[0].Amplitude, samples[0].Amplitude
	for _, s := range samples[1:] {
		tMin = min(tMin, s.Time)
		tMax = max(tMax, s.Time)
		aMin = min(aMin, s.Amplitude)
		aMax = max(aMax, s.Amplitude)
	}
	return tMin, tMax, aMin, aMax, true
}
