package outputs

import (
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"smoothstep/core"
)

const consumer = "smoothstep"

// lineSet is the part of *gpiocdev.Lines the sink uses.
type lineSet interface {
	SetValues(values []int) error
	Close() error
}

type lineGroup struct {
	lines  lineSet
	pins   []core.GPIOPin
	values []int
}

type lineRef struct {
	group *lineGroup
	index int
}

// CdevSink drives lines through the Linux GPIO character device. Each motor
// gets one line request, so a whole phase pattern is a single ioctl.
type CdevSink struct {
	chip    string
	request func(offsets []int) (lineSet, error)

	claims core.PinClaims

	mu     sync.RWMutex
	groups []*lineGroup
	refs   map[core.GPIOPin]lineRef
}

// NewCdev returns a sink on chip. Lines are requested as motors claim them.
func NewCdev(chip string) *CdevSink {
	if chip == "" {
		chip = "gpiochip0"
	}
	s := &CdevSink{
		chip: chip,
		refs: make(map[core.GPIOPin]lineRef),
	}
	s.request = func(offsets []int) (lineSet, error) {
		return gpiocdev.RequestLines(s.chip, offsets,
			gpiocdev.AsOutput(make([]int, len(offsets))...),
			gpiocdev.WithConsumer(consumer))
	}
	return s
}

func (s *CdevSink) ConfigureOutput(pin core.GPIOPin) error {
	return s.ConfigureOutputs([]core.GPIOPin{pin})
}

// ConfigureOutputs requests all pins as one group, driven low.
func (s *CdevSink) ConfigureOutputs(pins []core.GPIOPin) error {
	if err := s.claims.Claim(pins...); err != nil {
		return err
	}

	offsets := make([]int, len(pins))
	for i, pin := range pins {
		offsets[i] = int(pin)
	}
	lines, err := s.request(offsets)
	if err != nil {
		s.claims.Release(pins...)
		return err
	}

	g := &lineGroup{
		lines:  lines,
		pins:   append([]core.GPIOPin(nil), pins...),
		values: make([]int, len(pins)),
	}

	s.mu.Lock()
	s.groups = append(s.groups, g)
	for i, pin := range pins {
		s.refs[pin] = lineRef{group: g, index: i}
	}
	s.mu.Unlock()
	return nil
}

func (s *CdevSink) SetPin(pin core.GPIOPin, value bool) error {
	ref, ok := s.lookup(pin)
	if !ok {
		return &core.PinError{Pin: pin, Err: ErrNoSuchPin}
	}
	ref.group.values[ref.index] = level(value)
	return ref.group.lines.SetValues(ref.group.values)
}

// WritePattern sets every pin of a group in one request.
func (s *CdevSink) WritePattern(pins []core.GPIOPin, levels []bool) error {
	if len(pins) == 0 {
		return nil
	}
	first, ok := s.lookup(pins[0])
	if !ok {
		return &core.PinError{Pin: pins[0], Err: ErrNoSuchPin}
	}
	g := first.group
	for i, pin := range pins {
		ref, ok := s.lookup(pin)
		if !ok {
			return &core.PinError{Pin: pin, Err: ErrNoSuchPin}
		}
		if ref.group != g {
			// spans requests; fall back to one write per pin
			for j := range pins {
				if err := s.SetPin(pins[j], levels[j]); err != nil {
					return err
				}
			}
			return nil
		}
		g.values[ref.index] = level(levels[i])
	}
	return g.lines.SetValues(g.values)
}

func (s *CdevSink) lookup(pin core.GPIOPin) (lineRef, bool) {
	s.mu.RLock()
	ref, ok := s.refs[pin]
	s.mu.RUnlock()
	return ref, ok
}

// Close drives every line low and releases the requests.
func (s *CdevSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, g := range s.groups {
		for i := range g.values {
			g.values[i] = 0
		}
		err = multierr.Append(err, g.lines.SetValues(g.values))
		err = multierr.Append(err, g.lines.Close())
		s.claims.Release(g.pins...)
	}
	s.groups = nil
	s.refs = make(map[core.GPIOPin]lineRef)
	return err
}
