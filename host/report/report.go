// Package report renders a text summary of a simulation run.
package report

import (
	"io"
	"strconv"
	"time"

	pongo2 "github.com/flosch/pongo2/v5"

	"smoothstep/core"
	"smoothstep/host/sim"
)

const legTemplate = `motor {{ id }}
wiring {{ wiring }}, {{ spr }} steps/rev, {{ mode }}
{% for leg in legs %}leg {{ forloop.Counter }}: {{ leg.From }} -> {{ leg.To }}  {{ leg.Steps }} steps in {{ leg.Duration }}  peak {{ leg.Peak }} steps/ms{% if leg.Reversals %}  reversals {{ leg.Reversals }}{% endif %}
{% empty %}no motion
{% endfor %}total {{ steps }} steps, {{ elapsed }} simulated
`

var tpl = pongo2.Must(pongo2.FromString(legTemplate))

// Leg is the template view of sim.Leg.
type Leg struct {
	From, To  int64
	Steps     int
	Reversals int
	Duration  string
	Peak      string
}

// Write renders the run of s to w.
func Write(w io.Writer, s *sim.Simulator) error {
	cfg := s.Motor.Config()

	legs := make([]Leg, 0, len(s.Legs()))
	for _, l := range s.Legs() {
		legs = append(legs, Leg{
			From:      l.From,
			To:        l.To,
			Steps:     l.Steps,
			Reversals: l.Reversals,
			Duration:  l.Duration().Round(time.Millisecond).String(),
			Peak:      strconv.FormatFloat(l.PeakSpeed, 'f', 3, 64),
		})
	}

	return tpl.ExecuteWriter(pongo2.Context{
		"id":      s.Motor.ID(),
		"wiring":  cfg.Wiring.String(),
		"spr":     cfg.StepsPerRevolution,
		"mode":    mode(s.Motor.Params()),
		"legs":    legs,
		"steps":   len(s.Samples()),
		"elapsed": (time.Duration(s.Now()) * time.Microsecond).Round(time.Millisecond).String(),
	}, w)
}

func mode(p *core.KinematicParams) string {
	switch {
	case p == nil:
		return "unconfigured"
	case p.Smoothing:
		return "ramp " + strconv.FormatFloat(p.VMin, 'f', 4, 64) + "-" +
			strconv.FormatFloat(p.VMax, 'f', 4, 64) + " steps/ms over " +
			strconv.FormatFloat(p.RampMs, 'f', 0, 64) + "ms"
	}
	return "constant " + strconv.FormatFloat(p.VMin, 'f', 4, 64) + " steps/ms"
}
