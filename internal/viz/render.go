// Package viz renders the two-link mechanism in the terminal: a frame
// renderer usable as a run observer, and an interactive live view. Both
// read simulation state passed to them and never mutate it.
package viz

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/pendubot/internal/dynamo"
	"github.com/san-kum/pendubot/internal/mech"
)

// Renderer draws one text frame per control step. It can capture frames
// to a movie file and the final frame to a snapshot file, written on
// Flush at the end of the run.
type Renderer struct {
	ev     mech.Evaluators
	reach  float64
	width  int
	height int

	moviePath    string
	snapshotPath string
	frames       []string
	last         string
}

type RenderOption func(*Renderer)

func WithMovie(path string) RenderOption {
	return func(r *Renderer) { r.moviePath = path }
}

func WithSnapshot(path string) RenderOption {
	return func(r *Renderer) { r.snapshotPath = path }
}

func WithSize(w, h int) RenderOption {
	return func(r *Renderer) { r.width, r.height = w, h }
}

func NewRenderer(ev mech.Evaluators, opts ...RenderOption) *Renderer {
	// Full reach is the tip height with both links pointed straight up.
	_, _, _, reach := ev.LinkEnds(math.Pi, 0)
	r := &Renderer{
		ev:     ev,
		reach:  math.Abs(reach),
		width:  64,
		height: 22,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reach == 0 {
		r.reach = 1
	}
	return r
}

func (r *Renderer) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 4 {
		return
	}
	tau := 0.0
	if len(u) > 0 {
		tau = u[0]
	}
	r.last = r.render(x, tau, t)
	if r.moviePath != "" {
		r.frames = append(r.frames, r.last)
	}
}

// Frame returns the most recently rendered frame.
func (r *Renderer) Frame() string { return r.last }

// Flush writes the captured movie and snapshot files, if requested.
func (r *Renderer) Flush() {
	if r.snapshotPath != "" && r.last != "" {
		os.WriteFile(r.snapshotPath, []byte(r.last), 0o644)
	}
	if r.moviePath != "" && len(r.frames) > 0 {
		var b strings.Builder
		for i, f := range r.frames {
			fmt.Fprintf(&b, "--- frame %d ---\n", i)
			b.WriteString(f)
		}
		os.WriteFile(r.moviePath, []byte(b.String()), 0o644)
	}
}

func (r *Renderer) render(x dynamo.State, tau, t float64) string {
	c := NewCanvas(r.width, r.height)
	drawArm(c, r.ev, r.reach, x[0], x[1])
	var b strings.Builder
	fmt.Fprintf(&b, " t=%6.2fs  q1=%6.3f  q2=%6.3f  tau=%6.2f\n", t, x[0], x[1], tau)
	b.WriteString(c.String())
	return b.String()
}

// drawArm draws both links on the canvas with the pivot at the center.
// Angles are measured from the downward vertical, so screen y grows
// downward with cos and x with sin. Horizontal cells are roughly half
// as wide as they are tall, hence the doubled x scale.
func drawArm(c *Canvas, ev mech.Evaluators, reach, q1, q2 float64) {
	x1, y1, x2, y2 := ev.LinkEnds(q1, q2)

	scaleY := float64(c.h-2) / (2 * reach)
	scaleX := 2 * scaleY
	px, py := c.w/2, c.h/2

	e1x := px + int(x1*scaleX)
	e1y := py - int(y1*scaleY)
	e2x := px + int(x2*scaleX)
	e2y := py - int(y2*scaleY)

	c.Line(px, py, e1x, e1y, '·')
	c.Line(e1x, e1y, e2x, e2y, '·')
	c.Set(px, py, '▼')
	c.Set(e1x, e1y, '●')
	c.Set(e2x, e2y, '⬤')
}
