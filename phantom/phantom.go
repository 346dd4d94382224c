// Package phantom builds deterministic synthetic reconstruction problems:
// a smooth complex object, a focused probe with optional extra modes, and
// scan trajectories that keep the probe inside the object.
package phantom

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand"

	ptycho "github.com/cwbudde/algo-ptycho"
)

// goldenAngle is the angular increment of a Fermat spiral, π(3 − √5).
const goldenAngle = 2.399963229728653

// Trajectory selects how scan positions are laid out.
type Trajectory string

const (
	// Spiral lays positions on a Fermat spiral over the valid patch origins.
	Spiral Trajectory = "spiral"
	// Raster walks a snake raster, optionally jittered.
	Raster Trajectory = "raster"
)

// Options tune New. The zero value gives one probe mode of unit peak on a
// Fermat spiral.
type Options struct {
	Seed       int64
	Peak       float64 // probe peak amplitude, 0 means 1
	Modes      int     // probe modes used to simulate data, 0 means 1
	Trajectory Trajectory
	Jitter     float64 // raster jitter in pixels
}

// Phantom is a ground truth for one configuration.
type Phantom struct {
	Object ptycho.Field
	Probe  ptycho.Field
	// Modes holds the probe modes the data is simulated with. Modes[0] is
	// Probe.
	Modes []ptycho.Field
	Scan  ptycho.Scan
}

// New builds the ground truth for cfg.
func New(cfg ptycho.Config, opts Options) Phantom {
	peak := opts.Peak
	if peak == 0 {
		peak = 1
	}
	modes := max(opts.Modes, 1)

	p := Phantom{
		Object: ptycho.NewField(cfg.NumAngles, cfg.ObjectRows, cfg.ObjectCols),
		Probe:  ptycho.NewField(cfg.NumAngles, cfg.ProbeSize, cfg.ProbeSize),
		Scan:   ptycho.NewScan(cfg.NumAngles, cfg.NumScan),
	}
	for t := 0; t < cfg.NumAngles; t++ {
		copy(p.Object.Layer(t), Object(cfg.ObjectRows, cfg.ObjectCols, t))
		copy(p.Probe.Layer(t), Probe(cfg.ProbeSize, peak))
	}
	p.Modes = append(p.Modes, p.Probe)
	for m := 1; m < modes; m++ {
		f := ptycho.NewField(cfg.NumAngles, cfg.ProbeSize, cfg.ProbeSize)
		// Higher modes carry less power.
		layer := ProbeMode(cfg.ProbeSize, peak/float64(2*m), m)
		for t := 0; t < cfg.NumAngles; t++ {
			copy(f.Layer(t), layer)
		}
		p.Modes = append(p.Modes, f)
	}

	g := cfg.Geometry()
	switch opts.Trajectory {
	case Raster:
		RasterScan(p.Scan, g, rand.New(rand.NewSource(opts.Seed)), opts.Jitter)
	default:
		FermatSpiral(p.Scan, g)
	}
	return p
}

// Problem simulates noiseless data from the ground truth with op and
// returns a problem starting from a flat unit object. The initial probe is
// the true probe when cfg.RecoverProbe is false and InitialProbe otherwise.
func (p Phantom) Problem(ctx context.Context, op ptycho.DiffractionOperator, cfg ptycho.Config) (ptycho.Problem, error) {
	data, err := ptycho.SimulateIntensity(ctx, op, p.Object, p.Scan, p.Modes...)
	if err != nil {
		return ptycho.Problem{}, err
	}

	obj := ptycho.NewField(cfg.NumAngles, cfg.ObjectRows, cfg.ObjectCols)
	obj.Fill(1)

	prb := p.Probe.Clone()
	if cfg.RecoverProbe {
		peak := ptycho.PeakAmplitude(p.Probe)
		guess := InitialProbe(cfg.ProbeSize, peak)
		for t := 0; t < cfg.NumAngles; t++ {
			copy(prb.Layer(t), guess)
		}
	}
	return ptycho.Problem{Object: obj, Probe: prb, Scan: p.Scan, Data: data}, nil
}

// Object returns a smooth object layer with amplitude in [0.7, 1] and
// phase in [−0.6, 0.6]. Different angles give different layers.
func Object(rows, cols, angle int) []complex128 {
	out := make([]complex128, rows*cols)
	shift := 0.37 * float64(angle)
	cr, cc := 0.55*float64(rows), 0.4*float64(cols)
	rad := 0.18 * float64(min(rows, cols))

	for r := 0; r < rows; r++ {
		u := float64(r) / float64(rows)
		for c := 0; c < cols; c++ {
			v := float64(c) / float64(cols)
			amp := 0.85 + 0.15*math.Cos(2*math.Pi*(2*u+shift))*math.Cos(2*math.Pi*3*v)

			// disc with a soft edge
			d := math.Hypot(float64(r)-cr, float64(c)-cc)
			disc := 1 / (1 + math.Exp((d-rad)/1.5))

			ph := 0.4*math.Sin(2*math.Pi*(1.5*v+shift))*math.Sin(2*math.Pi*u) + 0.2*disc
			out[r*cols+c] = cmplx.Rect(amp, ph)
		}
	}
	return out
}

// Probe returns a Gaussian spot of peak amplitude peak with a quadratic
// phase, as produced by a slightly defocused lens.
func Probe(size int, peak float64) []complex128 {
	return gaussian(size, peak, float64(size)/5, 0.5)
}

// InitialProbe returns a wider flat-phase Gaussian used as the starting
// guess when the probe is recovered.
func InitialProbe(size int, peak float64) []complex128 {
	return gaussian(size, peak, float64(size)/4.5, 0)
}

func gaussian(size int, peak, sigma, curvature float64) []complex128 {
	out := make([]complex128, size*size)
	c := float64(size-1) / 2
	for r := 0; r < size; r++ {
		for col := 0; col < size; col++ {
			dy, dx := (float64(r)-c)/sigma, (float64(col)-c)/sigma
			rho2 := dx*dx + dy*dy
			out[r*size+col] = cmplx.Rect(peak*math.Exp(-rho2/2), curvature*rho2)
		}
	}
	return out
}

// ProbeMode returns the m-th Hermite-Gaussian-like mode along the columns,
// rescaled to peak amplitude peak. Mode 0 equals Probe.
func ProbeMode(size int, peak float64, m int) []complex128 {
	if m == 0 {
		return Probe(size, peak)
	}
	sigma := float64(size) / 5
	out := gaussian(size, 1, sigma, 0.5)
	c := float64(size-1) / 2
	top := 0.0
	for r := 0; r < size; r++ {
		for col := 0; col < size; col++ {
			w := math.Pow((float64(col)-c)/sigma, float64(m))
			out[r*size+col] *= complex(w, 0)
			top = math.Max(top, cmplx.Abs(out[r*size+col]))
		}
	}
	if top > 0 {
		for i := range out {
			out[i] *= complex(peak/top, 0)
		}
	}
	return out
}

// FermatSpiral fills s with a Fermat spiral per angle spanning the range of
// valid patch origins. Each angle is rotated against the previous one.
func FermatSpiral(s ptycho.Scan, g ptycho.Geometry) {
	ax := float64(g.ObjectCols-g.ProbeSize) / 2
	ay := float64(g.ObjectRows-g.ProbeSize) / 2
	n := float64(s.Positions)
	for t := 0; t < s.Angles; t++ {
		rot := 0.5 * float64(t)
		for j := 0; j < s.Positions; j++ {
			rho := math.Sqrt((float64(j) + 0.5) / n)
			th := float64(j)*goldenAngle + rot
			s.Set(t, j, ax+ax*rho*math.Cos(th), ay+ay*rho*math.Sin(th))
		}
	}
}

// RasterScan fills s with a snake raster covering the valid patch origins,
// displaced by uniform jitter of up to ±jitter pixels and clamped to the
// valid range.
func RasterScan(s ptycho.Scan, g ptycho.Geometry, rng *rand.Rand, jitter float64) {
	spanX := float64(g.ObjectCols - g.ProbeSize)
	spanY := float64(g.ObjectRows - g.ProbeSize)
	n := s.Positions

	var nx int
	switch {
	case spanY == 0:
		nx = n
	case spanX == 0:
		nx = 1
	default:
		nx = int(math.Ceil(math.Sqrt(float64(n) * spanX / spanY)))
	}
	nx = min(max(nx, 1), n)
	ny := (n + nx - 1) / nx

	stepX, stepY := 0.0, 0.0
	if nx > 1 {
		stepX = spanX / float64(nx-1)
	}
	if ny > 1 {
		stepY = spanY / float64(ny-1)
	}

	for t := 0; t < s.Angles; t++ {
		for j := 0; j < n; j++ {
			row, col := j/nx, j%nx
			if row%2 == 1 {
				col = nx - 1 - col
			}
			x := float64(col)*stepX + jitter*(2*rng.Float64()-1)
			y := float64(row)*stepY + jitter*(2*rng.Float64()-1)
			s.Set(t, j, clamp(x, spanX), clamp(y, spanY))
		}
	}
}

func clamp(v, hi float64) float64 {
	return math.Min(math.Max(v, 0), hi)
}

// Illuminated marks the object pixels of angle t whose accumulated probe
// intensity reaches frac of the maximum. Reconstructions are only
// meaningful there.
func Illuminated(g ptycho.Geometry, scan ptycho.Scan, prb []complex128, t int, frac float64) []bool {
	cov := make([]float64, g.ObjectRows*g.ObjectCols)
	p := g.ProbeSize
	for j := 0; j < scan.Positions; j++ {
		r0, c0, ok := g.PatchOrigin(scan, t, j)
		if !ok {
			continue
		}
		for r := 0; r < p; r++ {
			for c := 0; c < p; c++ {
				a := cmplx.Abs(prb[r*p+c])
				cov[(r0+r)*g.ObjectCols+c0+c] += a * a
			}
		}
	}

	top := 0.0
	for _, v := range cov {
		top = math.Max(top, v)
	}
	mask := make([]bool, len(cov))
	for i, v := range cov {
		mask[i] = top > 0 && v >= frac*top
	}
	return mask
}
