// Package tonemap defines the HDR tone-mapping operator used when
// capturing ABGR16161616 framebuffers: an exposure multiplier followed
// by one of eight fixed tone curves.
//
// The operator executes on the GPU (see shader.go); the functions here
// are the CPU reference of the same math, kept in lockstep with
// shaders/tonemap.wgsl.
package tonemap

import (
	"fmt"
	"math"
)

// Curve selects one of the eight supported tone curves.
type Curve uint32

const (
	Reinhard Curve = iota
	ACESFast
	ACESHill
	ACESDay
	ACESFull
	Hable
	ReinhardExtended
	Uchimura

	curveCount
)

// DefaultCurve is ACES Hill, the curve recommended for general content.
const DefaultCurve = ACESHill

var curveNames = [curveCount]string{
	"Reinhard",
	"ACES Fast",
	"ACES Hill",
	"ACES Day",
	"ACES Full RRT",
	"Hable",
	"Reinhard Extended",
	"Uchimura",
}

func (c Curve) String() string {
	if c >= curveCount {
		return fmt.Sprintf("Curve(%d)", uint32(c))
	}
	return curveNames[c]
}

// Params are the call-scoped tone-mapping parameters. The struct layout
// matches the push-constant block in shaders/tonemap.wgsl.
type Params struct {
	Exposure float32
	Curve    Curve
}

// DefaultParams returns neutral exposure with the default curve.
func DefaultParams() Params {
	return Params{Exposure: 1.0, Curve: DefaultCurve}
}

// Validate rejects parameters before they enter the capture pipeline.
func (p Params) Validate() error {
	if !(p.Exposure > 0) {
		return fmt.Errorf("tonemap: exposure must be positive, got %v", p.Exposure)
	}
	if p.Curve >= curveCount {
		return fmt.Errorf("tonemap: curve %d out of range 0-%d", uint32(p.Curve), uint32(curveCount)-1)
	}
	return nil
}

// Apply maps one linear RGB pixel through exposure and the selected
// curve. Input channels are non-negative linear values (1.0 = SDR
// white); output channels are clamped to [0,1]. Pure and stateless.
func Apply(rgb [3]float32, p Params) [3]float32 {
	var out [3]float32
	switch p.Curve {
	case ACESHill, ACESFull:
		// Matrix curves operate on the color vector as a whole.
		v := [3]float32{rgb[0] * p.Exposure, rgb[1] * p.Exposure, rgb[2] * p.Exposure}
		if p.Curve == ACESFull {
			// The full RRT path adds the reference pre-exposure gain
			// before the fitted transform.
			for i := range v {
				v[i] *= 1.8
			}
		}
		out = acesHill(v)
	default:
		for i := 0; i < 3; i++ {
			out[i] = mapChannel(rgb[i]*p.Exposure, p.Curve)
		}
	}
	for i := range out {
		out[i] = clamp01(out[i])
	}
	return out
}

func mapChannel(x float32, curve Curve) float32 {
	switch curve {
	case Reinhard:
		return x / (1 + x)
	case ACESFast:
		// Narkowicz ACES approximation.
		return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
	case ACESDay:
		// Daylight-balanced approximation (Unreal fit).
		return x / (x + 0.155) * 1.019
	case Hable:
		const w = 11.2
		return hable(2*x) / hable(w)
	case ReinhardExtended:
		const white = 4.0
		return x * (1 + x/(white*white)) / (1 + x)
	case Uchimura:
		return uchimura(x)
	default:
		return x / (1 + x)
	}
}

// hable is the Uncharted 2 filmic operator of John Hable.
func hable(x float32) float32 {
	const (
		a = 0.15
		b = 0.50
		c = 0.10
		d = 0.20
		e = 0.02
		f = 0.30
	)
	return (x*(a*x+c*b)+d*e)/(x*(a*x+b)+d*f) - e/f
}

// uchimura is the Gran Turismo tone curve (Uchimura 2017) with its
// reference parameters: peak 1.0, contrast 1.0, linear start 0.22,
// linear length 0.4, black tightness 1.33.
func uchimura(x float32) float32 {
	const (
		maxBright = 1.0
		contrast  = 1.0
		start     = 0.22
		length    = 0.4
		black     = 1.33
	)
	l0 := float32((maxBright - start) * length / contrast)
	s0 := start + l0
	s1 := start + contrast*l0
	c2 := contrast * maxBright / (maxBright - s1)
	cp := -c2 / maxBright

	w0 := 1 - smoothstep(0, start, x)
	w2 := step(start+l0, x)
	w1 := 1 - w0 - w2

	toe := maxBright * powf(x/maxBright, black)
	linear := start + contrast*(x-start)
	shoulder := maxBright - (maxBright-s1)*expf(cp*(x-s0))

	return toe*w0 + linear*w1 + shoulder*w2
}

// acesHill is the Stephen Hill fit of the ACES RRT+ODT: input odt
// matrix, rational fit, output matrix.
func acesHill(v [3]float32) [3]float32 {
	in := mul3(acesInput, v)
	for i := range in {
		in[i] = rrtAndODTFit(in[i])
	}
	return mul3(acesOutput, in)
}

func rrtAndODTFit(v float32) float32 {
	a := v*(v+0.0245786) - 0.000090537
	b := v*(0.983729*v+0.4329510) + 0.238081
	return a / b
}

var acesInput = [9]float32{
	0.59719, 0.35458, 0.04823,
	0.07600, 0.90834, 0.01566,
	0.02840, 0.13383, 0.83777,
}

var acesOutput = [9]float32{
	1.60475, -0.53108, -0.07367,
	-0.10208, 1.10813, -0.00605,
	-0.00327, -0.07276, 1.07602,
}

func mul3(m [9]float32, v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

func smoothstep(edge0, edge1, x float32) float32 {
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func step(edge, x float32) float32 {
	if x < edge {
		return 0
	}
	return 1
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func powf(x, y float32) float32 { return float32(math.Pow(float64(x), float64(y))) }
func expf(x float32) float32    { return float32(math.Exp(float64(x))) }
