package hal

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"tinyscope/scope/acquire"
	"tinyscope/scope/measure"
	"tinyscope/scope/settings"
)

// Shape is the waveform of a simulated input.
type Shape uint8

const (
	ShapeSine Shape = iota
	ShapeSquare
	ShapeTriangle
	ShapeDC
)

func (s Shape) String() string {
	switch s {
	case ShapeSine:
		return "sine"
	case ShapeSquare:
		return "square"
	case ShapeTriangle:
		return "triangle"
	case ShapeDC:
		return "dc"
	default:
		return "unknown"
	}
}

// ParseShape accepts the names returned by Shape.String.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "":
		return ShapeSine, nil
	case "square":
		return ShapeSquare, nil
	case "triangle":
		return ShapeTriangle, nil
	case "dc":
		return ShapeDC, nil
	}
	return 0, fmt.Errorf("unknown signal shape %q", name)
}

// UnmarshalText lets Shape be read from YAML and environment values.
func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Signal describes one simulated analog input. Voltages are millivolts at
// the converter pin, where 0..3300 mV maps to 0..acquire.MaxValue.
type Signal struct {
	Shape       Shape   `yaml:"shape"`
	FreqHz      float64 `yaml:"freq_hz"`
	AmplitudeMV int     `yaml:"amplitude_mv"`
	OffsetMV    int     `yaml:"offset_mv"`
	NoiseMV     int     `yaml:"noise_mv"`
}

// Generator produces a continuous sample stream for a Signal at the
// converter's sampling rate. Consecutive Fill calls continue where the
// previous one stopped.
type Generator struct {
	sig Signal
	n   uint64
	rng *rand.Rand
}

// NewGenerator returns a generator for sig. seed fixes the noise sequence.
func NewGenerator(sig Signal, seed int64) *Generator {
	return &Generator{sig: sig, rng: rand.New(rand.NewSource(seed))}
}

// Signal returns the generated signal description.
func (g *Generator) Signal() Signal { return g.sig }

// Fill writes the next len(buf) samples.
func (g *Generator) Fill(buf []acquire.Sample) {
	for i := range buf {
		buf[i] = g.next()
	}
}

func (g *Generator) next() acquire.Sample {
	t := float64(g.n) / measure.SamplingRate
	g.n++

	phase := math.Mod(t*g.sig.FreqHz, 1)
	var w float64
	switch g.sig.Shape {
	case ShapeSine:
		w = math.Sin(2 * math.Pi * phase)
	case ShapeSquare:
		w = 1
		if phase >= 0.5 {
			w = -1
		}
	case ShapeTriangle:
		w = 4*math.Abs(phase-0.5) - 1
	case ShapeDC:
		w = 0
	}

	mv := float64(g.sig.OffsetMV) + float64(g.sig.AmplitudeMV)*w
	if g.sig.NoiseMV > 0 {
		mv += float64(g.rng.Intn(2*g.sig.NoiseMV+1) - g.sig.NoiseMV)
	}
	return SampleFromMillivolts(mv)
}

// SampleFromMillivolts quantises a pin voltage the way the converter does.
// Voltages outside 0..3300 mV come back with the overrange marker.
func SampleFromMillivolts(mv float64) acquire.Sample {
	counts := math.Round(mv * float64(acquire.MaxValue) / settings.FullScaleMillivolts)
	if counts < 0 || counts > float64(acquire.MaxValue) {
		return acquire.Overrange
	}
	return acquire.Sample(counts)
}
