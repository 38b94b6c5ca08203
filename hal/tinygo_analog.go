//go:build tinygo && baremetal

package hal

import (
	"errors"
	"machine"
	"runtime"

	"tinyscope/scope/acquire"
)

// adcAnalog samples both inputs from a goroutine, interleaved, and reports
// completions the way the DMA handlers of the original board do: one
// OnComplete per channel per filled buffer.
type adcAnalog struct {
	in  [acquire.NumChannels]machine.ADC
	pot machine.ADC
}

func newADCAnalog(ch1, ch2, pot machine.Pin) *adcAnalog {
	machine.InitADC()
	a := &adcAnalog{
		in:  [acquire.NumChannels]machine.ADC{{Pin: ch1}, {Pin: ch2}},
		pot: machine.ADC{Pin: pot},
	}
	for i := range a.in {
		a.in[i].Configure(machine.ADCConfig{})
	}
	a.pot.Configure(machine.ADCConfig{})
	return a
}

// toSample scales a 16-bit machine.ADC reading to the 11-bit range.
func toSample(v uint16) acquire.Sample { return acquire.Sample(v >> 5) }

func (a *adcAnalog) Start(c *acquire.Capture) error {
	if c == nil {
		return errors.New("analog: nil capture")
	}
	go a.run(c)
	return nil
}

func (a *adcAnalog) run(c *acquire.Capture) {
	sets := [acquire.NumChannels]*acquire.BufferSet{c.Set(acquire.Ch1), c.Set(acquire.Ch2)}
	for {
		b1 := sets[acquire.Ch1].Active()
		b2 := sets[acquire.Ch2].Active()
		for i := range b1 {
			b1[i] = toSample(a.in[acquire.Ch1].Get())
			b2[i] = toSample(a.in[acquire.Ch2].Get())
		}
		c.OnComplete(acquire.Ch2)
		c.OnComplete(acquire.Ch1)
		runtime.Gosched()
	}
}

func (a *adcAnalog) Poll() {}

// Offset returns the pot reading for channel 1. The board has a single
// offset pot; channel 2 sits at a fixed offset.
func (a *adcAnalog) Offset(ch acquire.Channel) uint16 {
	switch ch {
	case acquire.Ch1:
		return uint16(toSample(a.pot.Get()))
	case acquire.Ch2:
		return ch2FixedOffset
	}
	return 0
}

const ch2FixedOffset = 300
