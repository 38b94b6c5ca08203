//go:build tinygo && baremetal

package hal

import (
	"machine"
	"time"
)

type boardDisplay struct{ fb Framebuffer }

func (d boardDisplay) Framebuffer() Framebuffer { return d.fb }

// msTicker counts milliseconds. A tick the kernel has not consumed yet is
// skipped; TickTo catches up from the sequence number.
type msTicker struct {
	ch  chan uint64
	now uint64
}

func startTicker() *msTicker {
	t := &msTicker{ch: make(chan uint64, 16)}
	go t.run()
	return t
}

func (t *msTicker) run() {
	tk := time.NewTicker(time.Millisecond)
	for range tk.C {
		t.now++
		select {
		case t.ch <- t.now:
		default:
		}
	}
}

func (t *msTicker) Ticks() <-chan uint64 { return t.ch }

// uartPort is both the log sink and the command console; log lines and
// replies share the wire.
type uartPort struct {
	uart *machine.UART
}

var crlf = []byte{'\r', '\n'}

func (p *uartPort) WriteLineString(s string) {
	p.uart.Write([]byte(s))
	p.uart.Write(crlf)
}

func (p *uartPort) WriteLineBytes(b []byte) {
	p.uart.Write(b)
	p.uart.Write(crlf)
}

// Read drains what the UART ring buffer already holds and never waits.
func (p *uartPort) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) && p.uart.Buffered() > 0 {
		c, err := p.uart.ReadByte()
		if err != nil {
			break
		}
		b[n] = c
		n++
	}
	return n, nil
}

func (p *uartPort) Write(b []byte) (int, error) { return p.uart.Write(b) }
