//go:build tinygo && baremetal

package hal

import (
	"machine"

	"tinyscope/scope/frame"
)

type boardHAL struct {
	port   *uartPort
	fb     Framebuffer
	t      *msTicker
	analog *adcAnalog
}

// New returns a Raspberry Pi Pico HAL.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
// Display: ILI9341 on SPI0 (GP18 SCK, GP19 SDO, GP17 CS, GP20 DC, GP21 RST).
// Inputs: channel 1 on GP26, channel 2 on GP27, offset pot on GP28.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	port := &uartPort{uart: uart}

	var fb Framebuffer
	lcd, err := newLCDFramebuffer(frame.Width, frame.Height)
	if err != nil {
		port.WriteLineString("hal: display: " + err.Error())
		fb = &stubFramebuffer{w: frame.Width, h: frame.Height, format: PixelFormatRGB565}
	} else {
		fb = lcd
	}

	return &boardHAL{
		port:   port,
		fb:     fb,
		t:      startTicker(),
		analog: newADCAnalog(machine.ADC0, machine.ADC1, machine.ADC2),
	}
}

func (h *boardHAL) Logger() Logger   { return h.port }
func (h *boardHAL) Display() Display { return boardDisplay{fb: h.fb} }
func (h *boardHAL) Time() Time       { return h.t }
func (h *boardHAL) Serial() Serial   { return h.port }
func (h *boardHAL) Analog() Analog   { return h.analog }

// Input is nil: the board is driven from the serial console.
func (h *boardHAL) Input() Input { return nil }
