package command

import (
	"errors"
	"testing"

	"tinyscope/scope/acquire"
	"tinyscope/scope/settings"
)

func feed(a *Assembler, s string) []string {
	var lines []string
	for i := 0; i < len(s); i++ {
		if line, ok := a.Feed(s[i]); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestAssemblerStripsWhitespace(t *testing.T) {
	var a Assembler
	got := feed(&a, "set xscale\t500\r\nstart\n")
	if len(got) != 2 || got[0] != "setxscale500" || got[1] != "start" {
		t.Fatalf("lines = %q", got)
	}
	if a.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", a.Pending())
	}
}

func TestAssemblerLineLimit(t *testing.T) {
	var a Assembler
	long := make([]byte, 60)
	for i := range long {
		long[i] = 'x'
	}
	got := feed(&a, string(long))
	if len(got) != 1 || len(got[0]) != LineLimit-1 {
		t.Fatalf("lines = %q", got)
	}
	if a.Pending() != 60-(LineLimit-1) {
		t.Fatalf("Pending() = %d", a.Pending())
	}
	a.Reset()
	if a.Pending() != 0 {
		t.Fatal("Reset() kept bytes")
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		line string
		want Command
	}{
		{"set mode free", Command{Kind: ModeFree}},
		{"SET MODE TRIGGER", Command{Kind: ModeTrigger}},
		{"set trigger_slope negative", Command{Kind: SlopeNegative}},
		{"settrigger_slopepositive", Command{Kind: SlopePositive}},
		{"set trigger_channel 2", Command{Kind: TriggerChannel2}},
		{"set xscale 500", Command{Kind: XScale, Arg: 500}},
		{"setyscale1500mV", Command{Kind: YScale, Arg: 1500}},
		{"set trigger_level 1650", Command{Kind: TriggerLevel, Arg: 1650}},
		{"set xscale abc", Command{Kind: XScale}},
		{"startnow", Command{Kind: Start}},
		{"Stop", Command{Kind: Stop}},
	} {
		got, err := Parse(tc.line)
		if err != nil || got != tc.want {
			t.Fatalf("Parse(%q) = %+v, %v, want %+v", tc.line, got, err, tc.want)
		}
	}
	if _, err := Parse("set frobnicate"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Parse() err = %v, want %v", err, ErrUnknownCommand)
	}
}

func TestCommandStringRoundTrip(t *testing.T) {
	for _, c := range []Command{
		{Kind: ModeFree}, {Kind: ModeTrigger}, {Kind: SlopeNegative},
		{Kind: TriggerChannel1}, {Kind: XScale, Arg: 200}, {Kind: TriggerLevel, Arg: 100},
		{Kind: Stop},
	} {
		got, err := Parse(c.String())
		if err != nil || got != c {
			t.Fatalf("Parse(%q) = %+v, %v", c.String(), got, err)
		}
	}
}

func TestExecuteReplies(t *testing.T) {
	st := settings.NewStore(settings.Defaults())
	p := NewProcessor(st)

	for _, tc := range []struct {
		line  string
		reply string
		err   error
	}{
		{"set mode trigger", "Mode set to trigger", nil},
		{"set trigger_slope negative", "Trigger slope set to negative", nil},
		{"set trigger_channel 2", "Trigger source set to channel 2", nil},
		{"set xscale 500", "set xscale to 500 us", nil},
		{"set xscale 50", "Invalid number to set xScale to", ErrOutOfRange},
		{"set yscale 2000", "set yscale to 2000 mV", nil},
		{"set yscale 2001", "Invalid number to set yScale to", ErrOutOfRange},
		{"set trigger_level 1650", "set trigger level to 1650 mV", nil},
		{"set trigger_level x", "Invalid number to set trigger level to", ErrOutOfRange},
		{"hello", ReplyInvalid, ErrUnknownCommand},
		{"start", "Started the scope", nil},
	} {
		reply, err := p.Execute(tc.line)
		if reply != tc.reply || !errors.Is(err, tc.err) {
			t.Fatalf("Execute(%q) = %q, %v, want %q, %v", tc.line, reply, err, tc.reply, tc.err)
		}
	}

	got := st.Get()
	want := settings.Scope{
		Running:        true,
		FreeRun:        false,
		Slope:          settings.Falling,
		TriggerChannel: acquire.Ch2,
		TriggerLevel:   1023,
		XScale:         500,
		YScale:         2000,
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

func TestRunningRefusesTriggerSetup(t *testing.T) {
	st := settings.NewStore(settings.Defaults())
	p := NewProcessor(st)
	if _, err := p.Execute("start"); err != nil {
		t.Fatal(err)
	}
	before := st.Get()

	for _, line := range []string{"set mode trigger", "set trigger_slope negative", "set trigger_level 500"} {
		reply, err := p.Execute(line)
		if reply != ReplyInvalid || !errors.Is(err, ErrBusy) {
			t.Fatalf("Execute(%q) = %q, %v, want refusal", line, reply, err)
		}
	}
	if st.Get() != before {
		t.Fatalf("refused commands changed settings: %+v", st.Get())
	}

	// Free-run, channel and scale changes stay available.
	for _, line := range []string{"set mode free", "set trigger_channel 2", "set xscale 100", "stop"} {
		if _, err := p.Execute(line); err != nil {
			t.Fatalf("Execute(%q) err = %v", line, err)
		}
	}
	if s := st.Get(); s.Running || s.XScale != 100 || s.TriggerChannel != acquire.Ch2 {
		t.Fatalf("settings = %+v", s)
	}
}
