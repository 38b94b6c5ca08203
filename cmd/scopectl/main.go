// Command scopectl drives a running tinyscope over its HTTP API.
//
//	scopectl [-addr URL]                 interactive console
//	scopectl [-addr URL] do LINE...      run one command
//	scopectl [-addr URL] watch [-n N]    print stream messages
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"tinyscope/scope/command"
	"tinyscope/services/stream"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "tinyscope API address")
	flag.Parse()

	log.SetPrefix("scopectl: ")
	log.SetFlags(0)

	c := newClient(*addr)
	args := flag.Args()

	var err error
	switch {
	case len(args) == 0:
		err = repl(c)
	case args[0] == "do":
		err = do(c, strings.Join(args[1:], " "), os.Stdout)
	case args[0] == "watch":
		err = watch(c, args[1:], os.Stdout)
	default:
		err = fmt.Errorf("unknown subcommand %q", args[0])
	}
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func do(c *client, line string, w io.Writer) error {
	resp, err := c.command(line)
	if resp.Reply != "" {
		fmt.Fprintln(w, resp.Reply)
	}
	return err
}

func watch(c *client, args []string, w io.Writer) error {
	fset := flag.NewFlagSet("watch", flag.ExitOnError)
	n := fset.Int("n", 0, "stop after N frames (0 = run until interrupted)")
	fset.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	frames := 0
	errDone := errors.New("done")
	err := c.watch(ctx, func(msg stream.Message) error {
		fmt.Fprintln(w, summary(msg))
		if msg.Type == stream.TypeFrame {
			frames++
			if *n > 0 && frames >= *n {
				return errDone
			}
		}
		return nil
	})
	if errors.Is(err, errDone) {
		return nil
	}
	return err
}

// completions lists every command in its canonical form; numeric commands
// end with a space ready for the argument.
func completions() []string {
	var out []string
	for k := command.ModeFree; k <= command.Stop; k++ {
		s := command.Command{Kind: k}.String()
		out = append(out, strings.TrimSuffix(s, "0"))
	}
	return out
}

func repl(c *client) error {
	if s, err := c.settings(); err == nil {
		fmt.Println(summary(stream.Message{Type: stream.TypeSettings, Settings: &s}))
	} else {
		log.Printf("%v", err)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	all := completions()
	ln.SetCompleter(func(line string) []string {
		var out []string
		for _, s := range all {
			if strings.HasPrefix(s, strings.ToLower(line)) {
				out = append(out, s)
			}
		}
		return out
	})

	history := filepath.Join(os.TempDir(), ".scopectl_history")
	if f, err := os.Open(history); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("tinyscope> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "show":
			s, err := c.settings()
			if err != nil {
				log.Printf("%v", err)
				continue
			}
			fmt.Println(summary(stream.Message{Type: stream.TypeSettings, Settings: &s}))
			ln.AppendHistory(line)
			continue
		}
		ln.AppendHistory(line)
		if err := do(c, line, os.Stdout); err != nil {
			log.Printf("%v", err)
		}
	}
}
