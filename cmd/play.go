package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ml-under-the-hood/traceplay/playback"
	"github.com/ml-under-the-hood/traceplay/playback/adapter"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

var (
	tracePath   string // Saved trace to replay
	familyName  string // Trace family, inferred from the trace when empty
	playScript  string // Comma-separated navigation commands
	playJSON    bool   // Emit frames as JSON lines
	interactive bool   // Read navigation commands from stdin
)

// Navigation operations accepted by play.
const (
	opNext     = "next"
	opPrevious = "prev"
	opFirst    = "first"
	opLast     = "last"
	opGoTo     = "goto"
	opReset    = "reset"
	opQuit     = "quit"
)

var opAliases = map[string]string{
	"n": opNext, "next": opNext,
	"p": opPrevious, "prev": opPrevious, "previous": opPrevious,
	"f": opFirst, "first": opFirst,
	"l": opLast, "last": opLast,
	"g": opGoTo, "goto": opGoTo,
	"r": opReset, "reset": opReset,
	"q": opQuit, "quit": opQuit,
}

// playCommand is one navigation step, e.g. "next" or "goto 3".
type playCommand struct {
	op  string
	arg int
}

func parsePlayCommand(s string) (playCommand, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return playCommand{}, fmt.Errorf("empty command")
	}
	op, ok := opAliases[fields[0]]
	if !ok {
		return playCommand{}, fmt.Errorf("unknown command %q", fields[0])
	}
	if op != opGoTo {
		if len(fields) > 1 {
			return playCommand{}, fmt.Errorf("%s takes no argument", op)
		}
		return playCommand{op: op}, nil
	}
	if len(fields) != 2 {
		return playCommand{}, fmt.Errorf("goto needs one integer position")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return playCommand{}, fmt.Errorf("goto position %q: %w", fields[1], err)
	}
	return playCommand{op: opGoTo, arg: n}, nil
}

// parseScript splits a comma-separated script such as "next,next,goto 3,last".
func parseScript(script string) ([]playCommand, error) {
	var cmds []playCommand
	for _, part := range strings.Split(script, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pc, err := parsePlayCommand(part)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, pc)
	}
	return cmds, nil
}

// apply runs the command against c and reports whether playback should stop.
func (pc playCommand) apply(c *playback.Controller) bool {
	switch pc.op {
	case opNext:
		c.Next()
	case opPrevious:
		c.Previous()
	case opFirst:
		c.First()
	case opLast:
		c.Last()
	case opGoTo:
		c.GoTo(pc.arg)
	case opReset:
		c.ResetPosition()
	case opQuit:
		return true
	}
	return false
}

// player drives a session and writes one frame after every command.
type player struct {
	session *playback.Session
	family  *trace.Family
	out     io.Writer
	asJSON  bool
}

func (p *player) emit() error {
	f, err := adapter.BuildFrame(p.session.View(), p.family)
	if err != nil {
		return err
	}
	if p.asJSON {
		return json.NewEncoder(p.out).Encode(f)
	}
	_, err = fmt.Fprintln(p.out, formatFrame(f))
	return err
}

// run emits the initial frame and then one frame per command.
func (p *player) run(cmds []playCommand) error {
	if err := p.emit(); err != nil {
		return err
	}
	for _, pc := range cmds {
		var quit bool
		p.session.Navigate(func(c *playback.Controller) { quit = pc.apply(c) })
		if quit {
			return nil
		}
		if err := p.emit(); err != nil {
			return err
		}
	}
	return nil
}

// interact reads commands line by line until quit or EOF. Bad commands are
// reported and skipped.
func (p *player) interact(in io.Reader) error {
	if err := p.emit(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pc, err := parsePlayCommand(line)
		if err != nil {
			_, _ = fmt.Fprintf(p.out, "error: %v\n", err)
			continue
		}
		var quit bool
		p.session.Navigate(func(c *playback.Controller) { quit = pc.apply(c) })
		if quit {
			return nil
		}
		if err := p.emit(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func formatFrame(f adapter.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d/%d]", f.Position, f.TotalIterations)
	if f.Placeholder {
		fmt.Fprintf(&b, " %s", f.Message)
		return b.String()
	}
	fmt.Fprintf(&b, " step %d (%s)", f.StepIndex, f.StepType)
	if f.Converged {
		b.WriteString(" converged")
	}
	for _, c := range f.Cards {
		fmt.Fprintf(&b, " %s=%.6g", strings.ReplaceAll(c.Label, " ", "_"), c.Value)
	}
	return b.String()
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Step through a trace and print one frame per position",
	Run: func(cmd *cobra.Command, args []string) {
		cmds, err := parseScript(playScript)
		if err != nil {
			logrus.Fatalf("Invalid script: %v", err)
		}

		var fam *trace.Family
		var session *playback.Session
		if tracePath != "" {
			tr, f, err := loadTraceFile(tracePath, familyName)
			if err != nil {
				logrus.Fatalf("Failed to load trace: %v", err)
			}
			fam = f
			session = playback.NewSession(playback.NewController(fam))
			session.Navigate(func(c *playback.Controller) { c.Load(tr) })
		} else {
			req, err := buildRequest(fetchAlgo, requestFile, requestSets)
			if err != nil {
				logrus.Fatalf("Invalid request: %v", err)
			}
			fam = trace.MustLookup(req.Family())
			session = playback.NewSession(playback.NewController(fam))
			client, stop := newFetchClient(cmd)
			defer stop()
			if err := fetchIntoSession(cmd.Context(), session, client, req); err != nil {
				// the controller keeps its empty state; frames show the placeholder
				logrus.Errorf("%v", err)
			}
		}
		logrus.Infof("Playing %s trace: %d iterations", fam.Name, session.View().TotalIterations)

		p := &player{session: session, family: fam, out: cmd.OutOrStdout(), asJSON: playJSON}
		if interactive {
			err = p.interact(cmd.InOrStdin())
		} else {
			err = p.run(cmds)
		}
		if err != nil {
			logrus.Fatalf("Playback failed: %v", err)
		}
	},
}

func init() {
	addRequestFlags(playCmd)
	playCmd.Flags().StringVar(&tracePath, "trace", "", "Saved trace file to replay (fetches with --algo when empty)")
	playCmd.Flags().StringVar(&familyName, "family", "", "Trace family (inferred from the trace's algo when empty)")
	playCmd.Flags().StringVar(&playScript, "script", "", "Comma-separated commands: next, prev, first, last, goto N, reset")
	playCmd.Flags().BoolVar(&playJSON, "json", false, "Emit frames as JSON lines")
	playCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read commands (n, p, f, l, g N, r, q) from stdin")
}
