package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dm-vev/botmanager/server/cmd"
	"github.com/fatih/color"
	"github.com/sandertv/gophertunnel/minecraft/text"
)

// Executor handles lines typed into the console. *server.Server implements
// it.
type Executor interface {
	HandleConsoleInput(source cmd.Source, line string)
}

// Console provides a CLI backed command source that reads lines from an
// io.Reader (defaulting to os.Stdin). Plugin commands are executed on behalf
// of the console, other lines are forwarded to the server.
type Console struct {
	srv    Executor
	log    *slog.Logger
	reader io.Reader
	out    io.Writer
	colour bool
}

// New returns a Console bound to the provided server. The console reads from
// os.Stdin and writes command output to os.Stdout.
func New(srv Executor, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		srv:    srv,
		log:    log.With("subsystem", "console"),
		reader: os.Stdin,
		out:    color.Output,
		colour: !color.NoColor,
	}
}

// WithReader sets a custom reader for the console input. It enables testing the
// console without relying on os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// WithOutput sets the writer command output is written to, and whether
// formatting codes are rendered as ANSI colours or stripped.
func (c *Console) WithOutput(w io.Writer, colour bool) *Console {
	if w != nil {
		c.out, c.colour = w, colour
	}
	return c
}

// Writer returns an io.Writer that renders formatting codes in everything
// written to it before passing it to the console output. It is meant to
// receive the output of the server process.
func (c *Console) Writer() io.Writer {
	return writer{c: c}
}

// Run starts consuming lines from the console. It blocks until the context
// is cancelled or the underlying reader reaches EOF.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	src := &consoleSource{c: c}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("Console input error.", "error", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.srv.HandleConsoleInput(src, line)
	}
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, Render(s, c.colour))
}

type writer struct {
	c *Console
}

func (w writer) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.c.out, Render(string(p), w.c.colour)); err != nil {
		return 0, err
	}
	return len(p), nil
}

type consoleSource struct {
	c *Console
}

func (*consoleSource) Name() string { return "Console" }

func (*consoleSource) PermissionLevel() int { return cmd.PermissionOwner }

func (s *consoleSource) SendCommandOutput(o *cmd.Output) {
	for _, msg := range o.Messages() {
		s.c.println(msg.String())
		s.c.log.Debug("Command output.", "message", text.Clean(msg.String()))
	}
	for _, err := range o.Errors() {
		s.c.println("§c" + err.Error())
		s.c.log.Debug("Command error.", "error", text.Clean(err.Error()))
	}
}
