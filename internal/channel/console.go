package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"multibot/internal/message"
)

// PlatformConsole tags requests from the interactive terminal.
const PlatformConsole = "Console"

// Console is the interactive terminal adapter: one request per line.
type Console struct {
	factory Factory
	userID  string
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
}

type ConsoleConfig struct {
	Factory Factory
	UserID  string
	Logger  *slog.Logger
	In      io.Reader
	Out     io.Writer
}

func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.UserID == "" {
		cfg.UserID = "0"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Console{
		factory: cfg.Factory,
		userID:  cfg.UserID,
		logger:  cfg.Logger,
		in:      cfg.In,
		out:     cfg.Out,
	}
}

// Run reads lines until EOF, /quit, or context cancellation.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "MultiBot console. Type a command, /quit to exit.")
	fmt.Fprint(c.out, "> ")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(c.out, "> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			return nil
		}

		if err := c.handleLine(line); err != nil {
			c.logger.Error("cannot handle console input", "error", err)
			fmt.Fprintln(c.out, "! internal error, see log")
		}
		fmt.Fprint(c.out, "> ")
	}
	return scanner.Err()
}

func (c *Console) handleLine(line string) error {
	d, err := c.factory()
	if err != nil {
		return err
	}
	req := NewRequest(PlatformConsole, c.userID, line)
	Deliver(d, d.Handle(req), func(resp message.Response) {
		fmt.Fprintln(c.out, RenderText(resp))
	}, nil)
	return nil
}
