package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/capitalize-ai/tour-assistant/internal/agent"
	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	"github.com/capitalize-ai/tour-assistant/internal/config"
	"github.com/capitalize-ai/tour-assistant/internal/middleware"
	"github.com/capitalize-ai/tour-assistant/internal/model"
	"github.com/capitalize-ai/tour-assistant/pkg/logger"
)

type chatOptions struct {
	UserID   string
	Token    string
	LogLevel string
	TokenTTL time.Duration
	In       io.Reader
	Out      io.Writer
}

var errQuit = errors.New("quit")

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func runChat(ctx context.Context, cfg *config.Config, opts chatOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.NewDevelopment(opts.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	bearer := opts.Token
	if bearer == "" {
		bearer, err = middleware.IssueToken(cfg.Auth.JWTSecret, opts.UserID, opts.TokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
	}
	ctx = agent.WithToken(ctx, bearer)

	client := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.RequestTimeout, log)
	session := assistant.NewSession(client, assistant.Options{
		UserID:             opts.UserID,
		FramePrefix:        cfg.Agent.FramePrefix,
		MaxRecommendations: cfg.Agent.MaxRecommendations,
		Logger:             log,
	})
	defer session.Close()

	fmt.Fprintln(opts.Out, boldGreen("Tour assistant"))
	fmt.Fprintf(opts.Out, "Agent: %s\n", boldCyan(cfg.Agent.BaseURL))
	fmt.Fprintln(opts.Out, "Type a message and press Enter. /help lists commands.")

	if err := session.Init(ctx); err != nil {
		fmt.Fprintln(opts.Out, red("Could not load conversations: "+err.Error()))
	}
	c := &chat{session: session, out: opts.Out}
	c.printHistory()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(opts.Out, boldGreen("You: "))
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(opts.Out)
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		if err := c.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(opts.Out, red(err.Error()))
		}
	}
}

type chat struct {
	session *assistant.Session
	out     io.Writer
}

func (c *chat) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return c.send(ctx, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(c.out, "/new  /list  /switch N  /delete N  /quit")
	case "/new":
		if _, err := c.session.StartNewConversation(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, faint("Started a new conversation."))
	case "/list":
		c.printList()
	case "/switch", "/delete":
		id, err := c.conversationAt(fields)
		if err != nil {
			return err
		}
		if fields[0] == "/delete" {
			if err := c.session.DeleteConversation(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(c.out, faint("Deleted."))
			return nil
		}
		if err := c.session.SelectConversation(ctx, id); err != nil {
			return err
		}
		c.printHistory()
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
	return nil
}

// send submits the line as an Enter key press and prints the reply while it
// streams.
func (c *chat) send(ctx context.Context, text string) error {
	snapshots, cancel := c.session.Subscribe()
	r := newRenderer(c.out, <-snapshots)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range snapshots {
			r.update(snap)
		}
	}()

	submitted, err := c.session.KeyDown(ctx, assistant.KeyEvent{Key: "Enter"}, text)
	cancel()
	<-done

	if !submitted || errors.Is(err, assistant.ErrEmptyMessage) {
		return nil
	}
	if errors.Is(err, assistant.ErrBusy) || errors.Is(err, assistant.ErrClosed) {
		return err
	}
	// Other failures are part of the conversation as an error reply.
	r.finish(c.session.Snapshot())
	return nil
}

func (c *chat) conversationAt(fields []string) (string, error) {
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: %s N", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	convs := c.session.Snapshot().Conversations
	if err != nil || n < 1 || n > len(convs) {
		return "", fmt.Errorf("no conversation %s", fields[1])
	}
	return convs[n-1].LocalID, nil
}

func (c *chat) printList() {
	snap := c.session.Snapshot()
	for i, conv := range snap.Conversations {
		marker := " "
		if conv.LocalID == snap.ActiveID {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %d. %s %s\n", marker, i+1, conv.DisplayTitle(),
			faint(conv.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
}

func (c *chat) printHistory() {
	snap := c.session.Snapshot()
	for _, m := range snap.Messages {
		if m.Role == model.RoleUser {
			fmt.Fprintf(c.out, "%s%s\n", boldGreen("You: "), m.Content)
			continue
		}
		r := &renderer{out: c.out}
		r.printMessage(m)
	}
	if snap.Alert != "" {
		fmt.Fprintln(c.out, yellow(snap.Alert))
	}
}
