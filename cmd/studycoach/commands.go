package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/hupe1980/studycoach"
	"github.com/hupe1980/studycoach/agent"
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/server"
)

func runServe(ctx context.Context, c *studycoach.Coach) error {
	srv := server.New(c.Runner(), c.Indexer(), func(o *server.Options) {
		o.IndexStatus = c.IndexStatus
		o.Logger = c.Logger()
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(c.Config().Listen.Addr()) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	c.Logger().Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func runAsk(ctx context.Context, c *studycoach.Coach, stdout io.Writer, question string) error {
	res, err := c.InvokeSync(ctx, core.NewID(), question)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, res.Answer)
	return err
}

func runIndex(ctx context.Context, c *studycoach.Coach, stdout io.Writer, root, pattern string) error {
	if c.Config().Storage.Driver != "sqlite" {
		c.Logger().Warn("index.ephemeral", "reason", "storage driver is memory; the index is lost on exit")
	}
	n, err := c.Indexer().IndexGlob(ctx, root, pattern)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "indexed %d chunks from %s\n", n, root)
	return err
}

// runChat reads one message per line and streams each turn. "/quit" and
// "/exit" end the session.
func runChat(ctx context.Context, c *studycoach.Coach, stdin io.Reader, stdout io.Writer) error {
	sessionID := core.NewID()
	scanner := bufio.NewScanner(stdin)

	fmt.Fprintf(stdout, "studycoach (%s). Type /quit to exit.\n", c.IndexStatus(ctx))
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		_, seq, err := c.Invoke(ctx, sessionID, line)
		if err != nil {
			return err
		}
		if err := printTurn(stdout, seq); err != nil {
			if errors.Is(err, core.ErrCancelled) {
				return nil
			}
			fmt.Fprintf(stdout, "error: %v\n", err)
		}
	}
}

// printTurn prints new assistant text and tool status lines as they arrive.
func printTurn(w io.Writer, seq iter.Seq[agent.Snapshot]) error {
	printed := 0
	for snap := range seq {
		if len(snap.Content) > printed {
			fmt.Fprintln(w, strings.TrimLeft(snap.Content[printed:], "\n"))
			printed = len(snap.Content)
		}
		if snap.Status != "" {
			fmt.Fprintln(w, snap.Status)
		}
		if snap.Final {
			return snap.Err
		}
	}
	return nil
}
