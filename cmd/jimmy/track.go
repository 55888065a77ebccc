package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jimmy "github.com/st-keller/jimmy-client"
	"github.com/st-keller/jimmy-client/api"
	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/tui"
	"github.com/st-keller/jimmy-client/types"
)

func newTrackCmd(a *app) *cobra.Command {
	var (
		token   string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "track <question-id>",
		Short: "Wait for the answer to a submitted question",
		Long: `Track a question until Jimmy answers it.

By default an interactive waiting room is shown. With --plain, events are
printed one per line, which suits scripts and pipes. When --token is given,
pressing "b" in the waiting room pays to move the question to the top of
the queue.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseItemID(args[0])
			if err != nil {
				return fmt.Errorf("invalid question id %q: %w", args[0], err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Plain {
				return a.trackPlain(ctx, cmd, id, verbose)
			}
			return a.trackTUI(ctx, id, token)
		},
	}

	cmd.Flags().Bool("plain", false, "print events as plain lines instead of the waiting room")
	cmd.Flags().StringVar(&token, "token", "", "checkout token used when bumping from the waiting room")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print the elapsed-seconds counter (plain mode)")
	return cmd
}

// outcome turns the terminal events of a search into a single result.
type outcome struct {
	sink.Nop
	done chan error
}

func newOutcome() *outcome {
	return &outcome{done: make(chan error, 1)}
}

func (o *outcome) finish(err error) {
	select {
	case o.done <- err:
	default:
	}
}

func (o *outcome) Answer(ev sink.AnswerEvent) {
	if ev.NotFound {
		o.finish(api.ErrNotFound)
		return
	}
	o.finish(nil)
}

func (o *outcome) CheckFailed(_ types.ItemID, err error) {
	o.finish(fmt.Errorf("status check failed: %w", err))
}

func (a *app) trackPlain(ctx context.Context, cmd *cobra.Command, id types.ItemID, verbose bool) error {
	w := sink.NewWriter(cmd.OutOrStdout())
	w.Verbose = verbose
	result := newOutcome()

	client, cleanup, err := a.newClient(ctx, sink.Multi{w, result}, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Search(ctx, id); err != nil {
		return err
	}

	select {
	case err := <-result.done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (a *app) trackTUI(ctx context.Context, id types.ItemID, token string) error {
	var client *jimmy.Client

	opts := []tui.Option{tui.WithExitOnAnswer()}
	if token != "" {
		opts = append(opts, tui.WithBump(func(id types.ItemID) error {
			return client.Bump(ctx, id, token)
		}))
	}
	program := tea.NewProgram(tui.NewModel(id, opts...))

	client, cleanup, err := a.newClient(ctx, tui.NewSink(program), true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := program.Run()
		cancel()
		return err
	})

	g.Go(func() error {
		err := client.Search(gctx, id)
		if err != nil && !errors.Is(err, api.ErrNotFound) {
			program.Quit()
			return err
		}
		// not found is rendered as the answer
		return nil
	})

	// SIGTERM or a failed search closes the waiting room; a closed
	// waiting room releases this goroutine through cancel
	g.Go(func() error {
		<-gctx.Done()
		program.Quit()
		return nil
	})

	return g.Wait()
}
