package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/kdimtricp/lanepilot/internal/content"
	"github.com/kdimtricp/lanepilot/internal/logging"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/kdimtricp/lanepilot/internal/training"
	"github.com/spf13/cobra"
)

const (
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var steps int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "train <video>...",
		Short: "Run the simulated model training in the terminal",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if steps <= 0 {
				steps = cfg.Training.TotalSteps
			}
			if interval <= 0 {
				interval = cfg.Training.TickInterval.Std()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.Init(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			return runTraining(runCtx, cmd.OutOrStdout(), args, training.Config{
				TotalSteps: steps,
				Interval:   interval,
				Logger:     logger,
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "Total steps, overrides training.total_steps")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between steps, overrides training.tick_interval")
	return cmd
}

func runTraining(ctx context.Context, w io.Writer, paths []string, cfg training.Config) error {
	color := isTerminal(w)
	// notifications arrive from the ticker goroutine
	out := &lockedWriter{w: w}

	selections := make([]media.Selection, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("training video: %w", err)
		}
		c := media.Candidate{
			Name:        filepath.Base(p),
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
		}
		selections = append(selections, *media.NewSelection(c, p))
		fmt.Fprintf(out, "queued %s\n", c.Describe())
	}

	printer := &notifyPrinter{out: out, color: color}
	cfg.Notifier = printer
	session := training.NewSession("cli", cfg)
	defer session.Close()

	events, cancel := session.Subscribe(256)
	defer cancel()

	if err := session.Enqueue(selections...); err != nil {
		return err
	}
	if err := session.Start(); err != nil {
		return err
	}

	for _, s := range content.TrainingSettings() {
		fmt.Fprintf(out, "%-14s %s\n", s.Name+":", s.Value)
	}

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			session.Reset()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("training session closed")
			}
			switch ev.Type {
			case training.EventLog:
				fmt.Fprintln(out, ev.Line)
			case training.EventComplete:
				m := content.TrainedModel()
				fmt.Fprintf(out, "model %s (%s), classes: %s, accuracy %s, took %s\n",
					m.Name, m.Size, m.Classes, m.Accuracy, time.Since(started).Round(time.Millisecond))
				return nil
			}
		}
	}
}

// notifyPrinter shows notifications as terminal lines.
type notifyPrinter struct {
	out   io.Writer
	color bool
}

func (p *notifyPrinter) Notify(n notify.Notification) {
	line := n.Title
	if n.Description != "" {
		line += ": " + n.Description
	}
	if n.Level == notify.LevelError {
		line = "error: " + line
	} else if p.color {
		line = ansiGreen + line + ansiReset
	}
	fmt.Fprintln(p.out, line)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
