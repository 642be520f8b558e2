package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"GapWatchAPI/internal/gap"

	"github.com/spf13/cobra"
)

// replayLine is one entry of a replay file, one JSON object per line.
type replayLine struct {
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

func ReplayCmd() *cobra.Command {
	var (
		message   string
		window    string
		valuePath string
		at        string
	)
	cmd := &cobra.Command{
		Use:   "replay <messages.jsonl>",
		Short: "Run a rule configuration over recorded messages and report the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := gap.Config{
				Message:            message,
				WindowDurationDays: gap.ParseDays(window),
				ValuePath:          valuePath,
			}
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return replay(cmd.OutOrStdout(), f, cfg, now)
		},
	}
	cmd.Flags().StringVar(&message, "message", gap.DefaultMessage, "alert message")
	cmd.Flags().StringVar(&window, "window", "2", "window_duration_in_days")
	cmd.Flags().StringVar(&valuePath, "value-path", "", "payload path that must be present for a message to count")
	cmd.Flags().StringVar(&at, "at", "", "evaluation time as RFC3339, defaults to now")
	return cmd
}

func replay(out io.Writer, in io.Reader, cfg gap.Config, now time.Time) error {
	mon, err := gap.New(cfg)
	if err != nil {
		return err
	}

	var (
		st        gap.State
		qualified int
		ignored   int
	)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var line replayLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if line.CreatedAt.IsZero() {
			return fmt.Errorf("line %d: created_at is required", n)
		}
		msg := gap.Message{Payload: line.Payload, CreatedAt: line.CreatedAt}
		if !mon.Qualifies(msg) {
			ignored++
			continue
		}
		qualified++
		st = mon.OnMessage(msg, st)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	fmt.Fprintf(out, "messages: %d qualified, %d ignored\n", qualified, ignored)
	if st.HasData() {
		fmt.Fprintf(out, "newest:   %s (gap %s)\n",
			time.Unix(st.NewestMessageCreatedAt, 0).UTC().Format(time.RFC3339), st.Gap(now).Truncate(time.Second))
	} else {
		fmt.Fprintln(out, "newest:   none")
	}

	_, alert := mon.Check(now, st)
	if alert != nil {
		fmt.Fprintf(out, "ALERT:    %s (gap started %s)\n",
			alert.Message, time.Unix(alert.GapStartedAt, 0).UTC().Format(time.RFC3339))
		return nil
	}
	fmt.Fprintln(out, "ok:       within window")
	return nil
}
