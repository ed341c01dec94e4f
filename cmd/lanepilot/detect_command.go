package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kdimtricp/lanepilot/internal/detection"
	"github.com/spf13/cobra"
)

func newDetectCommand() *cobra.Command {
	var from, to, step float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect [seconds...]",
		Short: "Print the simulated detection state at playback positions",
		Long: `Print the simulated lane pilot output for the given playback positions
in seconds, or for a sampled range when no positions are given.

Examples:
  lanepilot detect 7.5
  lanepilot detect --from 0 --to 10 --step 0.5`,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var states []detection.State
			if len(args) > 0 {
				for _, arg := range args {
					p, err := strconv.ParseFloat(arg, 64)
					if err != nil {
						return fmt.Errorf("invalid position %q: %w", arg, err)
					}
					states = append(states, detection.Project(p))
				}
			} else {
				var err error
				states, err = detection.Timeline(from, to, step)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(states)
			}
			fmt.Fprintln(out, renderDetections(states))
			return nil
		},
	}

	cmd.Flags().Float64Var(&from, "from", 0, "Range start in seconds")
	cmd.Flags().Float64Var(&to, "to", detection.CycleSeconds, "Range end in seconds")
	cmd.Flags().Float64Var(&step, "step", 1, "Sampling step in seconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderDetections(states []detection.State) string {
	rows := make([][]string, 0, len(states))
	for _, s := range states {
		distance := "-"
		if s.PotholeDistance != nil {
			distance = fmt.Sprintf("%.1f m", *s.PotholeDistance)
		}
		speed := fmt.Sprintf("%d km/h", s.Speed)
		if s.SpeedWarning {
			speed += " !"
		}

		objects := make([]string, len(s.Objects))
		for i, o := range s.Objects {
			objects[i] = fmt.Sprintf("%s %.1f%%", o.Label, o.Confidence*100)
		}

		rows = append(rows, []string{
			fmt.Sprintf("%.2f", s.Position),
			detection.FormatTime(s.Position),
			strings.ToUpper(string(s.Steering)),
			s.SafetyStatus(),
			distance,
			speed,
			strings.Join(objects, ", "),
		})
	}

	return renderTable(
		[]string{"Position", "Time", "Steering", "Safety", "Pothole", "Speed", "Objects"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
