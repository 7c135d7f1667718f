package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"sublime/internal/subtitle"
)

const inspectTextLimit = 48

func newInspectCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:         "inspect <file.srt>",
		Short:       "Parse a subtitle file and show its cues",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read subtitle file: %w", err)
			}
			cues, err := subtitle.ParseSRT(string(data))
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			shown := cues
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			rows := make([][]string, 0, len(shown))
			for _, cue := range shown {
				rows = append(rows, []string{
					strconv.Itoa(cue.ID),
					cue.StartTime + " --> " + cue.EndTime,
					truncateText(cue.Text, inspectTextLimit),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Timecode", "Text"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d cues, %.1fs covered\n", len(cues), subtitle.Duration(cues))
			if limit > 0 && len(cues) > limit {
				fmt.Fprintf(out, "(showing first %d)\n", limit)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many cues (0 shows all)")
	return cmd
}

func truncateText(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
