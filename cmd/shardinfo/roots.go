package main

import (
	"fmt"
	"io"
	"strings"

	"shardinfo/pkg/config"
	"shardinfo/pkg/inspect"
	"shardinfo/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func rootsCmd(settings *config.Settings, settingsErr error) *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "Summarize root containers in a table",
		Long: `Lists every root container found on the local devices with its replica count,
database states, object and byte counts, known shards and classification errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if settingsErr != nil {
				return settingsErr
			}
			logger := setupLogger(verbose)
			defer logger.Sync()

			paths, err := resolveConfPaths()
			if err != nil {
				return err
			}

			summaries, err := newInspector(settings, logger).Roots(paths)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No root containers found")
				return nil
			}
			fmt.Fprintln(out, rootsTable(out, summaries, !noColor && isTerminal(out), human))
			return nil
		},
	}
}

func rootsTable(out io.Writer, summaries []inspect.RootSummary, color, humanSizes bool) string {
	lr := lipgloss.NewRenderer(out)
	cell := lr.NewStyle().Padding(0, 1)
	header := cell.Bold(true)
	border := lr.NewStyle()
	bad := cell
	if color {
		header = header.Foreground(lipgloss.Color("#ffffff"))
		border = border.Foreground(lipgloss.Color("#7571f9"))
		bad = bad.Foreground(lipgloss.Color("#ff6b6b")).Bold(true)
	}

	bytes := utils.FormatCount
	if humanSizes {
		bytes = utils.FormatDataSize
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 6 && summaries[row].Mismatches > 0:
				return bad
			default:
				return cell
			}
		}).
		Headers("NAME", "REPLICAS", "STATE", "OBJECTS", "BYTES", "SHARDS", "ERRORS")

	for _, s := range summaries {
		states := make([]string, len(s.States))
		for i, state := range s.States {
			states[i] = string(state)
		}
		t.Row(
			s.Identity.String(),
			fmt.Sprintf("%d", s.Replicas),
			strings.Join(states, ","),
			utils.FormatSpread(s.MinObjects, s.MaxObjects, utils.FormatCount),
			utils.FormatSpread(s.MinBytes, s.MaxBytes, bytes),
			fmt.Sprintf("%d", s.Shards),
			fmt.Sprintf("%d", s.Mismatches),
		)
	}
	return t.String()
}
