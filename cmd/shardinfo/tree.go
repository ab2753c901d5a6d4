package main

import (
	"fmt"
	"io"
	"strings"

	"shardinfo/pkg/config"
	"shardinfo/pkg/inspect"
	"shardinfo/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func treeCmd(settings *config.Settings, settingsErr error) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the shard hierarchy of each root container",
		Args:  cobra.NoArgs,
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

			trees, err := newInspector(settings, logger).Trees(paths)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(trees) == 0 {
				fmt.Fprintln(out, "No root containers found")
				return nil
			}
			styles := newTreeStyles(out, !noColor && isTerminal(out))
			for _, t := range trees {
				fmt.Fprint(out, renderTree(t, styles, human))
			}
			return nil
		},
	}
}

type treeStyles struct {
	root    lipgloss.Style
	name    lipgloss.Style
	muted   lipgloss.Style
	missing lipgloss.Style
}

func newTreeStyles(out io.Writer, color bool) treeStyles {
	lr := lipgloss.NewRenderer(out)
	s := treeStyles{
		root:    lr.NewStyle(),
		name:    lr.NewStyle(),
		muted:   lr.NewStyle(),
		missing: lr.NewStyle(),
	}
	if color {
		s.root = s.root.Bold(true).Foreground(lipgloss.Color("#7571f9"))
		s.muted = s.muted.Foreground(lipgloss.Color("#6c757d"))
		s.missing = s.missing.Foreground(lipgloss.Color("#ff6b6b"))
	}
	return s
}

// renderTree writes a root, its shards with box drawing connectors and a
// totals line.
func renderTree(root *inspect.TreeNode, styles treeStyles, humanSizes bool) string {
	var b strings.Builder
	b.WriteString(styles.root.Render(root.Identity.String()))
	b.WriteString(styles.muted.Render(nodeDetail(root, humanSizes)))
	b.WriteString("\n")

	for i, child := range root.Children {
		renderBranch(&b, child, "", i == len(root.Children)-1, styles, humanSizes)
	}

	stats := root.Stats()
	summary := fmt.Sprintf("%d shards, %s objects, %s", stats.Shards,
		utils.FormatCount(stats.Objects), formatBytes(stats.Bytes, humanSizes))
	if stats.Missing > 0 {
		summary += fmt.Sprintf(", %d not found locally", stats.Missing)
	}
	b.WriteString(styles.muted.Render(summary))
	b.WriteString("\n\n")
	return b.String()
}

func renderBranch(b *strings.Builder, node *inspect.TreeNode, prefix string, isLast bool, styles treeStyles, humanSizes bool) {
	if isLast {
		b.WriteString(prefix + "└── ")
	} else {
		b.WriteString(prefix + "├── ")
	}

	switch {
	case node.Repeat:
		b.WriteString(styles.name.Render(node.Identity.String()))
		b.WriteString(styles.muted.Render(" (already listed)"))
	case node.Replicas == 0:
		b.WriteString(styles.missing.Render(node.Identity.String() + " (not found)"))
	default:
		b.WriteString(styles.name.Render(node.Identity.String()))
		b.WriteString(styles.muted.Render(nodeDetail(node, humanSizes)))
	}
	b.WriteString("\n")

	childPrefix := prefix + "│   "
	if isLast {
		childPrefix = prefix + "    "
	}
	for i, child := range node.Children {
		renderBranch(b, child, childPrefix, i == len(node.Children)-1, styles, humanSizes)
	}
}

func nodeDetail(node *inspect.TreeNode, humanSizes bool) string {
	return fmt.Sprintf(" (%s objects, %s, %d replicas)",
		utils.FormatCount(node.Objects), formatBytes(node.Bytes, humanSizes), node.Replicas)
}

func formatBytes(n int64, humanSizes bool) string {
	if humanSizes {
		return utils.FormatDataSize(n)
	}
	return utils.FormatCount(n) + " bytes"
}
