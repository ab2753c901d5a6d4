// Package report renders the sharding report of a root container and every
// shard reachable from it.
package report

import (
	"fmt"
	"io"
	"strings"

	"shardinfo/pkg/types"
	"shardinfo/pkg/utils"

	"github.com/charmbracelet/lipgloss"
)

const tab = "    "

// Options controls how the report is written.
type Options struct {
	// Color styles headers and errors. Only meaningful on a terminal.
	Color bool
	// HumanSizes prints byte counts as e.g. "1.5 MiB".
	HumanSizes bool
}

// Visited records the containers already rendered below one root.
type Visited map[types.Identity]struct{}

// NewVisited returns an empty visited set for one root.
func NewVisited() Visited {
	return make(Visited)
}

// Renderer writes the indented text report. It keeps the first write error
// and stops writing after it; see Err.
type Renderer struct {
	out  io.Writer
	opts Options
	err  error

	nameStyle  lipgloss.Style
	errorStyle lipgloss.Style
}

// NewRenderer returns a Renderer writing to out.
func NewRenderer(out io.Writer, opts Options) *Renderer {
	lr := lipgloss.NewRenderer(out)
	return &Renderer{
		out:        out,
		opts:       opts,
		nameStyle:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BE9FD")),
		errorStyle: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555")),
	}
}

// Err returns the first error hit while writing.
func (r *Renderer) Err() error {
	return r.err
}

func (r *Renderer) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.opts.Color {
		return text
	}
	return s.Render(text)
}

// RenderContainer writes the section for id and recurses into every shard
// any replica of id knows about. A container already in visited is only
// named, which stops the walk on cycles and shards with several parents.
func (r *Renderer) RenderContainer(id types.Identity, names types.NameMap, expect types.ContainerType, level int, visited Visited) {
	indent := strings.Repeat(tab, level)
	replicas := names[id]
	nodes := names.Nodes(id)

	r.printf("%s%s\n", indent, r.style(r.nameStyle, "Name: "+id.String()))
	if _, seen := visited[id]; seen {
		r.printf("%s  (Details already listed)\n\n", indent)
		return
	}
	visited[id] = struct{}{}

	r.printf("%sDB files:\n", indent)
	for _, node := range nodes {
		r.renderDB(node, replicas[node], expect, level+1)
	}

	r.printf("%sInfo:\n", indent)
	for _, node := range nodes {
		r.renderInfo(node, replicas[node], level+1)
	}

	r.printf("%sSharding info:\n", indent)
	for _, node := range nodes {
		r.printf("%s%s%s (%d)\n", indent, tab, replicas[node].ShardingInfo(), node)
	}

	r.printf("%sOwn shard range:\n", indent)
	for _, node := range nodes {
		r.renderShardRanges(node, replicas[node].ShardRanges(types.OwnShardRange), level+1)
	}

	r.printf("%sShard ranges:\n", indent)
	var children []types.Identity
	seen := make(map[types.Identity]bool)
	for _, node := range nodes {
		ranges := replicas[node].ShardRanges(types.AllShardRanges)
		for _, sr := range ranges {
			child := sr.Identity()
			if !seen[child] {
				seen[child] = true
				children = append(children, child)
			}
		}
		r.renderShardRanges(node, ranges, level+1)
	}

	r.printf("%sShards:\n", indent)
	for _, child := range children {
		r.RenderContainer(child, names, types.ContainerShard, level+1, visited)
	}
	r.printf("\n\n")
}

func (r *Renderer) renderDB(node types.NodeID, h types.Handle, expect types.ContainerType, level int) {
	indent := strings.Repeat(tab, level)
	r.printf("%s%s (%d)\n", indent, h.DBFile(), node)
	if actual := types.TypeOf(h); actual != expect {
		r.printf("%s        %s\n", indent,
			r.style(r.errorStyle, fmt.Sprintf("ERROR expected %s but found %s", expect, actual)))
	}
}

func (r *Renderer) renderInfo(node types.NodeID, h types.Handle, level int) {
	info := h.Info()
	deleted := " - "
	if !info.DeleteTimestamp.IsZero() {
		deleted = info.DeleteTimestamp.ISOFormat()
	}
	r.printf("%s%s, objs: %d, bytes: %s, put: %s, deleted: %s (%d)\n",
		strings.Repeat(tab, level), h.DBState(), info.ObjectCount, r.bytes(info.BytesUsed),
		info.PutTimestamp.ISOFormat(), deleted, node)
}

// renderShardRanges writes ranges with every live range ahead of the deleted ones.
func (r *Renderer) renderShardRanges(node types.NodeID, ranges []types.ShardRange, level int) {
	sorted := make([]types.ShardRange, len(ranges))
	copy(sorted, ranges)
	types.SortLiveFirst(sorted)

	indent := strings.Repeat(tab, level)
	for _, sr := range sorted {
		bounds := reprString(sr.Lower) + " - " + reprString(sr.Upper)
		r.printf("%s%23s, objs: %3d, bytes: %3s, timestamp: %s (%s), modified: %s (%s), %7s: %s (%s), deleted: %s (%d) %s\n",
			indent, bounds, sr.ObjectCount, r.bytes(sr.BytesUsed),
			sr.Timestamp.ISOFormat(), sr.Timestamp.Internal(),
			sr.MetaTimestamp.ISOFormat(), sr.MetaTimestamp.Internal(),
			sr.State, sr.StateTimestamp.ISOFormat(), sr.StateTimestamp.Internal(),
			reprBool(sr.Deleted), node, sr.Name)
	}
}

func (r *Renderer) bytes(n int64) string {
	if r.opts.HumanSizes {
		return utils.FormatDataSize(n)
	}
	return fmt.Sprintf("%d", n)
}

// reprString quotes a shard bound the way the other swift tools print it:
// single quotes unless s holds a single quote and no double quote.
func reprString(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteByte(quote)
	for _, c := range s {
		switch {
		case c == '\\' || c == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

func reprBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
