package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"shardinfo/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id       types.Identity
	root     bool
	objects  int64
	bytes    int64
	deleted  string
	ranges   []types.ShardRange
	unfilter bool
}

func (f *fakeHandle) Identity() types.Identity { return f.id }
func (f *fakeHandle) DBFile() string           { return "/srv/node/" + f.id.Container + ".db" }
func (f *fakeHandle) DBState() types.DBState   { return types.DBUnsharded }
func (f *fakeHandle) IsRoot() bool             { return f.root }
func (f *fakeHandle) ShardingInfo() string     { return "{}" }

func (f *fakeHandle) Info() types.ContainerInfo {
	put, _ := types.ParseTimestamp("1500000000.00000")
	del, _ := types.ParseTimestamp(f.deleted)
	return types.ContainerInfo{
		Account:         f.id.Account,
		Container:       f.id.Container,
		ObjectCount:     f.objects,
		BytesUsed:       f.bytes,
		PutTimestamp:    put,
		DeleteTimestamp: del,
	}
}

func (f *fakeHandle) ShardRanges(filter types.ShardRangeFilter) []types.ShardRange {
	if f.unfilter && !filter.ExcludeOthers {
		return f.ranges
	}
	return types.FilterShardRanges(f.id, f.ranges, filter)
}

var (
	rootID  = types.Identity{Account: "acct", Container: "root"}
	shardID = types.Identity{Account: "acct", Container: "root-1"}
)

func render(t *testing.T, names types.NameMap, id types.Identity, expect types.ContainerType) string {
	t.Helper()
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{})
	r.RenderContainer(id, names, expect, 0, NewVisited())
	require.NoError(t, r.Err())
	return buf.String()
}

func section(out, header, next string) string {
	start := strings.Index(out, header)
	if start < 0 {
		return ""
	}
	rest := out[start+len(header):]
	if end := strings.Index(rest, next); end >= 0 {
		return rest[:end]
	}
	return rest
}

func TestRenderTwoReplicaRoot(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, objects: 10})
	names.Put(2, &fakeHandle{id: rootID, root: true, objects: 12})

	out := render(t, names, rootID, types.ContainerRoot)

	assert.True(t, strings.HasPrefix(out, "Name: acct/root\n"))
	assert.Equal(t, "\n    /srv/node/root.db (1)\n    /srv/node/root.db (2)\n", section(out, "DB files:", "Info:"))
	info := section(out, "Info:", "Sharding info:")
	assert.Contains(t, info, "unsharded, objs: 10, bytes: 0, put: 2017-07-14T02:40:00.000000, deleted:  -  (1)")
	assert.Contains(t, info, "objs: 12")
	assert.NotContains(t, out, "ERROR")
	assert.True(t, strings.HasSuffix(out, "Shards:\n\n\n"))
}

func TestRenderDeletedTimestamp(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, deleted: "1500000001.00000"})

	out := render(t, names, rootID, types.ContainerRoot)
	assert.Contains(t, out, "deleted: 2017-07-14T02:40:01.000000 (1)")
}

func TestRenderTypeMismatch(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true})
	names.Put(2, &fakeHandle{id: rootID, root: false})

	out := render(t, names, rootID, types.ContainerRoot)

	dbFiles := section(out, "DB files:", "Info:")
	assert.Equal(t, "\n    /srv/node/root.db (1)\n    /srv/node/root.db (2)\n            ERROR expected ROOT but found SHARD\n", dbFiles)
	assert.Equal(t, 1, strings.Count(out, "ERROR"))

	t.Run("Shard expected", func(t *testing.T) {
		out := render(t, names, rootID, types.ContainerShard)
		assert.Contains(t, out, "ERROR expected SHARD but found ROOT")
		assert.Equal(t, 1, strings.Count(out, "ERROR"))
	})
}

func TestRenderUnionOfShards(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{
		{Name: "acct/root-1", Upper: "m", State: types.StateActive},
	}})

	out := render(t, names, rootID, types.ContainerRoot)

	shardRanges := section(out, "Shard ranges:", "Shards:")
	assert.Equal(t, 1, strings.Count(shardRanges, "acct/root-1"))
	assert.Contains(t, shardRanges, `'' - 'm'`)
	assert.Contains(t, shardRanges, "deleted: False (1) acct/root-1")
	assert.Contains(t, shardRanges, " active: ")

	// nothing collected for the shard, so it is named with empty sections
	shards := section(out, "Shards:", "\n\n\n")
	assert.Contains(t, shards, "    Name: acct/root-1\n    DB files:\n    Info:\n    Sharding info:\n    Own shard range:\n    Shard ranges:\n    Shards:")
}

func TestRenderUnionAcrossReplicas(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{
		{Name: "acct/root-1", Upper: "m"},
	}})
	names.Put(2, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{
		{Name: "acct/root-1", Upper: "m"},
		{Name: "acct/root-2", Lower: "m"},
	}})
	names.Put(1, &fakeHandle{id: shardID, objects: 3})

	out := render(t, names, rootID, types.ContainerRoot)

	assert.Equal(t, 1, strings.Count(out, "Name: acct/root-1\n"))
	assert.Equal(t, 1, strings.Count(out, "Name: acct/root-2\n"))
	assert.Less(t, strings.Index(out, "Name: acct/root-1"), strings.Index(out, "Name: acct/root-2"))
	assert.Contains(t, out, "        /srv/node/root-1.db (1)\n")
	assert.NotContains(t, out, "ERROR")
}

func TestRenderLiveRangesFirst(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{
		{Name: "acct/old-1", Upper: "m", Deleted: true},
		{Name: "acct/root-1", Upper: "m"},
		{Name: "acct/old-2", Lower: "m", Deleted: true},
		{Name: "acct/root-2", Lower: "m"},
	}})

	out := render(t, names, rootID, types.ContainerRoot)
	lines := strings.Split(strings.TrimSpace(section(out, "Shard ranges:", "Shards:")), "\n")
	require.Len(t, lines, 4)

	deletedSeen := false
	for _, line := range lines {
		isDeleted := strings.Contains(line, "deleted: True")
		if deletedSeen {
			assert.True(t, isDeleted, "live range after deleted: %s", line)
		}
		deletedSeen = deletedSeen || isDeleted
	}
	assert.True(t, strings.HasSuffix(lines[0], "acct/root-1"))
	assert.True(t, strings.HasSuffix(lines[1], "acct/root-2"))
}

func TestRenderOwnShardRange(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{
		{Name: "acct/root", State: types.StateSharding},
		{Name: "acct/root-1", Upper: "m"},
	}})

	out := render(t, names, rootID, types.ContainerRoot)

	own := section(out, "Own shard range:", "Shard ranges:")
	assert.Contains(t, own, "sharding: ")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(own), "(1) acct/root"))
	assert.NotContains(t, section(out, "Shard ranges:", "Shards:"), "(1) acct/root\n")
	assert.Equal(t, 1, strings.Count(out, "Name: acct/root\n"))
}

func TestRenderCycles(t *testing.T) {
	t.Run("Ancestor cycle", func(t *testing.T) {
		names := types.NewNameMap()
		names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{{Name: "acct/root-1"}}})
		names.Put(1, &fakeHandle{id: shardID, ranges: []types.ShardRange{{Name: "acct/root"}}})

		out := render(t, names, rootID, types.ContainerRoot)
		assert.Contains(t, out, "        Name: acct/root\n          (Details already listed)\n")
		assert.Equal(t, 1, strings.Count(out, "DB files:\n    /srv/node/root.db"))
	})

	t.Run("Self reference", func(t *testing.T) {
		names := types.NewNameMap()
		names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{{Name: "acct/root-1"}}})
		names.Put(1, &fakeHandle{id: shardID, unfilter: true, ranges: []types.ShardRange{{Name: "acct/root-1"}}})

		out := render(t, names, rootID, types.ContainerRoot)
		assert.Equal(t, 2, strings.Count(out, "Name: acct/root-1\n"))
		assert.Equal(t, 1, strings.Count(out, "(Details already listed)"))
		assert.Contains(t, out, "        Name: acct/root-1\n          (Details already listed)\n")
	})

	t.Run("Two parents", func(t *testing.T) {
		other := types.Identity{Account: "acct", Container: "root-2"}
		shared := types.Identity{Account: "acct", Container: "shared"}
		names := types.NewNameMap()
		names.Put(1, &fakeHandle{id: rootID, root: true, ranges: []types.ShardRange{{Name: "acct/root-1"}, {Name: "acct/root-2"}}})
		names.Put(1, &fakeHandle{id: shardID, ranges: []types.ShardRange{{Name: "acct/shared"}}})
		names.Put(1, &fakeHandle{id: other, ranges: []types.ShardRange{{Name: "acct/shared"}}})
		names.Put(1, &fakeHandle{id: shared})

		out := render(t, names, rootID, types.ContainerRoot)
		assert.Equal(t, 1, strings.Count(out, "/srv/node/shared.db (1)"))
		assert.Equal(t, 1, strings.Count(out, "(Details already listed)"))
	})
}

func TestRenderVisitedSetIsShared(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true})

	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{})
	visited := NewVisited()
	r.RenderContainer(rootID, names, types.ContainerRoot, 0, visited)
	r.RenderContainer(rootID, names, types.ContainerRoot, 0, visited)

	assert.Equal(t, 1, strings.Count(buf.String(), "DB files:"))
	assert.Contains(t, visited, rootID)
}

func TestRenderHumanSizes(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true, bytes: 1536})

	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{HumanSizes: true})
	r.RenderContainer(rootID, names, types.ContainerRoot, 0, NewVisited())
	assert.Contains(t, buf.String(), "bytes: 1.5 KiB")
}

func TestReprString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "''"},
		{"m", "'m'"},
		{"o'brien", `"o'brien"`},
		{`say "o'k"`, `'say "o\'k"'`},
		{`a\b`, `'a\\b'`},
		{"tab\there", `'tab\there'`},
		{"bell\x07", `'bell\x07'`},
		{"caf\u00e9", "'caf\u00e9'"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, reprString(tt.input))
		})
	}
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestRenderWriteError(t *testing.T) {
	names := types.NewNameMap()
	names.Put(1, &fakeHandle{id: rootID, root: true})

	w := &failingWriter{}
	r := NewRenderer(w, Options{})
	r.RenderContainer(rootID, names, types.ContainerRoot, 0, NewVisited())
	assert.EqualError(t, r.Err(), "disk full")
	assert.Equal(t, 1, w.calls)
}
