package inspect

import "shardinfo/pkg/types"

// TreeNode is one container in the shard hierarchy of a root.
type TreeNode struct {
	Identity types.Identity
	Replicas int
	// Objects and Bytes are the largest counts any replica reports.
	Objects int64
	Bytes   int64
	// Repeat marks a container already placed elsewhere in the same tree.
	Repeat   bool
	Children []*TreeNode
}

// TreeStats holds totals over a tree, counting each container once.
type TreeStats struct {
	Shards  int
	Missing int
	Objects int64
	Bytes   int64
}

// Trees collects confPaths and builds the shard tree of every root.
func (i *Inspector) Trees(confPaths []string) ([]*TreeNode, error) {
	names, err := i.Collect(confPaths)
	if err != nil {
		return nil, err
	}
	return BuildTrees(names), nil
}

// BuildTrees returns one tree per root container, following the live shard
// ranges of every replica.
func BuildTrees(names types.NameMap) []*TreeNode {
	var trees []*TreeNode
	for _, id := range names.Identities() {
		if names.HasRoot(id) {
			trees = append(trees, buildTreeNode(id, names, make(map[types.Identity]bool)))
		}
	}
	return trees
}

func buildTreeNode(id types.Identity, names types.NameMap, visited map[types.Identity]bool) *TreeNode {
	node := &TreeNode{Identity: id}
	if visited[id] {
		node.Repeat = true
		return node
	}
	visited[id] = true

	var children []types.Identity
	seen := make(map[types.Identity]bool)
	for _, nodeID := range names.Nodes(id) {
		h := names[id][nodeID]
		info := h.Info()
		if info.ObjectCount > node.Objects {
			node.Objects = info.ObjectCount
		}
		if info.BytesUsed > node.Bytes {
			node.Bytes = info.BytesUsed
		}
		node.Replicas++

		for _, sr := range h.ShardRanges(types.ShardRangeFilter{}) {
			child := sr.Identity()
			if !seen[child] {
				seen[child] = true
				children = append(children, child)
			}
		}
	}

	for _, child := range children {
		node.Children = append(node.Children, buildTreeNode(child, names, visited))
	}
	return node
}

// Stats totals the shards below t. Repeats are not counted again and shards
// without any local replica are counted as missing.
func (t *TreeNode) Stats() TreeStats {
	var stats TreeStats
	for _, child := range t.Children {
		if child.Repeat {
			continue
		}
		stats.Shards++
		if child.Replicas == 0 {
			stats.Missing++
		}
		stats.Objects += child.Objects
		stats.Bytes += child.Bytes

		sub := child.Stats()
		stats.Shards += sub.Shards
		stats.Missing += sub.Missing
		stats.Objects += sub.Objects
		stats.Bytes += sub.Bytes
	}
	return stats
}
