package types

import (
	"sort"
	"strings"
)

// NodeID is the ring device id of one storage replica
type NodeID int

// Identity is the (account, container) pair that names a logical container
type Identity struct {
	Account   string
	Container string
}

// ParseIdentity splits a shard range name of the form "account/container".
func ParseIdentity(name string) Identity {
	account, container, found := strings.Cut(name, "/")
	if !found {
		return Identity{Account: name}
	}
	return Identity{Account: account, Container: container}
}

func (id Identity) String() string {
	if id.Container == "" {
		return id.Account
	}
	return id.Account + "/" + id.Container
}

// ContainerType is ROOT or SHARD.
type ContainerType string

const (
	ContainerRoot  ContainerType = "ROOT"
	ContainerShard ContainerType = "SHARD"
)

// TypeOf classifies a replica by its own view of whether it is a root
func TypeOf(h Handle) ContainerType {
	if h.IsRoot() {
		return ContainerRoot
	}
	return ContainerShard
}

// DBState describes which on-disk database files a container currently has
type DBState string

const (
	DBUnsharded DBState = "unsharded"
	DBSharding  DBState = "sharding"
	DBSharded   DBState = "sharded"
	DBCollapsed DBState = "collapsed"
	DBNotFound  DBState = "not_found"
)

// ContainerInfo is the container_stat row of one replica.
type ContainerInfo struct {
	Account         string
	Container       string
	CreatedAt       Timestamp
	PutTimestamp    Timestamp
	DeleteTimestamp Timestamp
	ObjectCount     int64
	BytesUsed       int64
	Status          string
}

// Deleted reports whether the most recent operation on the container was a delete.
func (ci ContainerInfo) Deleted() bool {
	return !ci.DeleteTimestamp.IsZero() && ci.DeleteTimestamp.After(ci.PutTimestamp)
}

// Handle is one replica's view of a container database.
type Handle interface {
	Identity() Identity
	DBFile() string
	Info() ContainerInfo
	DBState() DBState
	IsRoot() bool
	ShardingInfo() string
	ShardRanges(filter ShardRangeFilter) []ShardRange
}

// NameMap groups replica handles by container identity and node.
type NameMap map[Identity]map[NodeID]Handle

// NewNameMap returns an empty NameMap.
func NewNameMap() NameMap {
	return make(NameMap)
}

// Put records h as the replica held by node. A later handle for the same
// identity and node replaces the earlier one.
func (m NameMap) Put(node NodeID, h Handle) {
	id := h.Identity()
	nodes, ok := m[id]
	if !ok {
		nodes = make(map[NodeID]Handle)
		m[id] = nodes
	}
	nodes[node] = h
}

// Nodes returns the nodes holding a replica of id in ascending order.
func (m NameMap) Nodes(id Identity) []NodeID {
	nodes := make([]NodeID, 0, len(m[id]))
	for node := range m[id] {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Identities returns every identity in the map, sorted.
func (m NameMap) Identities() []Identity {
	ids := make([]Identity, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	SortIdentities(ids)
	return ids
}

// HasRoot reports whether any replica of id claims to be a root container.
func (m NameMap) HasRoot(id Identity) bool {
	for _, h := range m[id] {
		if h.IsRoot() {
			return true
		}
	}
	return false
}

// SortIdentities orders ids by account, then container.
func SortIdentities(ids []Identity) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Account != ids[j].Account {
			return ids[i].Account < ids[j].Account
		}
		return ids[i].Container < ids[j].Container
	})
}
