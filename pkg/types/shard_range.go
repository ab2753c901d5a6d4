package types

import (
	"fmt"
	"sort"
)

// ShardRangeState is the lifecycle state of a shard range.
type ShardRangeState int

const (
	StateFound     ShardRangeState = 10
	StateCreated   ShardRangeState = 20
	StateCleaved   ShardRangeState = 30
	StateActive    ShardRangeState = 40
	StateShrinking ShardRangeState = 50
	StateSharding  ShardRangeState = 60
	StateSharded   ShardRangeState = 70
	StateShrunk    ShardRangeState = 80
)

var stateNames = map[ShardRangeState]string{
	StateFound:     "found",
	StateCreated:   "created",
	StateCleaved:   "cleaved",
	StateActive:    "active",
	StateShrinking: "shrinking",
	StateSharding:  "sharding",
	StateSharded:   "sharded",
	StateShrunk:    "shrunk",
}

func (s ShardRangeState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ShardRange describes the namespace interval owned by one shard container.
// An empty Upper means the range is unbounded above.
type ShardRange struct {
	Name           string
	Lower          string
	Upper          string
	ObjectCount    int64
	BytesUsed      int64
	Timestamp      Timestamp
	MetaTimestamp  Timestamp
	State          ShardRangeState
	StateTimestamp Timestamp
	Epoch          Timestamp
	Deleted        bool
}

// Identity returns the container the range is assigned to.
func (sr ShardRange) Identity() Identity {
	return ParseIdentity(sr.Name)
}

// ShardRangeFilter selects shard ranges from a replica. By default the
// container's own range and deleted ranges are left out.
type ShardRangeFilter struct {
	IncludeDeleted bool
	IncludeOwn     bool
	ExcludeOthers  bool
}

var (
	AllShardRanges = ShardRangeFilter{IncludeDeleted: true}
	OwnShardRange  = ShardRangeFilter{IncludeDeleted: true, IncludeOwn: true, ExcludeOthers: true}
)

// FilterShardRanges applies filter to the ranges stored by container own.
func FilterShardRanges(own Identity, ranges []ShardRange, filter ShardRangeFilter) []ShardRange {
	out := make([]ShardRange, 0, len(ranges))
	for _, sr := range ranges {
		if sr.Deleted && !filter.IncludeDeleted {
			continue
		}
		isOwn := sr.Identity() == own
		if isOwn && !filter.IncludeOwn {
			continue
		}
		if !isOwn && filter.ExcludeOthers {
			continue
		}
		out = append(out, sr)
	}
	return out
}

// SortLiveFirst orders ranges so every non-deleted range precedes every
// deleted one, keeping the relative order within each group.
func SortLiveFirst(ranges []ShardRange) {
	sort.SliceStable(ranges, func(i, j int) bool {
		return !ranges[i].Deleted && ranges[j].Deleted
	})
}
