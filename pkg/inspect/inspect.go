package inspect

import (
	"fmt"
	"sort"

	"shardinfo/pkg/report"
	"shardinfo/pkg/types"

	"go.uber.org/zap"
)

// Collector fills a NameMap from one container server config.
type Collector interface {
	Collect(confPath string, names types.NameMap) error
}

// Inspector drives a full run: collect every config into one map, then
// report each root container.
type Inspector struct {
	collector Collector
	logger    *zap.Logger
}

// New returns an Inspector over collector. A nil logger discards logs.
func New(collector Collector, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{collector: collector, logger: logger}
}

// Collect runs the collector for each config into one shared map. The first
// config that cannot be resolved aborts the run.
func (i *Inspector) Collect(confPaths []string) (types.NameMap, error) {
	names := types.NewNameMap()
	for _, path := range confPaths {
		if err := i.collector.Collect(path, names); err != nil {
			return nil, err
		}
	}
	i.logger.Debug("Collection finished",
		zap.Int("configs", len(confPaths)),
		zap.Int("containers", len(names)))
	return names, nil
}

// Run collects and writes the report for every root container.
func (i *Inspector) Run(confPaths []string, r *report.Renderer) error {
	names, err := i.Collect(confPaths)
	if err != nil {
		return err
	}
	return Render(names, r)
}

// Render reports every container that at least one replica says is a root.
// Each root gets its own visited set; containers only known as shards are
// reached through their roots.
func Render(names types.NameMap, r *report.Renderer) error {
	for _, id := range names.Identities() {
		if !names.HasRoot(id) {
			continue
		}
		r.RenderContainer(id, names, types.ContainerRoot, 0, report.NewVisited())
		if err := r.Err(); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// RootSummary condenses what the replicas of one root container report.
type RootSummary struct {
	Identity   types.Identity
	Replicas   int
	States     []types.DBState
	MinObjects int64
	MaxObjects int64
	MinBytes   int64
	MaxBytes   int64
	// Shards counts the distinct live shard ranges known to any replica.
	Shards int
	// Mismatches counts replicas that classify themselves as shards.
	Mismatches int
}

// Roots collects confPaths and summarizes every root container.
func (i *Inspector) Roots(confPaths []string) ([]RootSummary, error) {
	names, err := i.Collect(confPaths)
	if err != nil {
		return nil, err
	}
	return Summarize(names), nil
}

// Summarize returns a RootSummary for every root container in names, in identity order.
func Summarize(names types.NameMap) []RootSummary {
	var summaries []RootSummary
	for _, id := range names.Identities() {
		if !names.HasRoot(id) {
			continue
		}

		s := RootSummary{Identity: id}
		states := make(map[types.DBState]bool)
		shards := make(map[types.Identity]bool)
		for i, node := range names.Nodes(id) {
			h := names[id][node]
			info := h.Info()
			if i == 0 || info.ObjectCount < s.MinObjects {
				s.MinObjects = info.ObjectCount
			}
			if i == 0 || info.ObjectCount > s.MaxObjects {
				s.MaxObjects = info.ObjectCount
			}
			if i == 0 || info.BytesUsed < s.MinBytes {
				s.MinBytes = info.BytesUsed
			}
			if i == 0 || info.BytesUsed > s.MaxBytes {
				s.MaxBytes = info.BytesUsed
			}
			if !h.IsRoot() {
				s.Mismatches++
			}
			states[h.DBState()] = true
			for _, sr := range h.ShardRanges(types.ShardRangeFilter{}) {
				shards[sr.Identity()] = true
			}
			s.Replicas++
		}

		for state := range states {
			s.States = append(s.States, state)
		}
		sort.Slice(s.States, func(i, j int) bool { return s.States[i] < s.States[j] })
		s.Shards = len(shards)
		summaries = append(summaries, s)
	}
	return summaries
}
