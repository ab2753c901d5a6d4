package collector

import (
	"fmt"
	"os"
	"path/filepath"

	"shardinfo/pkg/broker"
	"shardinfo/pkg/config"
	"shardinfo/pkg/ring"
	"shardinfo/pkg/storage"
	"shardinfo/pkg/types"

	"go.uber.org/zap"
)

// Device is a ring device that may hold container databases.
type Device struct {
	ID     types.NodeID
	Device string
}

// Topology is what a config source resolves to: where devices are mounted
// and which devices serve container data.
type Topology struct {
	Devices string
	Nodes   []Device
}

// TopologyResolver turns a container server config into its Topology.
type TopologyResolver interface {
	Resolve(confPath string) (*Topology, error)
}

// Walker visits every container database under a set of datadirs.
type Walker interface {
	Walk(dirs []storage.Datadir, fn func(storage.Location) error) error
}

// OpenFunc opens one container database.
type OpenFunc func(path string) (types.Handle, error)

// Collector gathers container database handles from every local device of a
// container server into a shared NameMap.
type Collector struct {
	resolver TopologyResolver
	walker   Walker
	open     OpenFunc
	datadir  string
	logger   *zap.Logger
}

// New returns a Collector built from its collaborators. A nil logger discards logs.
func New(resolver TopologyResolver, walker Walker, open OpenFunc, datadir string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		resolver: resolver,
		walker:   walker,
		open:     open,
		datadir:  datadir,
		logger:   logger,
	}
}

// NewFromSettings wires the ring resolver, the round-robin walker and the
// sqlite broker.
func NewFromSettings(s *config.Settings, logger *zap.Logger) *Collector {
	return New(RingResolver{RingName: s.RingName}, storage.RoundRobinWalker{}, OpenBroker, s.Datadir, logger)
}

// Collect adds every container database served by the config at confPath to
// names. Devices without a local data directory are skipped. A config or
// ring that cannot be read is returned as an error.
func (c *Collector) Collect(confPath string, names types.NameMap) error {
	topo, err := c.resolver.Resolve(confPath)
	if err != nil {
		return fmt.Errorf("failed to resolve topology for %s: %w", confPath, err)
	}

	var dirs []storage.Datadir
	for _, node := range topo.Nodes {
		dir := filepath.Join(topo.Devices, node.Device, c.datadir)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			c.logger.Debug("Skipping device without datadir",
				zap.Int("node", int(node.ID)),
				zap.String("datadir", dir))
			continue
		}
		dirs = append(dirs, storage.Datadir{Path: dir, Node: node.ID})
	}

	c.logger.Info("Collecting container databases",
		zap.String("config", confPath),
		zap.Int("datadirs", len(dirs)))

	found := 0
	err = c.walker.Walk(dirs, func(loc storage.Location) error {
		h, err := c.open(loc.DBFile)
		if err != nil {
			c.logger.Warn("Failed to read container db",
				zap.String("db_file", loc.DBFile),
				zap.Int("node", int(loc.Node)),
				zap.Error(err))
			return nil
		}
		names.Put(loc.Node, h)
		found++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk datadirs for %s: %w", confPath, err)
	}

	c.logger.Debug("Collected container databases",
		zap.String("config", confPath),
		zap.Int("db_count", found))
	return nil
}

// OpenBroker opens a database with the sqlite backed broker.
func OpenBroker(path string) (types.Handle, error) {
	b, err := broker.Open(path)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// RingResolver resolves a container server config to the devices of the
// ring in its swift_dir.
type RingResolver struct {
	RingName string
}

// Resolve loads the replicator config and the ring it points at.
func (r RingResolver) Resolve(confPath string) (*Topology, error) {
	cfg, err := config.LoadReplicatorConfig(confPath)
	if err != nil {
		return nil, err
	}

	rg, err := ring.Load(cfg.SwiftDir, r.RingName)
	if err != nil {
		return nil, err
	}

	topo := &Topology{Devices: cfg.Devices}
	for _, dev := range rg.Devs {
		topo.Nodes = append(topo.Nodes, Device{ID: dev.ID, Device: dev.Device})
	}
	return topo, nil
}
