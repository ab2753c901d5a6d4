package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shardinfo/pkg/types"
)

// DBSuffix ends every container database file name.
const DBSuffix = ".db"

// Datadir is one node's container data directory, e.g. /srv/node/sdb1/containers.
type Datadir struct {
	Path string
	Node types.NodeID
}

// Location is a container database found while walking a datadir.
type Location struct {
	Node      types.NodeID
	Partition string
	DBFile    string
}

// RoundRobinWalker walks several datadirs at once, taking one database from
// each in turn so a slow or very large device cannot hold up the others.
type RoundRobinWalker struct{}

func (RoundRobinWalker) Walk(dirs []Datadir, fn func(Location) error) error {
	return RoundRobin(dirs, fn)
}

// RoundRobin calls fn for every database under dirs, interleaving nodes one
// database at a time. Directories are read lazily. It stops at the first
// error returned by fn.
func RoundRobin(dirs []Datadir, fn func(Location) error) error {
	walkers := make([]*dirWalker, 0, len(dirs))
	for _, d := range dirs {
		walkers = append(walkers, newDirWalker(d))
	}

	for len(walkers) > 0 {
		active := walkers[:0]
		for _, w := range walkers {
			loc, ok := w.next()
			if !ok {
				continue
			}
			if err := fn(loc); err != nil {
				return err
			}
			active = append(active, w)
		}
		walkers = active
	}
	return nil
}

// dirWalker iterates <datadir>/<partition>/<suffix>/<hash>/ one hash dir at a time.
type dirWalker struct {
	datadir Datadir

	partitions []string
	suffixes   []string
	hashes     []string

	partition string
	suffix    string
}

func newDirWalker(d Datadir) *dirWalker {
	w := &dirWalker{datadir: d}
	for _, name := range listDirs(d.Path) {
		if isPartition(name) {
			w.partitions = append(w.partitions, name)
		}
	}
	return w
}

func (w *dirWalker) next() (Location, bool) {
	for {
		for len(w.hashes) > 0 {
			hash := w.hashes[0]
			w.hashes = w.hashes[1:]
			dir := filepath.Join(w.datadir.Path, w.partition, w.suffix, hash)
			if dbFile := findDBFile(dir, hash); dbFile != "" {
				return Location{Node: w.datadir.Node, Partition: w.partition, DBFile: dbFile}, true
			}
		}

		if len(w.suffixes) > 0 {
			w.suffix = w.suffixes[0]
			w.suffixes = w.suffixes[1:]
			w.hashes = listDirs(filepath.Join(w.datadir.Path, w.partition, w.suffix))
			continue
		}

		if len(w.partitions) > 0 {
			w.partition = w.partitions[0]
			w.partitions = w.partitions[1:]
			w.suffixes = listDirs(filepath.Join(w.datadir.Path, w.partition))
			continue
		}

		return Location{}, false
	}
}

// findDBFile picks the database in a hash dir that holds the current state:
// the newest of <hash>.db and <hash>_<epoch>.db.
func findDBFile(dir, hash string) string {
	files := DBFiles(dir, hash)
	if len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

// DBFiles lists the databases for hash in dir, oldest first: the legacy
// <hash>.db, then each <hash>_<epoch>.db in epoch order. More than one file
// means the container is sharding.
func DBFiles(dir, hash string) []string {
	var files []string
	legacy := filepath.Join(dir, hash+DBSuffix)
	if info, err := os.Stat(legacy); err == nil && info.Mode().IsRegular() {
		files = append(files, legacy)
	}

	fresh, err := filepath.Glob(filepath.Join(dir, hash+"_*"+DBSuffix))
	if err != nil {
		return files
	}
	sort.Strings(fresh)
	return append(files, fresh...)
}

// NewestDBFile returns the newest database sharing path's hash dir and hash,
// or path itself when there is none.
func NewestDBFile(path string) string {
	hash, _ := SplitDBFile(path)
	if newest := findDBFile(filepath.Dir(path), hash); newest != "" {
		return newest
	}
	return path
}

// SplitDBFile returns the hash and epoch encoded in a database file name.
// The epoch is empty for a legacy database.
func SplitDBFile(path string) (hash, epoch string) {
	base := strings.TrimSuffix(filepath.Base(path), DBSuffix)
	hash, epoch, _ = strings.Cut(base, "_")
	return hash, epoch
}

// listDirs returns the sorted names of the subdirectories of dir. Unreadable
// directories are treated as empty.
func listDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names
}

func isPartition(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
