package ring

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"shardinfo/pkg/types"
)

const (
	magic   = "R1NG"
	version = 1
)

var (
	ErrBadMagic   = errors.New("not a ring file")
	ErrBadVersion = errors.New("unsupported ring version")
)

// Device is one entry of the ring's device list.
type Device struct {
	ID              types.NodeID `json:"id"`
	Region          int          `json:"region"`
	Zone            int          `json:"zone"`
	IP              string       `json:"ip"`
	Port            int          `json:"port"`
	ReplicationIP   string       `json:"replication_ip"`
	ReplicationPort int          `json:"replication_port"`
	Device          string       `json:"device"`
	Weight          float64      `json:"weight"`
	Meta            string       `json:"meta"`
}

// Ring holds the metadata of a serialized ring. The partition assignment
// table that follows the metadata is not read.
type Ring struct {
	Name         string
	Devs         []Device
	PartShift    int
	ReplicaCount int
}

type header struct {
	Devs         []*Device `json:"devs"`
	PartShift    int       `json:"part_shift"`
	ReplicaCount int       `json:"replica_count"`
}

// Path returns where the ring named name lives under swiftDir.
func Path(swiftDir, name string) string {
	return filepath.Join(swiftDir, name+".ring.gz")
}

// Load reads the ring named name (e.g. "container") from swiftDir.
func Load(swiftDir, name string) (*Ring, error) {
	path := Path(swiftDir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ring: %w", err)
	}
	defer f.Close()

	r, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load ring %s: %w", path, err)
	}
	r.Name = name
	return r, nil
}

// Read decodes a gzipped ring from r.
func Read(r io.Reader) (*Ring, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	br := bufio.NewReader(gz)

	prefix := make([]byte, len(magic))
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if string(prefix) != magic {
		return nil, ErrBadMagic
	}

	var v uint16
	if err := binary.Read(br, binary.BigEndian, &v); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	if v != version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	var length uint32
	if err := binary.Read(br, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read header length: %w", err)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	ring := &Ring{
		PartShift:    h.PartShift,
		ReplicaCount: h.ReplicaCount,
	}
	for _, dev := range h.Devs {
		// removed devices leave a null hole so ids stay positional
		if dev == nil {
			continue
		}
		ring.Devs = append(ring.Devs, *dev)
	}
	return ring, nil
}

// Write encodes the ring metadata in the format Read expects. No partition
// table is written.
func Write(w io.Writer, r *Ring) error {
	gz := gzip.NewWriter(w)

	devs := make([]*Device, 0, len(r.Devs))
	for i := range r.Devs {
		devs = append(devs, &r.Devs[i])
	}
	data, err := json.Marshal(header{Devs: devs, PartShift: r.PartShift, ReplicaCount: r.ReplicaCount})
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	if _, err := gz.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(gz, binary.BigEndian, uint16(version)); err != nil {
		return err
	}
	if err := binary.Write(gz, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	if _, err := gz.Write(data); err != nil {
		return err
	}
	return gz.Close()
}
