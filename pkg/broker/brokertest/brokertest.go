// Package brokertest writes container databases for tests.
package brokertest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"shardinfo/pkg/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE container_stat (
	account TEXT,
	container TEXT,
	created_at TEXT,
	put_timestamp TEXT DEFAULT '0',
	delete_timestamp TEXT DEFAULT '0',
	object_count INTEGER,
	bytes_used INTEGER,
	reported_put_timestamp TEXT DEFAULT '0',
	reported_delete_timestamp TEXT DEFAULT '0',
	reported_object_count INTEGER DEFAULT 0,
	reported_bytes_used INTEGER DEFAULT 0,
	hash TEXT DEFAULT '00000000000000000000000000000000',
	id TEXT,
	status TEXT DEFAULT '',
	status_changed_at TEXT DEFAULT '0',
	metadata TEXT DEFAULT '',
	x_container_sync_point1 INTEGER DEFAULT -1,
	x_container_sync_point2 INTEGER DEFAULT -1,
	storage_policy_index INTEGER DEFAULT 0,
	reconciler_sync_point INTEGER DEFAULT -1
);`

const shardRangeSchema = `
CREATE TABLE shard_range (
	ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	timestamp TEXT,
	lower TEXT,
	upper TEXT,
	object_count INTEGER DEFAULT 0,
	bytes_used INTEGER DEFAULT 0,
	meta_timestamp TEXT,
	deleted INTEGER DEFAULT 0,
	state INTEGER,
	state_timestamp TEXT,
	epoch TEXT,
	reported INTEGER DEFAULT 0,
	tombstones INTEGER DEFAULT -1
);`

// Container describes the database to write.
type Container struct {
	Account         string
	Container       string
	PutTimestamp    string
	DeleteTimestamp string
	ObjectCount     int64
	BytesUsed       int64
	// Metadata values are stored with PutTimestamp as their timestamp.
	Metadata    map[string]string
	ShardRanges []types.ShardRange
	// LegacySchema leaves out the shard_range table.
	LegacySchema bool
}

// Create writes c as a container database at path, creating parent directories.
func Create(path string, c Container) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create container_stat: %w", err)
	}

	put := c.PutTimestamp
	if put == "" {
		put = "1500000000.00000"
	}
	del := c.DeleteTimestamp
	if del == "" {
		del = "0"
	}

	md := make(map[string][2]string, len(c.Metadata))
	for k, v := range c.Metadata {
		md[k] = [2]string{v, put}
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return err
	}

	if _, err := db.Exec(`INSERT INTO container_stat (account, container, created_at, put_timestamp,
		delete_timestamp, object_count, bytes_used, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Account, c.Container, put, put, del, c.ObjectCount, c.BytesUsed, string(mdJSON)); err != nil {
		return fmt.Errorf("failed to insert container_stat: %w", err)
	}

	if c.LegacySchema {
		return nil
	}
	if _, err := db.Exec(shardRangeSchema); err != nil {
		return fmt.Errorf("failed to create shard_range: %w", err)
	}

	for _, sr := range c.ShardRanges {
		var epoch interface{}
		if !sr.Epoch.IsZero() {
			epoch = sr.Epoch.Internal()
		}
		deleted := 0
		if sr.Deleted {
			deleted = 1
		}
		if _, err := db.Exec(`INSERT INTO shard_range (name, timestamp, lower, upper, object_count,
			bytes_used, meta_timestamp, deleted, state, state_timestamp, epoch)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sr.Name, sr.Timestamp.Internal(), sr.Lower, sr.Upper, sr.ObjectCount, sr.BytesUsed,
			sr.MetaTimestamp.Internal(), deleted, int(sr.State), sr.StateTimestamp.Internal(), epoch); err != nil {
			return fmt.Errorf("failed to insert shard range %s: %w", sr.Name, err)
		}
	}
	return nil
}
