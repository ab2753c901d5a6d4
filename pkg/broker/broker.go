// Package broker reads the metadata and shard ranges of one on-disk
// container database. Databases are opened read-only and closed before Open
// returns; a Broker is an in-memory snapshot.
package broker

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shardinfo/pkg/storage"
	"shardinfo/pkg/types"

	_ "modernc.org/sqlite"
)

const (
	sysmetaPrefix   = "X-Container-Sysmeta-"
	shardPrefix     = sysmetaPrefix + "Shard-"
	quotedRootKey   = shardPrefix + "Quoted-Root"
	legacyRootKey   = shardPrefix + "Root"
	shardRangeTable = "shard_range"
)

// Broker is a snapshot of one replica of a container database.
type Broker struct {
	dbFile      string
	state       types.DBState
	info        types.ContainerInfo
	metadata    map[string]string
	shardRanges []types.ShardRange
}

// Open reads the container database at path. While a container is sharding
// the newest database next to path is read instead, since only it receives
// updates.
func Open(path string) (*Broker, error) {
	path = storage.NewestDBFile(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat db: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open db %s: %w", path, err)
	}
	defer db.Close()

	b := &Broker{dbFile: path}
	if err := b.loadInfo(db); err != nil {
		return nil, fmt.Errorf("failed to read info from %s: %w", path, err)
	}
	if err := b.loadShardRanges(db); err != nil {
		return nil, fmt.Errorf("failed to read shard ranges from %s: %w", path, err)
	}
	b.state = b.detectState()
	return b, nil
}

func (b *Broker) loadInfo(db *sql.DB) error {
	var (
		account, container         string
		createdAt, putTS, deleteTS sql.NullString
		objectCount, bytesUsed     sql.NullInt64
		status, metadata           sql.NullString
	)
	row := db.QueryRow(`SELECT account, container, created_at, put_timestamp, delete_timestamp,
		object_count, bytes_used, status, metadata FROM container_stat`)
	if err := row.Scan(&account, &container, &createdAt, &putTS, &deleteTS,
		&objectCount, &bytesUsed, &status, &metadata); err != nil {
		return err
	}

	info := types.ContainerInfo{
		Account:     account,
		Container:   container,
		ObjectCount: objectCount.Int64,
		BytesUsed:   bytesUsed.Int64,
		Status:      status.String,
	}
	var err error
	if info.CreatedAt, err = types.ParseTimestamp(createdAt.String); err != nil {
		return err
	}
	if info.PutTimestamp, err = types.ParseTimestamp(putTS.String); err != nil {
		return err
	}
	if info.DeleteTimestamp, err = types.ParseTimestamp(deleteTS.String); err != nil {
		return err
	}
	b.info = info

	b.metadata, err = parseMetadata(metadata.String)
	return err
}

// parseMetadata decodes the metadata column, a JSON object mapping each key
// to a [value, timestamp] pair. Keys with an empty value have been removed.
func parseMetadata(raw string) (map[string]string, error) {
	md := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return md, nil
	}

	var items map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	for key, item := range items {
		var pair []interface{}
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) == 0 {
			continue
		}
		value, ok := pair[0].(string)
		if !ok || value == "" {
			continue
		}
		md[key] = value
	}
	return md, nil
}

func (b *Broker) loadShardRanges(db *sql.DB) error {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, shardRangeTable).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	rows, err := db.Query(`SELECT name, timestamp, lower, upper, object_count, bytes_used,
		meta_timestamp, deleted, state, state_timestamp, epoch FROM shard_range
		ORDER BY upper = '', upper, state, lower, name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sr                            types.ShardRange
			ts, metaTS, stateTS, epoch    sql.NullString
			lower, upper                  sql.NullString
			objectCount, bytesUsed, state sql.NullInt64
			deleted                       sql.NullInt64
		)
		if err := rows.Scan(&sr.Name, &ts, &lower, &upper, &objectCount, &bytesUsed,
			&metaTS, &deleted, &state, &stateTS, &epoch); err != nil {
			return err
		}
		sr.Lower = lower.String
		sr.Upper = upper.String
		sr.ObjectCount = objectCount.Int64
		sr.BytesUsed = bytesUsed.Int64
		sr.State = types.ShardRangeState(state.Int64)
		sr.Deleted = deleted.Int64 != 0

		for _, f := range []struct {
			dst *types.Timestamp
			src sql.NullString
		}{
			{&sr.Timestamp, ts},
			{&sr.MetaTimestamp, metaTS},
			{&sr.StateTimestamp, stateTS},
			{&sr.Epoch, epoch},
		} {
			parsed, err := types.ParseTimestamp(f.src.String)
			if err != nil {
				return fmt.Errorf("shard range %s: %w", sr.Name, err)
			}
			*f.dst = parsed
		}
		b.shardRanges = append(b.shardRanges, sr)
	}
	return rows.Err()
}

// detectState derives the sharding state from the database files that sit
// next to this one in its hash directory.
func (b *Broker) detectState() types.DBState {
	hash, epoch := storage.SplitDBFile(b.dbFile)
	files := storage.DBFiles(filepath.Dir(b.dbFile), hash)

	switch {
	case len(files) == 0:
		return types.DBNotFound
	case len(files) > 1:
		return types.DBSharding
	case epoch == "":
		return types.DBUnsharded
	case len(b.ShardRanges(types.ShardRangeFilter{})) == 0:
		return types.DBCollapsed
	default:
		return types.DBSharded
	}
}

func (b *Broker) Identity() types.Identity {
	return types.Identity{Account: b.info.Account, Container: b.info.Container}
}

func (b *Broker) DBFile() string {
	return b.dbFile
}

func (b *Broker) Info() types.ContainerInfo {
	return b.info
}

func (b *Broker) DBState() types.DBState {
	return b.state
}

// RootPath is the account/container of the root this container belongs to.
// A container with no root sysmeta is its own root.
func (b *Broker) RootPath() string {
	if quoted, ok := b.metadata[quotedRootKey]; ok {
		if root, err := url.PathUnescape(quoted); err == nil {
			return root
		}
		return quoted
	}
	if root, ok := b.metadata[legacyRootKey]; ok {
		return root
	}
	return b.Identity().String()
}

// IsRoot reports whether the container is its own root.
func (b *Broker) IsRoot() bool {
	return b.RootPath() == b.Identity().String()
}

// ShardingInfo renders the shard sysmeta, e.g. "{Quoted-Root: a/c, Scan-Done: True}".
func (b *Broker) ShardingInfo() string {
	var keys []string
	for key := range b.metadata {
		if strings.HasPrefix(key, shardPrefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, strings.TrimPrefix(key, shardPrefix)+": "+b.metadata[key])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (b *Broker) ShardRanges(filter types.ShardRangeFilter) []types.ShardRange {
	return types.FilterShardRanges(b.Identity(), b.shardRanges, filter)
}
