// Package inventory persists the device registry to SQLite.
//
// The in-memory registry is authoritative; rows here are a mirror kept
// for inspection across restarts. The manager writes through on every
// terminal-state insertion and every eviction, so after a clean pass
// the table matches the registry exactly.
package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/manager"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

// ErrNotFound is returned when a device row does not exist.
var ErrNotFound = errors.New("inventory: device not found")

// Row is a persisted device record.
type Row struct {
	ID        device.ID       `json:"id"`
	Class     device.Class    `json:"class"`
	State     device.State    `json:"state"`
	Failure   string          `json:"failure,omitempty"`
	VendorID  uint32          `json:"vendor_id"`
	ProductID uint32          `json:"product_id"`
	IRQs      []uint32        `json:"irqs,omitempty"`
	DMAs      []uint32        `json:"dmas,omitempty"`
	MMIO      resource.Region `json:"mmio"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
}

// Filter controls which rows List returns. Zero values match everything.
type Filter struct {
	Family device.Family
	Class  device.Class
	State  device.State
}

// SQLiteStore persists device records in the devices table.
// It implements manager.Recorder.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open database with the
// devices migration applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// RecordDevice upserts the row for a device. Called by the manager
// whenever a record reaches a terminal state or its descriptor is
// refreshed.
func (s *SQLiteStore) RecordDevice(ctx context.Context, v manager.View) error {
	irqs, err := marshalLines(v.IRQs)
	if err != nil {
		return fmt.Errorf("marshalling irq lines: %w", err)
	}
	dmas, err := marshalLines(v.DMAs)
	if err != nil {
		return fmt.Errorf("marshalling dma channels: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO devices (id, family, address, class, state, failure,
		                      vendor_id, product_id, irqs, dmas,
		                      mmio_base, mmio_size, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     class      = excluded.class,
		     state      = excluded.state,
		     failure    = excluded.failure,
		     vendor_id  = excluded.vendor_id,
		     product_id = excluded.product_id,
		     irqs       = excluded.irqs,
		     dmas       = excluded.dmas,
		     mmio_base  = excluded.mmio_base,
		     mmio_size  = excluded.mmio_size,
		     last_seen  = excluded.last_seen`,
		v.ID.String(), string(v.ID.Family), v.ID.Address,
		string(v.Class), string(v.State), nullableString(v.Failure),
		v.VendorID, v.ProductID, irqs, dmas,
		int64(v.MMIO.Base), int64(v.MMIO.Size),
		v.FirstSeen.UTC().Format(time.RFC3339),
		v.LastSeen.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device %s: %w", v.ID, err)
	}
	return nil
}

// ForgetDevice deletes the row for an evicted device. Deleting a row
// that was never recorded is not an error.
func (s *SQLiteStore) ForgetDevice(ctx context.Context, id device.ID) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM devices WHERE id = ?", id.String(),
	); err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	return nil
}

// Get returns the persisted row for one device.
func (s *SQLiteStore) Get(ctx context.Context, id device.ID) (*Row, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" FROM devices WHERE id = ?", id.String(),
	)
	r, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns persisted rows matching the filter, ordered by ID.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Row, error) {
	var conditions []string
	var args []any

	if filter.Family != "" {
		conditions = append(conditions, "family = ?")
		args = append(args, string(filter.Family))
	}
	if filter.Class != "" {
		conditions = append(conditions, "class = ?")
		args = append(args, string(filter.Class))
	}
	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, string(filter.State))
	}

	query := selectColumns + " FROM devices"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return out, nil
}

// Count returns the number of persisted rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices",
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return n, nil
}

const selectColumns = `SELECT family, address, class, state, failure,
       vendor_id, product_id, irqs, dmas, mmio_base, mmio_size,
       first_seen, last_seen`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*Row, error) {
	var (
		r           Row
		family      string
		class       string
		state       string
		failure     sql.NullString
		irqs, dmas  sql.NullString
		base, size  int64
		first, last string
	)
	if err := sc.Scan(
		&family, &r.ID.Address, &class, &state, &failure,
		&r.VendorID, &r.ProductID, &irqs, &dmas, &base, &size,
		&first, &last,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning device row: %w", err)
	}

	r.ID.Family = device.Family(family)
	r.Class = device.Class(class)
	r.State = device.State(state)
	r.Failure = failure.String
	r.MMIO = resource.Region{Base: uint64(base), Size: uint64(size)}

	var err error
	if r.IRQs, err = unmarshalLines(irqs); err != nil {
		return nil, fmt.Errorf("decoding irq lines: %w", err)
	}
	if r.DMAs, err = unmarshalLines(dmas); err != nil {
		return nil, fmt.Errorf("decoding dma channels: %w", err)
	}

	// Timestamps are written by us in RFC3339; ignore parse errors.
	r.FirstSeen, _ = time.Parse(time.RFC3339, first) //nolint:errcheck // Format is controlled
	r.LastSeen, _ = time.Parse(time.RFC3339, last)   //nolint:errcheck // Format is controlled
	return &r, nil
}

// marshalLines encodes line numbers as a JSON array, or nil for none.
func marshalLines(lines []uint32) (any, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalLines(col sql.NullString) ([]uint32, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var lines []uint32
	if err := json.Unmarshal([]byte(col.String), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
