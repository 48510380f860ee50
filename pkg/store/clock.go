package store

import (
	"fmt"
	"hash/fnv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sqliteClockLayout matches the text produced by strftime('%Y-%m-%d %H:%M:%f', 'now').
const sqliteClockLayout = "2006-01-02 15:04:05.999"

// now reads the current instant from the database server's clock, in UTC.
//
// Lease expiry and heartbeat deadlines are compared against this value on
// rows already loaded under lock, never in SQL. SQLite stores timestamps as
// text whose fractional seconds have variable width, so lexicographic
// comparison inside a query would order ".15" before ".2"; fetching the
// clock once per transaction and comparing in Go sidesteps that entirely
// and gives both backends identical semantics.
func (s *GORMStore) now(tx *gorm.DB) (time.Time, error) {
	if s.config.Type == DatabaseTypePostgres {
		var now time.Time
		if err := tx.Raw("SELECT now()").Scan(&now).Error; err != nil {
			return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
		}
		return now.UTC(), nil
	}

	var raw string
	if err := tx.Raw("SELECT strftime('%Y-%m-%d %H:%M:%f', 'now')").Scan(&raw).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	now, err := time.ParseInLocation(sqliteClockLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse database clock value %q: %w", raw, err)
	}
	return now, nil
}

// resourceKey hashes a resource name into the 64-bit key space of Postgres
// advisory locks.
func resourceKey(resource string) int64 {
	h := fnv.New64a()
	h.Write([]byte(resource))
	return int64(h.Sum64())
}

// lockResource serializes writers for one resource within the surrounding
// transaction. FOR UPDATE alone cannot serialize the first acquisition of a
// resource, because there is no row to lock before the first insert; the
// transaction-scoped advisory lock closes that gap and is released
// automatically at commit or rollback.
//
// SQLite needs no equivalent: the store holds a single connection, so its
// write transactions are serialized in-process.
func (s *GORMStore) lockResource(tx *gorm.DB, resource string) error {
	if s.config.Type != DatabaseTypePostgres {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", resourceKey(resource)).Error
}

// locking adds FOR UPDATE on backends that support it. SQLite has no
// row-level locking and rejects the clause.
func (s *GORMStore) locking(tx *gorm.DB) *gorm.DB {
	if s.config.Type == DatabaseTypePostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
