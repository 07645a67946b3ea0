package tables

import (
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// DefaultBroadcastTableSize bounds the broadcast transaction table.
const DefaultBroadcastTableSize = 64

// broadcastKey dedups re-forwarded broadcasts by (source, sequence
// number) (§3).
type broadcastKey struct {
	Src nwkaddr.Addr
	Seq uint8
}

type broadcastRecord struct {
	expiration simtime.Time
	retryCount int
}

// BroadcastTable suppresses re-forwarding of broadcasts this node has
// already seen (§4.3, §4.5).
type BroadcastTable struct {
	maxSize int
	entries map[broadcastKey]*broadcastRecord
}

func NewBroadcastTable(maxSize int) *BroadcastTable {
	if maxSize <= 0 {
		maxSize = DefaultBroadcastTableSize
	}
	return &BroadcastTable{maxSize: maxSize, entries: make(map[broadcastKey]*broadcastRecord)}
}

func (t *BroadcastTable) purgeExpired(now simtime.Time) {
	for k, r := range t.entries {
		if !now.Before(r.expiration) {
			delete(t.entries, k)
		}
	}
}

// Seen reports whether (src, seq) is already recorded (a duplicate to
// be dropped), purging expired entries first.
func (t *BroadcastTable) Seen(src nwkaddr.Addr, seq uint8, now simtime.Time) bool {
	t.purgeExpired(now)
	_, ok := t.entries[broadcastKey{Src: src, Seq: seq}]
	return ok
}

// Record inserts a first-sighting entry for (src, seq) with the given
// expiration, failing with ErrTableFull if the table is at capacity.
func (t *BroadcastTable) Record(src nwkaddr.Addr, seq uint8, expiration simtime.Time) error {
	key := broadcastKey{Src: src, Seq: seq}
	if _, exists := t.entries[key]; !exists && len(t.entries) >= t.maxSize {
		return ErrTableFull
	}
	t.entries[key] = &broadcastRecord{expiration: expiration}
	return nil
}

func (t *BroadcastTable) Len() int { return len(t.entries) }
