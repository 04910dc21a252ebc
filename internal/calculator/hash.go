package calculator

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/mmynk/splitledger/internal/models"
)

// InvalidationHash fingerprints a record collection. Per-record digests are
// XOR-folded, so the result does not depend on record order. Every field
// that can change a balance goes into a record's digest.
func InvalidationHash(records []models.Expense) uint64 {
	var h uint64
	for _, e := range records {
		h ^= recordHash(e)
	}
	return h
}

// SnapshotHash fingerprints records together with group membership. Pair
// and group balances depend on both, so a membership change with unchanged
// records still yields a new hash.
func SnapshotHash(records []models.Expense, groups []models.Group) uint64 {
	var members uint64
	for _, g := range groups {
		members ^= groupHash(g)
	}
	d := xxhash.New()
	writeUint(d, InvalidationHash(records))
	writeUint(d, members)
	return d.Sum64()
}

func groupHash(g models.Group) uint64 {
	d := xxhash.New()
	writeString(d, g.ID)
	sorted := slices.Clone(g.Members)
	slices.Sort(sorted)
	for _, m := range slices.Compact(sorted) {
		writeString(d, m)
	}
	return d.Sum64()
}

func recordHash(e models.Expense) uint64 {
	d := xxhash.New()
	writeString(d, e.ID)
	writeFloat(d, e.TotalAmount)
	writeString(d, e.GroupID)
	writeString(d, string(e.Type))
	for _, p := range e.PaidBy {
		writeString(d, p.UserID)
		writeFloat(d, p.Amount)
	}
	// Separates payers from participants so moving an entry across changes the digest.
	d.Write([]byte{0xff})
	for _, s := range e.Participants {
		writeString(d, s.UserID)
		writeFloat(d, s.Amount)
	}
	return d.Sum64()
}

func writeString(d *xxhash.Digest, s string) {
	writeUint(d, uint64(len(s)))
	d.WriteString(s)
}

func writeUint(d *xxhash.Digest, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	d.Write(b[:])
}

func writeFloat(d *xxhash.Digest, f float64) {
	writeUint(d, math.Float64bits(f))
}
