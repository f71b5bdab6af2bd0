package metricscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"

	"salesboard/internal/orders"
	"salesboard/internal/timeframe"
)

// Version is the identity and last mutation time of one input record.
type Version struct {
	ID        string
	UpdatedAt time.Time
}

// Builder accumulates a fingerprint from versions supplied in ascending id
// order. Repeated ids are folded into one.
type Builder struct {
	h      hash.Hash
	last   string
	count  int
	latest time.Time
}

func NewBuilder() *Builder {
	return &Builder{h: sha256.New()}
}

// Add feeds one version. Ids must arrive sorted ascending.
func (b *Builder) Add(id string, updatedAt time.Time) {
	if updatedAt.After(b.latest) {
		b.latest = updatedAt
	}
	if b.count > 0 && id == b.last {
		return
	}
	if b.count > 0 {
		b.h.Write([]byte{','})
	}
	b.h.Write([]byte(id))
	b.last = id
	b.count++
}

// Sum returns hex(sha256(ids joined by ",")) and the latest mutation time in
// unix nanoseconds, joined by "-".
func (b *Builder) Sum() string {
	var ts int64
	if !b.latest.IsZero() {
		ts = b.latest.UTC().UnixNano()
	}
	return hex.EncodeToString(b.h.Sum(nil)) + "-" + strconv.FormatInt(ts, 10)
}

// Fingerprint hashes a dataset's sorted unique ids together with its latest
// mutation time. Changing the set of ids or any record's timestamp changes
// the result; input order does not.
func Fingerprint(versions []Version) string {
	sorted := make([]Version, len(versions))
	copy(sorted, versions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	b := NewBuilder()
	for _, v := range sorted {
		b.Add(v.ID, v.UpdatedAt)
	}
	return b.Sum()
}

// OrdersFingerprint fingerprints a materialized order set.
func OrdersFingerprint(set []orders.Order) string {
	versions := make([]Version, len(set))
	for i, o := range set {
		versions[i] = Version{ID: o.Key(), UpdatedAt: o.UpdatedAt}
	}
	return Fingerprint(versions)
}

// QueryFingerprint fingerprints the orders selected by w and f by streaming
// their versions from the store, so large windows are never materialized.
func QueryFingerprint(ctx context.Context, db *gorm.DB, w timeframe.Window, f orders.Filter) (string, error) {
	b := NewBuilder()
	err := orders.StreamVersions(ctx, db, w, f, func(id string, updatedAt time.Time) error {
		b.Add(id, updatedAt)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.Sum(), nil
}
