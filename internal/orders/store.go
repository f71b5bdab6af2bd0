package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"salesboard/internal/timeframe"
)

// Load materializes every order received inside w that passes f, with its
// normalized lines preloaded, ordered by received time.
func Load(ctx context.Context, db *gorm.DB, w timeframe.Window, f Filter) ([]Order, error) {
	where, args := f.SQL("")

	var records []OrderRecord
	err := db.WithContext(ctx).
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("received_at >= ? AND received_at < ?", w.From(), w.Until()).
		Where(where, args...).
		Order("received_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error loading orders: %w", err)
	}

	out := make([]Order, len(records))
	for i, r := range records {
		out[i] = FromRecord(r, true)
	}
	return out, nil
}

// StreamVersions calls fn with the external id and last mutation time of
// every order inside w that passes f, in ascending id order, without
// materializing the set.
func StreamVersions(ctx context.Context, db *gorm.DB, w timeframe.Window, f Filter, fn func(id string, updatedAt time.Time) error) error {
	where, args := f.SQL("")

	rows, err := db.WithContext(ctx).Model(&OrderRecord{}).
		Select("external_id, updated_at").
		Where("received_at >= ? AND received_at < ?", w.From(), w.Until()).
		Where(where, args...).
		Order("external_id ASC").
		Rows()
	if err != nil {
		return fmt.Errorf("error streaming order versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var updatedAt time.Time
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return fmt.Errorf("error scanning order version: %w", err)
		}
		if err := fn(id, updatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Upsert writes orders keyed by external id. Existing orders are updated in
// place and their normalized lines replaced; orders that carry no loaded
// normalized lines keep whatever lines are already stored.
func Upsert(ctx context.Context, logger *slog.Logger, db *gorm.DB, batch []Order) error {
	if len(batch) == 0 {
		return nil
	}

	return sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		for _, o := range batch {
			rec := ToRecord(o)
			lines := rec.LineItems
			rec.LineItems = nil

			var existing OrderRecord
			err := tx.Select("id", "created_at").Where("external_id = ?", rec.ExternalID).Limit(1).Find(&existing).Error
			if err != nil {
				return fmt.Errorf("failed to look up order %s: %w", rec.ExternalID, err)
			}

			if existing.ID != 0 {
				rec.ID = existing.ID
				rec.CreatedAt = existing.CreatedAt
				if err := tx.Omit("LineItems").Save(&rec).Error; err != nil {
					return fmt.Errorf("failed to update order %s: %w", rec.ExternalID, err)
				}
			} else {
				rec.ID = 0
				if err := tx.Omit("LineItems").Create(&rec).Error; err != nil {
					return fmt.Errorf("failed to create order %s: %w", rec.ExternalID, err)
				}
			}

			if !o.LineItemsLoaded {
				continue
			}

			if err := tx.Where("order_id = ?", rec.ID).Delete(&OrderItemRecord{}).Error; err != nil {
				return fmt.Errorf("failed to clear lines of order %s: %w", rec.ExternalID, err)
			}
			for i := range lines {
				lines[i].ID = 0
				lines[i].OrderID = rec.ID
			}
			if len(lines) > 0 {
				if err := tx.Create(&lines).Error; err != nil {
					return fmt.Errorf("failed to write lines of order %s: %w", rec.ExternalID, err)
				}
			}
		}
		return nil
	})
}
