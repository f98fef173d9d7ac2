package db

import (
	"context"
	"errors"
	"time"

	dbm "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/db/models"
	e "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/errors"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// legacyFetchedAtLayout matches rows written by the pre-RFC3339 schema
// migration, which stamped DATETIME('now') text.
const legacyFetchedAtLayout = "2006-01-02 15:04:05"

// UpsertCache stores a registry payload for an ico, replacing fetched_at and
// payload_json in place when the key already exists. The table never grows a
// second row per ico.
func (r *Repository) UpsertCache(ctx context.Context, record *models.CacheRecord) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ico"}},
		DoUpdates: clause.AssignmentColumns([]string{"fetched_at", "payload_json"}),
	}).Create(cacheRecord(record))
	return result.Error
}

func (r *Repository) GetCache(ctx context.Context, ico string) (*models.CacheRecord, error) {
	var rec dbm.AresVrCache
	result := r.db.WithContext(ctx).First(&rec, "ico = ?", ico)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return cacheModel(&rec), nil
}

// StaleIcos lists the cached identifiers fetched before the cutoff, oldest
// first. The store itself never expires anything; the caller decides what
// stale means.
func (r *Repository) StaleIcos(ctx context.Context, before time.Time) ([]string, error) {
	var icos []string
	result := r.db.WithContext(ctx).Model(&dbm.AresVrCache{}).
		Where("fetched_at < ?", before.UTC().Format(time.RFC3339)).
		Order("fetched_at").
		Pluck("ico", &icos)
	if result.Error != nil {
		return nil, result.Error
	}
	return icos, nil
}

func cacheRecord(record *models.CacheRecord) *dbm.AresVrCache {
	return &dbm.AresVrCache{
		Ico:         record.Ico,
		FetchedAt:   record.FetchedAt.UTC().Format(time.RFC3339),
		PayloadJSON: string(record.Payload),
	}
}

func cacheModel(rec *dbm.AresVrCache) *models.CacheRecord {
	return &models.CacheRecord{
		Ico:       rec.Ico,
		FetchedAt: parseFetchedAt(rec.FetchedAt),
		Payload:   []byte(rec.PayloadJSON),
	}
}

func parseFetchedAt(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(legacyFetchedAtLayout, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
