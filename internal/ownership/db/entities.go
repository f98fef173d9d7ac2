package db

import (
	"context"
	"errors"

	dbm "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/db/models"
	e "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/errors"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateEntity inserts an owner entity and backfills the surrogate key.
// PERSON rows are never deduplicated; a second COMPANY row with the same
// non-null ico trips the partial unique index and returns ErrDuplicateICO.
func (r *Repository) CreateEntity(ctx context.Context, entity *models.Entity) error {
	rec := entityRecord(entity)
	result := r.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateICO
		}
		return result.Error
	}
	entity.ID = rec.EntityID
	return nil
}

func (r *Repository) GetEntity(ctx context.Context, id int64) (*models.Entity, error) {
	var rec dbm.Entity
	result := r.db.WithContext(ctx).First(&rec, "entity_id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return entityModel(&rec), nil
}

// FindCompanyEntity looks up the unique COMPANY entity for an ico.
func (r *Repository) FindCompanyEntity(ctx context.Context, ico string) (*models.Entity, error) {
	var rec dbm.Entity
	result := r.db.WithContext(ctx).
		First(&rec, "type = ? AND ico = ?", string(models.CompanyEntity), ico)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return entityModel(&rec), nil
}

// GetOrCreateCompanyEntity returns the COMPANY entity for an ico, creating
// it when absent. A concurrent creator losing the race falls back to the
// winner's row.
func (r *Repository) GetOrCreateCompanyEntity(ctx context.Context, ico, name string) (*models.Entity, error) {
	entity, err := r.FindCompanyEntity(ctx, ico)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return nil, err
	}

	entity = &models.Entity{Type: models.CompanyEntity, Name: name, Ico: ico}
	err = r.CreateEntity(ctx, entity)
	if err == nil {
		return entity, nil
	}
	if errors.Is(err, e.ErrDuplicateICO) {
		return r.FindCompanyEntity(ctx, ico)
	}
	return nil, err
}

// CreateEdge inserts exactly the fields given; the three share
// representations stay independent and duplicates of existing edges are
// permitted. Referencing a missing company or entity fails with
// ErrInvalidReference.
func (r *Repository) CreateEdge(ctx context.Context, edge *models.OwnershipEdge) error {
	rec := edgeRecord(edge)
	result := r.db.WithContext(ctx).Omit(clause.Associations).Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return e.ErrInvalidReference
		}
		return result.Error
	}
	edge.ID = rec.EdgeID
	return nil
}

// EdgesForCompany lists the direct owner rows of one company.
func (r *Repository) EdgesForCompany(ctx context.Context, ico string) ([]models.OwnerEdge, error) {
	var recs []dbm.OwnershipEdge
	result := r.db.WithContext(ctx).Preload("Owner").
		Where("target_ico = ?", ico).
		Order("edge_id").
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return ownerEdges(recs), nil
}

// AllEdges lists every stored edge with its owner entity.
func (r *Repository) AllEdges(ctx context.Context) ([]models.OwnerEdge, error) {
	var recs []dbm.OwnershipEdge
	result := r.db.WithContext(ctx).Preload("Owner").Order("edge_id").Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	return ownerEdges(recs), nil
}

// DeleteEdgesForCompany removes all edges targeting the company and reports
// how many rows went away. A company without edges deletes zero rows and is
// not an error.
func (r *Repository) DeleteEdgesForCompany(ctx context.Context, ico string) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&dbm.OwnershipEdge{}, "target_ico = ?", ico)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func entityRecord(entity *models.Entity) *dbm.Entity {
	rec := &dbm.Entity{EntityID: entity.ID, Type: string(entity.Type)}
	if entity.Name != "" {
		name := entity.Name
		rec.Name = &name
	}
	if entity.Ico != "" {
		ico := entity.Ico
		rec.Ico = &ico
	}
	return rec
}

func entityModel(rec *dbm.Entity) *models.Entity {
	entity := &models.Entity{ID: rec.EntityID, Type: models.EntityType(rec.Type)}
	if rec.Name != nil {
		entity.Name = *rec.Name
	}
	if rec.Ico != nil {
		entity.Ico = *rec.Ico
	}
	return entity
}

func edgeRecord(edge *models.OwnershipEdge) *dbm.OwnershipEdge {
	rec := &dbm.OwnershipEdge{
		EdgeID:        edge.ID,
		TargetIco:     edge.TargetIco,
		OwnerEntityID: edge.OwnerEntityID,
		ShareNum:      edge.ShareNum,
		ShareDen:      edge.ShareDen,
		SharePct:      edge.SharePct,
	}
	if edge.ShareRaw != "" {
		raw := edge.ShareRaw
		rec.ShareRaw = &raw
	}
	return rec
}

func edgeModel(rec *dbm.OwnershipEdge) *models.OwnershipEdge {
	edge := &models.OwnershipEdge{
		ID:            rec.EdgeID,
		TargetIco:     rec.TargetIco,
		OwnerEntityID: rec.OwnerEntityID,
		ShareNum:      rec.ShareNum,
		ShareDen:      rec.ShareDen,
		SharePct:      rec.SharePct,
	}
	if rec.ShareRaw != nil {
		edge.ShareRaw = *rec.ShareRaw
	}
	return edge
}

func ownerEdges(recs []dbm.OwnershipEdge) []models.OwnerEdge {
	edges := make([]models.OwnerEdge, 0, len(recs))
	for i := range recs {
		edges = append(edges, models.OwnerEdge{
			Edge:  *edgeModel(&recs[i]),
			Owner: *entityModel(&recs[i].Owner),
		})
	}
	return edges
}
