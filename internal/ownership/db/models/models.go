// Package models contains the persistence models for the ownership register,
// configured to work using GORM as the ORM. Table and column names are pinned
// explicitly so the layout matches the schema used by the rest of the tooling.
package models

// Company represents a company row keyed by its registration identifier.
type Company struct {
	Ico  string  `gorm:"column:ico;primaryKey"`
	Name *string `gorm:"column:name"`
}

// TableName keeps the singular table name the shared schema uses.
func (Company) TableName() string {
	return "company"
}

// Entity represents an owner row. COMPANY entities are unique per non-null
// ico via a partial index; PERSON entities carry no such constraint.
type Entity struct {
	EntityID int64   `gorm:"column:entity_id;primaryKey;autoIncrement"`
	Type     string  `gorm:"column:type;not null;check:type IN ('PERSON','COMPANY');uniqueIndex:uniq_entity_company_ico,priority:1"`
	Name     *string `gorm:"column:name"`
	Ico      *string `gorm:"column:ico;uniqueIndex:uniq_entity_company_ico,priority:2,where:type = 'COMPANY' AND ico IS NOT NULL"`
}

func (Entity) TableName() string {
	return "entity"
}

// OwnershipEdge represents one "owner holds a share of target" row. The
// edge_id surrogate key only makes rows addressable; duplicate edges with
// identical attributes remain legal. The three share representations are
// independently optional and never validated against each other.
type OwnershipEdge struct {
	EdgeID        int64    `gorm:"column:edge_id;primaryKey;autoIncrement"`
	TargetIco     string   `gorm:"column:target_ico;index:idx_ownership_edge_target_ico"`
	OwnerEntityID int64    `gorm:"column:owner_entity_id"`
	ShareNum      *int64   `gorm:"column:share_num"`
	ShareDen      *int64   `gorm:"column:share_den"`
	SharePct      *float64 `gorm:"column:share_pct"`
	ShareRaw      *string  `gorm:"column:share_raw"`

	Target Company `gorm:"foreignKey:TargetIco;references:Ico"`
	Owner  Entity  `gorm:"foreignKey:OwnerEntityID;references:EntityID"`
}

func (OwnershipEdge) TableName() string {
	return "ownership_edge"
}

// AresVrCache memoizes one commercial-register response verbatim. fetched_at
// is stored as RFC3339 text; the index on it supports external staleness
// queries. Rows are only ever replaced, never expired here.
type AresVrCache struct {
	Ico         string `gorm:"column:ico;primaryKey"`
	FetchedAt   string `gorm:"column:fetched_at;not null;index:idx_ares_vr_cache_fetched_at"`
	PayloadJSON string `gorm:"column:payload_json;not null"`
}

func (AresVrCache) TableName() string {
	return "ares_vr_cache"
}
