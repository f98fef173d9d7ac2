// Package models defines the core domain models for the ownership register:
// companies, owner entities, ownership edges and the registry cache record.
package models

import (
	"time"
)

// EntityType distinguishes the two persisted owner variants.
type EntityType string

const (
	// PersonEntity is a natural person without a registration identifier.
	PersonEntity EntityType = "PERSON"
	// CompanyEntity is a legal entity carrying a registration identifier.
	CompanyEntity EntityType = "COMPANY"
)

// OwnerKind classifies an owner row handed in by the importer. FOREIGN
// subjects are rendered but never persisted.
type OwnerKind string

const (
	OwnerPerson  OwnerKind = "PERSON"
	OwnerCompany OwnerKind = "COMPANY"
	OwnerForeign OwnerKind = "FOREIGN"
)

// Company is a legal entity keyed by its registration identifier.
type Company struct {
	// Ico is the registration identifier, the primary key.
	Ico string
	// Name is the display name. May be empty when the register did not
	// provide one.
	Name string
}

// CompanyUpdate represents the fields that can be updated for a Company.
// Pointer types are used to allow partial updates.
type CompanyUpdate struct {
	// Ico identifies the company to update.
	Ico string
	// Name is the new display name.
	Name *string
}

// Entity is a participant that can hold ownership. PERSON entities carry no
// registration identifier and are distinguished only by name; two persons
// with the same name cannot be told apart structurally.
type Entity struct {
	// ID is the surrogate key assigned by the store.
	ID int64
	// Type is PERSON or COMPANY.
	Type EntityType
	// Name is the display name.
	Name string
	// Ico is set for COMPANY entities. It may reference a Company row by
	// value, but nothing guarantees that row exists.
	Ico string
}

// OwnershipEdge states that an owner entity holds a share of a target
// company. The share is carried redundantly in up to three representations,
// any of which may be absent; the store never checks them against each other.
type OwnershipEdge struct {
	// ID is the surrogate edge key. Duplicate edges with identical
	// attributes are permitted and receive distinct IDs.
	ID int64
	// TargetIco references the owned company.
	TargetIco string
	// OwnerEntityID references the owning entity.
	OwnerEntityID int64
	// ShareNum and ShareDen express the share as a fraction.
	ShareNum *int64
	ShareDen *int64
	// SharePct expresses the share as a percentage on the 0..100 scale.
	SharePct *float64
	// ShareRaw is the unparsed source text.
	ShareRaw string
}

// OwnerEdge pairs an edge with its owner entity for listing and rendering.
type OwnerEdge struct {
	Edge  OwnershipEdge
	Owner Entity
}

// Owner is one resolved owner row as produced by the surrounding importer.
// Ico carries the foreign register id for FOREIGN owners. SharePct uses the
// 0..100 scale when present.
type Owner struct {
	Kind     OwnerKind
	Name     string
	Ico      string
	ShareNum *int64
	ShareDen *int64
	SharePct *float64
	ShareRaw string
}

// CacheRecord memoizes one registry response verbatim. Staleness is judged
// by the caller using FetchedAt; records are never expired by the store.
type CacheRecord struct {
	// Ico is the registration identifier the payload was fetched for.
	Ico string
	// FetchedAt is the UTC time of the fetch.
	FetchedAt time.Time
	// Payload is the raw JSON response text.
	Payload []byte
}
