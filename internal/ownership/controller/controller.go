// Package controller implements the core business logic (service layer) for
// the ownership register: registering companies, recording and replacing
// owner rows, the commercial-register response cache, and flat DOT exports.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/db"
	e "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/errors"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/events"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/ico"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/share"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(event events.Event)
}

// Repository defines the storage interface for the ownership register.
type Repository interface {
	CreateCompany(ctx context.Context, company *models.Company) error
	UpsertCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, ico string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error
	DeleteCompany(ctx context.Context, ico string) error
	CreateEntity(ctx context.Context, entity *models.Entity) error
	GetEntity(ctx context.Context, id int64) (*models.Entity, error)
	GetOrCreateCompanyEntity(ctx context.Context, ico, name string) (*models.Entity, error)
	CreateEdge(ctx context.Context, edge *models.OwnershipEdge) error
	EdgesForCompany(ctx context.Context, ico string) ([]models.OwnerEdge, error)
	AllEdges(ctx context.Context) ([]models.OwnerEdge, error)
	DeleteEdgesForCompany(ctx context.Context, ico string) (int64, error)
	UpsertCache(ctx context.Context, record *models.CacheRecord) error
	GetCache(ctx context.Context, ico string) (*models.CacheRecord, error)
	StaleIcos(ctx context.Context, before time.Time) ([]string, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// entityStore is the subset of repository operations insertOwner needs, so
// it can run against the repository itself or a transaction handle.
type entityStore interface {
	CreateEntity(ctx context.Context, entity *models.Entity) error
	GetOrCreateCompanyEntity(ctx context.Context, ico, name string) (*models.Entity, error)
	CreateEdge(ctx context.Context, edge *models.OwnershipEdge) error
}

// OwnerRecord is one owner row handed in for persistence. TargetIco and Ico
// are validated in their raw decorated form and normalized afterwards, so
// register values like "255 96 641" pass while padded-out short values do
// not.
type OwnerRecord struct {
	TargetIco string           `validate:"required,ico"`
	Kind      models.OwnerKind `validate:"required,oneof=PERSON COMPANY FOREIGN"`
	Name      string           `validate:"required"`
	Ico       string           `validate:"excluded_if=Kind PERSON,required_if=Kind COMPANY"`
	ShareNum  *int64
	ShareDen  *int64
	SharePct  *float64
	ShareRaw  string
}

// OwnershipService provides methods to manage the ownership register via
// repository operations and event production.
type OwnershipService struct {
	repo     Repository
	producer EventProducer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOwnershipService constructs an OwnershipService with a repository, an
// event producer, and a logger. The validator carries a custom "ico" rule.
func NewOwnershipService(repo Repository, producer EventProducer, logger *zap.Logger) *OwnershipService {
	validate := validator.New()
	_ = validate.RegisterValidation("ico", func(fl validator.FieldLevel) bool {
		return ico.ValidRaw(fl.Field().String())
	})
	return &OwnershipService{
		repo:     repo,
		producer: producer,
		validate: validate,
		logger:   logger.Named("ownership_service"),
	}
}

// RegisterCompany upserts a company row under its normalized ico and fires a
// registration event. Re-registering an ico overwrites the stored name.
func (s *OwnershipService) RegisterCompany(ctx context.Context, companyIco, name string) (*models.Company, error) {
	if !ico.ValidRaw(companyIco) {
		return nil, fmt.Errorf("%w: invalid ico", e.ErrInvalidInput)
	}
	companyIco = ico.Normalize(companyIco)
	// the register has issued identifiers that break the mod-11 rule, so a
	// failed checksum flags the row instead of refusing it
	if !ico.ChecksumOK(companyIco) {
		s.logger.Warn("Ico checksum mismatch", zap.String("ico", companyIco))
	}

	company := &models.Company{Ico: companyIco, Name: name}
	if err := s.repo.UpsertCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to register company: %w", err)
	}
	go func() {
		s.producer.Produce(events.Event{Type: events.CompanyRegistered, Ico: company.Ico, Company: company})
	}()
	return company, nil
}

// GetCompany retrieves a company by ico, returning ErrNotFound if absent.
func (s *OwnershipService) GetCompany(ctx context.Context, companyIco string) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, ico.Normalize(companyIco))
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// UpdateCompany modifies the specified company fields, then fetches the
// updated version for returning and event production.
func (s *OwnershipService) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) (*models.Company, error) {
	if !ico.ValidRaw(update.Ico) {
		return nil, fmt.Errorf("%w: invalid ico", e.ErrInvalidInput)
	}
	update.Ico = ico.Normalize(update.Ico)

	err := s.repo.UpdateCompany(ctx, update)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) || errors.Is(err, e.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	updated, err := s.repo.GetCompany(context.Background(), update.Ico)
	if err != nil {
		s.logger.Error("Failed to get company for event",
			zap.Error(err),
			zap.String("ico", update.Ico),
		)
		return nil, err
	}
	go func() {
		s.producer.Produce(events.Event{Type: events.CompanyUpdated, Ico: updated.Ico, Company: updated})
	}()
	return updated, nil
}

// DeleteCompany removes a company by ico and fires a deletion event. While
// ownership edges still reference the company the delete is refused.
func (s *OwnershipService) DeleteCompany(ctx context.Context, companyIco string) error {
	companyIco = ico.Normalize(companyIco)
	company, err := s.repo.GetCompany(ctx, companyIco)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to get company for deletion: %w", err)
	}

	if err := s.repo.DeleteCompany(ctx, companyIco); err != nil {
		if errors.Is(err, e.ErrInvalidReference) {
			return err
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}

	go func() {
		s.producer.Produce(events.Event{Type: events.CompanyDeleted, Ico: company.Ico, Company: company})
	}()

	return nil
}

// RecordOwner persists a single owner row against an existing target
// company. PERSON owners always create a fresh entity row; COMPANY owners
// share the one entity per ico; FOREIGN owners are refused, matching the
// register tooling which keeps foreign subjects out of storage.
func (s *OwnershipService) RecordOwner(ctx context.Context, req *OwnerRecord) (*models.OwnershipEdge, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidInput, err)
	}
	if req.Kind == models.OwnerForeign {
		return nil, fmt.Errorf("%w: foreign subjects are not persisted", e.ErrForeignOwner)
	}
	req.TargetIco = ico.Normalize(req.TargetIco)
	if req.Kind == models.OwnerCompany {
		if !ico.ValidRaw(req.Ico) {
			return nil, fmt.Errorf("%w: invalid owner ico", e.ErrInvalidInput)
		}
		req.Ico = ico.Normalize(req.Ico)
	}

	if _, err := s.repo.GetCompany(ctx, req.TargetIco); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to check target company: %w", err)
	}

	owner := models.Owner{
		Kind:     req.Kind,
		Name:     req.Name,
		Ico:      req.Ico,
		ShareNum: req.ShareNum,
		ShareDen: req.ShareDen,
		SharePct: req.SharePct,
		ShareRaw: req.ShareRaw,
	}
	edge, err := s.insertOwner(ctx, s.repo, req.TargetIco, &owner)
	if err != nil {
		return nil, err
	}

	go func() {
		s.producer.Produce(events.Event{Type: events.OwnerRecorded, Ico: edge.TargetIco, Edge: edge})
	}()
	return edge, nil
}

// ReplaceOwners swaps the full owner list of one company inside a single
// transaction: existing edges are deleted and the given rows re-inserted.
// FOREIGN owners are skipped with a warning. Returns the inserted count.
func (s *OwnershipService) ReplaceOwners(ctx context.Context, targetIco string, owners []models.Owner) (int, error) {
	if !ico.ValidRaw(targetIco) {
		return 0, fmt.Errorf("%w: invalid ico", e.ErrInvalidInput)
	}
	targetIco = ico.Normalize(targetIco)
	if _, err := s.repo.GetCompany(ctx, targetIco); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to check target company: %w", err)
	}

	inserted := 0
	err := s.repo.WithTransaction(ctx, func(txRepo *db.Repository) error {
		if _, err := txRepo.DeleteEdgesForCompany(ctx, targetIco); err != nil {
			return err
		}
		for i := range owners {
			owner := owners[i]
			if owner.Kind == models.OwnerForeign {
				s.logger.Warn("Skipping foreign owner",
					zap.String("owner", owner.Name),
					zap.String("id", owner.Ico),
				)
				continue
			}
			if owner.Name == "" {
				return fmt.Errorf("%w: owner name is required", e.ErrInvalidInput)
			}
			if owner.Kind == models.OwnerCompany {
				if !ico.ValidRaw(owner.Ico) {
					return fmt.Errorf("%w: invalid owner ico", e.ErrInvalidInput)
				}
				owner.Ico = ico.Normalize(owner.Ico)
			}
			if _, err := s.insertOwner(ctx, txRepo, targetIco, &owner); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	go func() {
		s.producer.Produce(events.Event{Type: events.OwnersReplaced, Ico: targetIco})
	}()
	return inserted, nil
}

// CompanyOwners lists the direct owner rows of one company. No chain is
// followed; one level only.
func (s *OwnershipService) CompanyOwners(ctx context.Context, companyIco string) ([]models.OwnerEdge, error) {
	edges, err := s.repo.EdgesForCompany(ctx, ico.Normalize(companyIco))
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return edges, nil
}

// ResolveEntityCompany follows the soft ico link from a COMPANY entity to
// its company row. The link is by value only, so ErrNotFound is an expected
// outcome, not a data fault.
func (s *OwnershipService) ResolveEntityCompany(ctx context.Context, entityID int64) (*models.Company, error) {
	entity, err := s.repo.GetEntity(ctx, entityID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	if entity.Ico == "" {
		return nil, fmt.Errorf("%w: entity %d carries no ico", e.ErrInvalidInput, entityID)
	}
	return s.GetCompany(ctx, entity.Ico)
}

// insertOwner resolves the owner entity and creates its edge against the
// target. Missing share representations are derived from the raw text only
// when the caller supplied none of them; stored values are never
// cross-checked against each other.
func (s *OwnershipService) insertOwner(ctx context.Context, store entityStore, targetIco string, owner *models.Owner) (*models.OwnershipEdge, error) {
	var entity *models.Entity
	switch owner.Kind {
	case models.OwnerPerson:
		entity = &models.Entity{Type: models.PersonEntity, Name: owner.Name}
		if err := store.CreateEntity(ctx, entity); err != nil {
			return nil, fmt.Errorf("failed to create person entity: %w", err)
		}
	case models.OwnerCompany:
		var err error
		entity, err = store.GetOrCreateCompanyEntity(ctx, owner.Ico, owner.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve company entity: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: foreign subjects are not persisted", e.ErrForeignOwner)
	}

	deriveShare(owner)
	edge := &models.OwnershipEdge{
		TargetIco:     targetIco,
		OwnerEntityID: entity.ID,
		ShareNum:      owner.ShareNum,
		ShareDen:      owner.ShareDen,
		SharePct:      owner.SharePct,
		ShareRaw:      owner.ShareRaw,
	}
	if err := store.CreateEdge(ctx, edge); err != nil {
		return nil, fmt.Errorf("failed to create edge: %w", err)
	}
	return edge, nil
}

// deriveShare fills the structured share fields from the raw text when all
// of them are absent. SharePct uses the 0..100 scale.
func deriveShare(owner *models.Owner) {
	if owner.ShareNum != nil || owner.ShareDen != nil || owner.SharePct != nil || owner.ShareRaw == "" {
		return
	}
	if frac, ok := share.ParseFraction(owner.ShareRaw); ok {
		pct := frac * 100
		owner.SharePct = &pct
	}
	if num, den, ok := share.ParseRatio(owner.ShareRaw); ok {
		owner.ShareNum = &num
		owner.ShareDen = &den
	}
}

// registryError is the negative-cache payload stored for failed registry
// lookups, shaped exactly like the register tooling writes it.
type registryError struct {
	Error int    `json:"_error"`
	URL   string `json:"_url"`
}

// StoreRegistryPayload caches a registry response verbatim under the
// normalized ico, stamping the fetch time. The payload must be valid JSON.
func (s *OwnershipService) StoreRegistryPayload(ctx context.Context, companyIco string, payload []byte) (*models.CacheRecord, error) {
	if !ico.ValidRaw(companyIco) {
		return nil, fmt.Errorf("%w: invalid ico", e.ErrInvalidInput)
	}
	companyIco = ico.Normalize(companyIco)
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", e.ErrInvalidInput)
	}

	record := &models.CacheRecord{
		Ico:       companyIco,
		FetchedAt: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.repo.UpsertCache(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store registry payload: %w", err)
	}

	go func() {
		s.producer.Produce(events.Event{Type: events.CacheUpdated, Ico: record.Ico})
	}()
	return record, nil
}

// StoreRegistryError caches a failed lookup so the register is not asked
// again for an ico it already refused. Meant for definitive failures such as
// 400 and 404 responses.
func (s *OwnershipService) StoreRegistryError(ctx context.Context, companyIco string, status int, url string) (*models.CacheRecord, error) {
	payload, err := json.Marshal(registryError{Error: status, URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to build error payload: %w", err)
	}
	return s.StoreRegistryPayload(ctx, companyIco, payload)
}

// CachedPayload returns the cached registry response for an ico. A corrupt
// cached payload is treated as a miss, not an error state.
func (s *OwnershipService) CachedPayload(ctx context.Context, companyIco string) (*models.CacheRecord, error) {
	companyIco = ico.Normalize(companyIco)
	record, err := s.repo.GetCache(ctx, companyIco)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	if !json.Valid(record.Payload) {
		s.logger.Warn("Discarding corrupt cache payload", zap.String("ico", companyIco))
		return nil, e.ErrNotFound
	}
	return record, nil
}

// IsErrorPayload reports whether a cached payload is a stored lookup
// failure rather than a register response.
func IsErrorPayload(payload []byte) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false
	}
	_, ok := doc["_error"]
	return ok
}

// StaleIcos lists cached identifiers fetched before the cutoff. Staleness
// policy belongs to the caller; nothing expires on its own.
func (s *OwnershipService) StaleIcos(ctx context.Context, before time.Time) ([]string, error) {
	icos, err := s.repo.StaleIcos(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale cache entries: %w", err)
	}
	return icos, nil
}
