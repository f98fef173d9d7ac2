// Package db persists the ownership register through GORM. It exposes a
// Repository over the four tables (company, entity, ownership_edge,
// ares_vr_cache) and maps constraint violations onto the shared error
// sentinels. SQLite is the default store; Postgres is supported for server
// deployments.
package db

import (
	"context"
	"errors"
	"fmt"

	dbm "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/db/models"
	e "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/errors"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Driver   string
	Path     string // sqlite database file
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewRepository opens the configured store and migrates the schema.
// SQLite runs with foreign key enforcement switched on through the DSN so
// that edge inserts against missing rows fail the same way as on Postgres.
func NewRepository(cfg *Config) (*Repository, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		dial = postgres.Open(dsn)
	case DriverSQLite, "":
		dial = sqlite.Open(cfg.Path + "?_foreign_keys=1")
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", e.ErrInvalidInput, cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&dbm.Company{},
		&dbm.Entity{},
		&dbm.OwnershipEdge{},
		&dbm.AresVrCache{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	result := r.db.WithContext(ctx).Create(companyRecord(company))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateICO
		}
		return result.Error
	}
	return nil
}

// UpsertCompany inserts the company or, when the ico is already present,
// overwrites its name. Last write wins.
func (r *Repository) UpsertCompany(ctx context.Context, company *models.Company) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ico"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(companyRecord(company))
	return result.Error
}

func (r *Repository) GetCompany(ctx context.Context, ico string) (*models.Company, error) {
	var rec dbm.Company
	result := r.db.WithContext(ctx).First(&rec, "ico = ?", ico)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return companyModel(&rec), nil
}

func (r *Repository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var recs []dbm.Company
	result := r.db.WithContext(ctx).Order("ico").Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}
	companies := make([]models.Company, 0, len(recs))
	for i := range recs {
		companies = append(companies, *companyModel(&recs[i]))
	}
	return companies, nil
}

func (r *Repository) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error {
	values := map[string]interface{}{}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: nothing to update", e.ErrInvalidInput)
	}

	result := r.db.WithContext(ctx).Model(&dbm.Company{}).
		Where("ico = ?", update.Ico).
		Updates(values)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteCompany removes a company row. While ownership edges still reference
// the ico the store refuses with ErrInvalidReference.
func (r *Repository) DeleteCompany(ctx context.Context, ico string) error {
	result := r.db.WithContext(ctx).Delete(&dbm.Company{}, "ico = ?", ico)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return e.ErrInvalidReference
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func companyRecord(c *models.Company) *dbm.Company {
	rec := &dbm.Company{Ico: c.Ico}
	if c.Name != "" {
		name := c.Name
		rec.Name = &name
	}
	return rec
}

func companyModel(rec *dbm.Company) *models.Company {
	c := &models.Company{Ico: rec.Ico}
	if rec.Name != nil {
		c.Name = *rec.Name
	}
	return c
}
