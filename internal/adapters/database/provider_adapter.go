package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

const (
	providersTable  = "providers"
	upsertBatchSize = 200
)

var providerColumns = []interface{}{
	"id", "name", "credentials", "clinician_type", "specialty", "practice",
	"tier", "search_priority", "profile_status",
	"street", "city", "state", "zip_code", "country", "latitude", "longitude",
	"phone", "email", "website", "booking_url", "bio",
	"years_experience", "certification_level",
	"certifications", "specializations", "languages", "patient_types",
	"conditions_treated", "insurance_accepted",
	"is_verified", "rating", "total_reviews", "availability", "treatments", "reviews",
	"updated_at",
}

// ProviderAdapter implements the ProviderRepository interface on PostgreSQL
type ProviderAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

var _ repositories.ProviderRepository = (*ProviderAdapter)(nil)

// NewProviderAdapter creates a new provider adapter. metrics may be nil.
func NewProviderAdapter(client *postgres.Client, metrics *observability.Metrics) *ProviderAdapter {
	return &ProviderAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// List retrieves listed providers ordered by id, prefiltered by bounds when set
func (a *ProviderAdapter) List(ctx context.Context, filter repositories.ProviderFilter) ([]*entities.Provider, error) {
	ds := a.db.Select(providerColumns...).From(providersTable)

	if !filter.IncludeUnlisted {
		ds = ds.Where(listedExpression())
	}
	if filter.Bounds != nil {
		ds = ds.Where(boundsExpression(*filter.Bounds))
	}
	ds = ds.Order(goqu.I("id").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "list_providers", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list providers", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// GetByID retrieves a listed provider by ID
func (a *ProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	query, args, err := a.db.Select(providerColumns...).
		From(providersTable).
		Where(goqu.Ex{"id": id}, listedExpression()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	row := a.client.DB().QueryRowContext(ctx, query, args...)
	p, err := scanProvider(row)
	observability.RecordDBMetric(ctx, a.metrics, "get_provider", time.Since(start))

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get provider", err)
	}
	return p, nil
}

// GetByIDs retrieves listed providers in the order of ids, skipping missing ids
func (a *ProviderAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Provider, error) {
	if len(ids) == 0 {
		return []*entities.Provider{}, nil
	}

	query, args, err := a.db.Select(providerColumns...).
		From(providersTable).
		Where(goqu.Ex{"id": ids}, listedExpression()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	start := time.Now()
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "get_providers", time.Since(start))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get providers", err)
	}
	defer rows.Close()

	found, err := scanProviders(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

// Upsert inserts or replaces providers in batches inside one transaction
func (a *ProviderAdapter) Upsert(ctx context.Context, providers []*entities.Provider) error {
	if len(providers) == 0 {
		return nil
	}

	tx, err := a.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(providers); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(providers) {
			end = len(providers)
		}

		rows := make([]interface{}, 0, end-start)
		for _, p := range providers[start:end] {
			record, err := providerRecord(p)
			if err != nil {
				return apperrors.NewInternalError(fmt.Sprintf("failed to encode provider %s", p.ID), err)
			}
			rows = append(rows, record)
		}

		query, args, err := a.db.Insert(providersTable).
			Rows(rows...).
			OnConflict(goqu.DoUpdate("id", excludedRecord())).
			Prepared(true).
			ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build upsert query", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewInternalError("failed to upsert providers", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit providers", err)
	}
	return nil
}

func listedExpression() exp.Expression {
	return goqu.Or(
		goqu.C("profile_status").Eq(string(entities.ProfileStatusPublished)),
		goqu.C("profile_status").Eq(""),
	)
}

// boundsExpression matches rows inside b. Rows without a position never match.
func boundsExpression(b geo.Bounds) exp.Expression {
	lat := goqu.C("latitude").Between(goqu.Range(b.MinLatitude, b.MaxLatitude))
	switch {
	case b.AllLongitudes:
		return goqu.And(lat, goqu.C("longitude").IsNotNull())
	case b.WrapsAntimeridian:
		return goqu.And(lat, goqu.Or(
			goqu.C("longitude").Gte(b.MinLongitude),
			goqu.C("longitude").Lte(b.MaxLongitude),
		))
	default:
		return goqu.And(lat, goqu.C("longitude").Between(goqu.Range(b.MinLongitude, b.MaxLongitude)))
	}
}

func providerRecord(p *entities.Provider) (goqu.Record, error) {
	var lat, lng interface{}
	if p.Position != nil {
		lat, lng = p.Position.Latitude, p.Position.Longitude
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	status := p.ProfileStatus
	if status == "" {
		status = entities.ProfileStatusPublished
	}
	availability, err := jsonColumn(p.Availability, "{}")
	if err != nil {
		return nil, err
	}
	treatments, err := jsonColumn(p.Treatments, "[]")
	if err != nil {
		return nil, err
	}
	reviews, err := jsonColumn(p.Reviews, "[]")
	if err != nil {
		return nil, err
	}

	return goqu.Record{
		"id":                  p.ID,
		"name":                p.Name,
		"credentials":         p.Credentials,
		"clinician_type":      p.ClinicianType,
		"specialty":           p.Specialty,
		"practice":            p.Practice,
		"tier":                string(p.Tier),
		"search_priority":     p.SearchPriority,
		"profile_status":      string(status),
		"street":              p.Address.Street,
		"city":                p.Address.City,
		"state":               p.Address.State,
		"zip_code":            p.Address.ZipCode,
		"country":             p.Address.Country,
		"latitude":            lat,
		"longitude":           lng,
		"phone":               p.Phone,
		"email":               p.Email,
		"website":             p.Website,
		"booking_url":         p.BookingURL,
		"bio":                 p.Bio,
		"years_experience":    p.YearsExperience,
		"certification_level": p.CertificationLevel,
		"certifications":      pq.Array(nonNil(p.Certifications)),
		"specializations":     pq.Array(nonNil(p.Specializations)),
		"languages":           pq.Array(nonNil(p.Languages)),
		"patient_types":       pq.Array(nonNil(p.PatientTypes)),
		"conditions_treated":  pq.Array(nonNil(p.ConditionsTreated)),
		"insurance_accepted":  pq.Array(nonNil(p.InsuranceAccepted)),
		"is_verified":         p.IsVerified,
		"rating":              p.Rating,
		"total_reviews":       p.TotalReviews,
		"availability":        availability,
		"treatments":          treatments,
		"reviews":             reviews,
		"updated_at":          updatedAt,
	}, nil
}

// jsonColumn encodes v for a JSONB column, using empty when v is nil or empty
func jsonColumn[T any](v T, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if s := string(b); s != "null" && s != "{}" && s != "[]" {
		return s, nil
	}
	return empty, nil
}

// excludedRecord sets every non-key column from the conflicting insert row
func excludedRecord() goqu.Record {
	record := goqu.Record{}
	for _, c := range providerColumns {
		col := c.(string)
		if col == "id" {
			continue
		}
		record[col] = goqu.L("EXCLUDED." + col)
	}
	return record
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(row rowScanner) (*entities.Provider, error) {
	p := &entities.Provider{}
	var tier, status string
	var lat, lng sql.NullFloat64
	var availability, treatments, reviews []byte

	err := row.Scan(
		&p.ID, &p.Name, &p.Credentials, &p.ClinicianType, &p.Specialty, &p.Practice,
		&tier, &p.SearchPriority, &status,
		&p.Address.Street, &p.Address.City, &p.Address.State, &p.Address.ZipCode, &p.Address.Country,
		&lat, &lng,
		&p.Phone, &p.Email, &p.Website, &p.BookingURL, &p.Bio,
		&p.YearsExperience, &p.CertificationLevel,
		pq.Array(&p.Certifications), pq.Array(&p.Specializations), pq.Array(&p.Languages),
		pq.Array(&p.PatientTypes), pq.Array(&p.ConditionsTreated), pq.Array(&p.InsuranceAccepted),
		&p.IsVerified, &p.Rating, &p.TotalReviews, &availability, &treatments, &reviews,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(availability, &p.Availability); err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}
	if err := decodeJSONColumn(treatments, &p.Treatments); err != nil {
		return nil, fmt.Errorf("treatments: %w", err)
	}
	if err := decodeJSONColumn(reviews, &p.Reviews); err != nil {
		return nil, fmt.Errorf("reviews: %w", err)
	}

	p.Tier = entities.Tier(tier)
	p.ProfileStatus = entities.ProfileStatus(status)
	if lat.Valid && lng.Valid {
		p.Position = &geo.Coordinate{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return p, nil
}

func decodeJSONColumn(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func scanProviders(rows *sql.Rows) ([]*entities.Provider, error) {
	providers := []*entities.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan provider", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate providers", err)
	}
	return providers, nil
}

func orderByIDs(found []*entities.Provider, ids []string) []*entities.Provider {
	byID := make(map[string]*entities.Provider, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	ordered := make([]*entities.Provider, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			ordered = append(ordered, p)
			seen[id] = true
		}
	}
	return ordered
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
