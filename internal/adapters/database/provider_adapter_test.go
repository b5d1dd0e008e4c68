package database

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

var columnNames = func() []string {
	names := make([]string, len(providerColumns))
	for i, c := range providerColumns {
		names[i] = c.(string)
	}
	return names
}()

func setupMockDB(t *testing.T) (*ProviderAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewProviderAdapter(postgres.NewClientFromDB(db), nil), mock
}

func providerRow(id, name string, lat, lng interface{}) []driver.Value {
	return []driver.Value{
		id, name, "DC", "Chiropractor", "Chiropractic Care", "Spine Works",
		"premier", 10, "published",
		"1 Main St", "Denver", "CO", "80202", "USA", lat, lng,
		"555-0100", "", "", "", "",
		12, "Specialist",
		"{}", `{"Sports Injuries","Pediatric"}`, "{English,Spanish}", "{Adults}",
		`{"Back Pain"}`, "{}",
		true, 4.6, 38,
		`{"monday":{"open":"08:00","close":"17:00"}}`,
		`[{"title":"Spinal Adjustment","price":85,"duration_minutes":30}]`,
		`[{"id":"r1","author":"Sam","rating":5,"date":"2026-01-01T00:00:00Z","verified":true}]`,
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestProviderAdapter_List(t *testing.T) {
	adapter, mock := setupMockDB(t)

	rows := sqlmock.NewRows(columnNames).
		AddRow(providerRow("1", "Dr. Jane Smith", 39.74, -104.99)...).
		AddRow(providerRow("2", "Dr. No Position", nil, nil)...)
	mock.ExpectQuery(`SELECT .* FROM "providers" WHERE .*"profile_status" = 'published'.* ORDER BY "id" ASC`).
		WillReturnRows(rows)

	got, err := adapter.List(context.Background(), repositories.ProviderFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, entities.TierPremier, got[0].Tier)
	require.NotNil(t, got[0].Position)
	assert.Equal(t, 39.74, got[0].Position.Latitude)
	assert.Equal(t, []string{"Sports Injuries", "Pediatric"}, got[0].Specializations)
	assert.Equal(t, []string{"English", "Spanish"}, got[0].Languages)
	assert.Equal(t, "Denver", got[0].Address.City)
	assert.True(t, got[0].IsVerified)
	assert.Equal(t, 4.6, got[0].Rating)
	assert.Equal(t, 38, got[0].TotalReviews)
	assert.Nil(t, got[1].Position)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_ListWithBounds(t *testing.T) {
	adapter, mock := setupMockDB(t)

	b := geo.BoundsAround(geo.Coordinate{Latitude: 39.74, Longitude: -104.99}, 50)
	mock.ExpectQuery(`SELECT .* FROM "providers" WHERE .*"latitude" BETWEEN .* AND .*"longitude" BETWEEN`).
		WillReturnRows(sqlmock.NewRows(columnNames))

	got, err := adapter.List(context.Background(), repositories.ProviderFilter{Bounds: &b})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_GetByID_NotFound(t *testing.T) {
	adapter, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "providers" WHERE .*"id" = '404'`).
		WillReturnRows(sqlmock.NewRows(columnNames))

	_, err := adapter.GetByID(context.Background(), "404")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_GetByIDs_PreservesOrder(t *testing.T) {
	adapter, mock := setupMockDB(t)

	rows := sqlmock.NewRows(columnNames).
		AddRow(providerRow("1", "A", 1.0, 1.0)...).
		AddRow(providerRow("3", "C", 3.0, 3.0)...)
	mock.ExpectQuery(`SELECT .* FROM "providers" WHERE .*"id" IN \('3', '2', '1'\)`).
		WillReturnRows(rows)

	got, err := adapter.GetByIDs(context.Background(), []string{"3", "2", "1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "1", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_Upsert(t *testing.T) {
	adapter, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "providers" .* ON CONFLICT \(id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := adapter.Upsert(context.Background(), []*entities.Provider{
		{ID: "1", Name: "A", Tier: entities.TierBasic, Position: &geo.Coordinate{Latitude: 1, Longitude: 2}},
		{ID: "2", Name: "B", Tier: entities.TierPremier, Specializations: []string{"Sports"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_UpsertRollsBackOnError(t *testing.T) {
	adapter, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "providers"`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := adapter.Upsert(context.Background(), []*entities.Provider{{ID: "1", Name: "A"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_GetByID_DecodesProfileDetails(t *testing.T) {
	adapter, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT .*"availability", "treatments", "reviews".* FROM "providers" WHERE .*"id" = '1'`).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(providerRow("1", "Dr. Jane Smith", 39.74, -104.99)...))

	got, err := adapter.GetByID(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, entities.BusinessHours{Open: "08:00", Close: "17:00"}, got.Availability["monday"])
	require.Len(t, got.Treatments, 1)
	assert.Equal(t, "Spinal Adjustment", got.Treatments[0].Title)
	assert.Equal(t, 30, got.Treatments[0].DurationMinutes)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, 5, got.Reviews[0].Rating)
	assert.True(t, got.Reviews[0].Verified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_GetByID_MalformedProfileJSON(t *testing.T) {
	adapter, mock := setupMockDB(t)

	row := providerRow("1", "Dr. Jane Smith", 39.74, -104.99)
	row[len(row)-2] = `{not json`
	mock.ExpectQuery(`SELECT .* FROM "providers"`).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(row...))

	_, err := adapter.GetByID(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRecord_EncodesProfileDetails(t *testing.T) {
	record, err := providerRecord(&entities.Provider{
		ID:           "1",
		IsVerified:   true,
		Rating:       4.2,
		TotalReviews: 3,
		Treatments:   []entities.Treatment{{Title: "Massage", Price: 60, DurationMinutes: 45}},
	})
	require.NoError(t, err)

	assert.Equal(t, true, record["is_verified"])
	assert.Equal(t, 4.2, record["rating"])
	assert.Equal(t, "{}", record["availability"])
	assert.Equal(t, "[]", record["reviews"])
	assert.JSONEq(t, `[{"title":"Massage","price":60,"duration_minutes":45}]`, record["treatments"].(string))
}
