package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medicheck/pkg/errors"
	"github.com/zatekoja/medicheck/pkg/geo"
)

const hospitalsTable = "hospitals"

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var facilityColumns = []interface{}{
	"id", "public_code", "name", "address", "phone", "department", "department_code",
	"latitude", "longitude",
	"doctor_total_count", "medical_specialist_count", "medical_general_count",
	"medical_intern_count", "medical_resident_count", "dental_specialist_count",
	"oriental_specialist_count", "established_date",
	"region_code", "region_name", "district_code", "district_name",
	"neighborhood", "postal_code", "homepage",
	"created_at", "updated_at",
}

var sortColumns = map[string]string{
	repositories.SortByID:        "id",
	repositories.SortByName:      "name",
	repositories.SortByCreatedAt: "created_at",
	repositories.SortByUpdatedAt: "updated_at",
}

// FacilityAdapter implements FacilityRepository on PostgreSQL + PostGIS
type FacilityAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

var _ repositories.FacilityRepository = (*FacilityAdapter)(nil)

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client, metrics *observability.Metrics) *FacilityAdapter {
	return &FacilityAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

func (a *FacilityAdapter) observe(ctx context.Context, operation string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(start))
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id int64) (*entities.Facility, error) {
	defer a.observe(ctx, "hospitals.get_by_id", time.Now())

	query, args, err := a.db.From(hospitalsTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	f, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("hospital %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get hospital", err)
	}
	return &f, nil
}

// FindByIDs retrieves facilities by ID
func (a *FacilityAdapter) FindByIDs(ctx context.Context, ids []int64) ([]entities.Facility, error) {
	if len(ids) == 0 {
		return []entities.Facility{}, nil
	}
	defer a.observe(ctx, "hospitals.find_by_ids", time.Now())

	query, args, err := a.db.From(hospitalsTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryFacilities(ctx, query, args)
}

// FindByPublicCodes retrieves facilities by registry code
func (a *FacilityAdapter) FindByPublicCodes(ctx context.Context, codes []string) ([]entities.Facility, error) {
	if len(codes) == 0 {
		return []entities.Facility{}, nil
	}
	defer a.observe(ctx, "hospitals.find_by_public_codes", time.Now())

	query, args, err := a.db.From(hospitalsTable).
		Select(facilityColumns...).
		Where(goqu.Ex{"public_code": codes}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryFacilities(ctx, query, args)
}

// InsertMany inserts new facilities in one transaction, skipping public-code
// conflicts, and returns the rows that were actually written.
func (a *FacilityAdapter) InsertMany(ctx context.Context, facilities []entities.Facility) ([]entities.Facility, error) {
	if len(facilities) == 0 {
		return []entities.Facility{}, nil
	}
	defer a.observe(ctx, "hospitals.insert_many", time.Now())

	rows := make([]interface{}, 0, len(facilities))
	for _, f := range facilities {
		record, err := facilityRecord(f)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode hospital location", err)
		}
		record["created_at"] = f.CreatedAt
		record["public_code"] = f.PublicCode
		rows = append(rows, record)
	}

	query, args, err := a.db.Insert(hospitalsTable).
		Rows(rows...).
		OnConflict(goqu.DoNothing()).
		Returning(facilityColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build insert query", err)
	}

	inserted := []entities.Facility{}
	err = a.client.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer result.Close()

		for result.Next() {
			f, err := scanFacility(result)
			if err != nil {
				return err
			}
			inserted = append(inserted, f)
		}
		return result.Err()
	})
	if isUniqueViolation(err) {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("concurrent hospital insert detected, treating as already synchronized")
		return []entities.Facility{}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to insert hospitals", err)
	}
	return inserted, nil
}

// UpdateMany writes every facility's mutable columns in one transaction
func (a *FacilityAdapter) UpdateMany(ctx context.Context, facilities []entities.Facility) (int, error) {
	if len(facilities) == 0 {
		return 0, nil
	}
	defer a.observe(ctx, "hospitals.update_many", time.Now())

	queries := make([]string, 0, len(facilities))
	for _, f := range facilities {
		record, err := facilityRecord(f)
		if err != nil {
			return 0, apperrors.NewInternalError("failed to encode hospital location", err)
		}
		query, _, err := a.db.Update(hospitalsTable).
			Set(record).
			Where(goqu.Ex{"id": f.ID}).
			ToSQL()
		if err != nil {
			return 0, apperrors.NewInternalError("failed to build update query", err)
		}
		queries = append(queries, query)
	}

	updated := 0
	err := a.client.WithTx(ctx, func(tx *sql.Tx) error {
		for _, query := range queries {
			res, err := tx.ExecContext(ctx, query)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			updated += int(n)
		}
		return nil
	})
	if isUniqueViolation(err) {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("hospital update hit a unique constraint, skipping batch")
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewInternalError("failed to update hospitals", err)
	}
	return updated, nil
}

// FindNearbyIDs runs the spherical-distance radius query
func (a *FacilityAdapter) FindNearbyIDs(ctx context.Context, q repositories.NearbyQuery) ([]repositories.NearbyHit, error) {
	defer a.observe(ctx, "hospitals.find_nearby", time.Now())

	point := goqu.L("ST_SetSRID(ST_MakePoint(?, ?), ?)", q.Longitude, q.Latitude, geo.SRID)
	distance := goqu.Func("ST_DistanceSphere", goqu.C("location"), point)
	// The && box test is served by idx_hospitals_location; the sphere
	// distance is the exact, inclusive filter.
	dLat, dLon := geo.SearchBox(q.Latitude, q.Longitude, q.RadiusMeters)
	box := goqu.L(`"location" && ST_Expand(?, ?, ?)`, point, dLon, dLat)

	query, args, err := a.db.From(hospitalsTable).
		Select(goqu.C("id"), distance.As("distance_meters")).
		Where(
			goqu.C("location").IsNotNull(),
			box,
			distance.Lte(q.RadiusMeters),
		).
		Order(goqu.I("distance_meters").Asc(), goqu.C("id").Asc()).
		Limit(uint(q.Limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build nearby query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query nearby hospitals", err)
	}
	defer rows.Close()

	hits := []repositories.NearbyHit{}
	for rows.Next() {
		var hit repositories.NearbyHit
		if err := rows.Scan(&hit.ID, &hit.DistanceMeters); err != nil {
			return nil, apperrors.NewInternalError("failed to scan nearby hospital", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read nearby hospitals", err)
	}
	return hits, nil
}

// List retrieves a filtered, sorted page of facilities and the total count
func (a *FacilityAdapter) List(ctx context.Context, filter repositories.FacilityFilter) ([]entities.Facility, int64, error) {
	defer a.observe(ctx, "hospitals.list", time.Now())

	ds := a.db.From(hospitalsTable)
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		pattern := "%" + escapeLike(kw) + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("address").ILike(pattern),
			goqu.C("department").ILike(pattern),
		))
	}
	if dept := strings.TrimSpace(filter.Department); dept != "" {
		ds = ds.Where(goqu.C("department").Eq(dept))
	}

	countQuery, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}
	var total int64
	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to count hospitals", err)
	}

	column, ok := sortColumns[filter.SortField]
	if !ok {
		column = "id"
	}
	order := goqu.C(column).Asc()
	if filter.SortDesc {
		order = goqu.C(column).Desc()
	}

	ds = ds.Select(facilityColumns...).Order(order, goqu.C("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build query", err)
	}
	facilities, err := a.queryFacilities(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	return facilities, total, nil
}

func (a *FacilityAdapter) queryFacilities(ctx context.Context, query string, args []interface{}) ([]entities.Facility, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query hospitals", err)
	}
	defer rows.Close()

	facilities := []entities.Facility{}
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan hospital", err)
		}
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read hospitals", err)
	}
	return facilities, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFacility(row rowScanner) (entities.Facility, error) {
	var f entities.Facility
	err := row.Scan(
		&f.ID, &f.PublicCode, &f.Name, &f.Address, &f.Phone, &f.Department, &f.DepartmentCode,
		&f.Latitude, &f.Longitude,
		&f.DoctorTotalCount, &f.MedicalSpecialistCount, &f.MedicalGeneralCount,
		&f.MedicalInternCount, &f.MedicalResidentCount, &f.DentalSpecialistCount,
		&f.OrientalSpecialistCount, &f.EstablishedDate,
		&f.RegionCode, &f.RegionName, &f.DistrictCode, &f.DistrictName,
		&f.Neighborhood, &f.PostalCode, &f.Homepage,
		&f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

// facilityRecord maps the mutable columns. The point geometry is written
// from the same coordinate pair in the same statement.
func facilityRecord(f entities.Facility) (goqu.Record, error) {
	var location interface{}
	if f.HasLocation() {
		hex, err := geo.PointEWKBHex(*f.Latitude, *f.Longitude)
		if err != nil {
			return nil, err
		}
		location = goqu.L("ST_GeomFromEWKB(decode(?, 'hex'))", hex)
	}

	record := goqu.Record{
		"name":                      f.Name,
		"address":                   nullString(f.Address),
		"phone":                     nullString(f.Phone),
		"department":                nullString(f.Department),
		"department_code":           nullString(f.DepartmentCode),
		"latitude":                  nullFloat(f.Latitude),
		"longitude":                 nullFloat(f.Longitude),
		"location":                  location,
		"doctor_total_count":        nullInt(f.DoctorTotalCount),
		"medical_specialist_count":  nullInt(f.MedicalSpecialistCount),
		"medical_general_count":     nullInt(f.MedicalGeneralCount),
		"medical_intern_count":      nullInt(f.MedicalInternCount),
		"medical_resident_count":    nullInt(f.MedicalResidentCount),
		"dental_specialist_count":   nullInt(f.DentalSpecialistCount),
		"oriental_specialist_count": nullInt(f.OrientalSpecialistCount),
		"established_date":          nullDate(f.EstablishedDate),
		"region_code":               nullString(f.RegionCode),
		"region_name":               nullString(f.RegionName),
		"district_code":             nullString(f.DistrictCode),
		"district_name":             nullString(f.DistrictName),
		"neighborhood":              nullString(f.Neighborhood),
		"postal_code":               nullString(f.PostalCode),
		"homepage":                  nullString(f.Homepage),
		"updated_at":                f.UpdatedAt,
	}
	return record, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return goqu.L("?::date", t.Format("2006-01-02"))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
