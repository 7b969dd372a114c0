package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
)

// RegionRepo stores user-drawn polygons in PostGIS.
type RegionRepo struct{ db *DB }

// NewRegionRepo constructs a region repository.
func NewRegionRepo(db *DB) *RegionRepo { return &RegionRepo{db: db} }

// Insert creates a new region from a closed-ring WKT.
func (r *RegionRepo) Insert(ctx context.Context, owner int64, name, puid, ringWKT string) error {
	const q = `
INSERT INTO polygons (owner, name, puid, geom)
VALUES ($1, $2, $3, ST_GeomFromText($4, 4326))`
	_, err := r.db.Pool.Exec(ctx, q, owner, name, puid, ringWKT)
	if isUniqueViolation(err) {
		return fmt.Errorf("region %q: %w", puid, errs.ErrAlreadyExists)
	}
	return err
}

// Delete removes one of the owner's regions by its external id.
func (r *RegionRepo) Delete(ctx context.Context, owner int64, puid string) error {
	const q = `DELETE FROM polygons WHERE owner = $1 AND puid = $2`
	tag, err := r.db.Pool.Exec(ctx, q, owner, puid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdateGeometry replaces the boundary of an existing region.
func (r *RegionRepo) UpdateGeometry(ctx context.Context, owner int64, puid, ringWKT string) error {
	const q = `
UPDATE polygons SET geom = ST_GeomFromText($3, 4326)
WHERE owner = $1 AND puid = $2`
	tag, err := r.db.Pool.Exec(ctx, q, owner, puid, ringWKT)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListByOwner returns the owner's regions with decoded rings.
func (r *RegionRepo) ListByOwner(ctx context.Context, owner int64) ([]model.Region, error) {
	const q = `
SELECT owner, name, puid, ST_AsText(geom)
FROM polygons WHERE owner = $1 ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegions(rows)
}

// ListAllOwners returns every region regardless of owner. This is the
// explicit admin widening; callers must gate it on the configured admin
// identity, never expose it to regular sessions.
func (r *RegionRepo) ListAllOwners(ctx context.Context) ([]model.Region, error) {
	const q = `
SELECT owner, name, puid, ST_AsText(geom)
FROM polygons ORDER BY owner, name`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegions(rows)
}

func scanRegions(rows pgx.Rows) ([]model.Region, error) {
	var regions []model.Region
	for rows.Next() {
		var (
			reg model.Region
			wkt string
		)
		if err := rows.Scan(&reg.Owner, &reg.Name, &reg.PUID, &wkt); err != nil {
			return nil, err
		}
		ring, err := geometry.DecodeRing(wkt)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", reg.PUID, err)
		}
		reg.Ring = ring
		regions = append(regions, reg)
	}
	return regions, rows.Err()
}

// intersectQuery orders candidates by the fractional position along the
// activity line at which each region's boundary is first encountered, so
// the region the activity entered first sorts first. The distance from the
// line start to the region is reported alongside for observability.
const intersectQuery = `
WITH input_linestring AS (
    SELECT ST_GeomFromText($1, 4326) AS geom
)
SELECT polygons.id AS polygon_id,
       polygons.name AS polygon_name,
       ST_Distance(polygons.geom, ST_StartPoint(input_linestring.geom)) AS distance
FROM polygons
JOIN input_linestring ON ST_Intersects(input_linestring.geom, polygons.geom)
WHERE polygons.owner = $2
ORDER BY ST_LineLocatePoint(input_linestring.geom, ST_StartPoint(polygons.geom))`

const intersectAllOwnersQuery = `
WITH input_linestring AS (
    SELECT ST_GeomFromText($1, 4326) AS geom
)
SELECT polygons.id AS polygon_id,
       polygons.name AS polygon_name,
       ST_Distance(polygons.geom, ST_StartPoint(input_linestring.geom)) AS distance
FROM polygons
JOIN input_linestring ON ST_Intersects(input_linestring.geom, polygons.geom)
ORDER BY ST_LineLocatePoint(input_linestring.geom, ST_StartPoint(polygons.geom))`

// FindIntersecting returns the owner's regions crossed by the activity
// line, earliest-entered first.
func (r *RegionRepo) FindIntersecting(ctx context.Context, owner int64, lineWKT string) ([]model.MatchResult, error) {
	rows, err := r.db.Pool.Query(ctx, intersectQuery, lineWKT, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

// FindIntersectingAllOwners is the admin widening of FindIntersecting.
func (r *RegionRepo) FindIntersectingAllOwners(ctx context.Context, lineWKT string) ([]model.MatchResult, error) {
	rows, err := r.db.Pool.Query(ctx, intersectAllOwnersQuery, lineWKT)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

func scanMatches(rows pgx.Rows) ([]model.MatchResult, error) {
	var matches []model.MatchResult
	for rows.Next() {
		var m model.MatchResult
		if err := rows.Scan(&m.PolygonID, &m.Name, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
