// Package matcher selects the region an activity path belongs to.
package matcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
)

// RegionStore is the slice of the region repository the matcher queries.
// FindIntersecting returns candidates ordered earliest-entered first.
type RegionStore interface {
	FindIntersecting(ctx context.Context, owner int64, lineWKT string) ([]model.MatchResult, error)
	FindIntersectingAllOwners(ctx context.Context, lineWKT string) ([]model.MatchResult, error)
}

// Matcher finds the best-matching owned region for an activity path.
type Matcher struct {
	store        RegionStore
	adminOwnerID int64
	logger       *slog.Logger
}

// New constructs a matcher. adminOwnerID designates the single identity
// whose queries see every owner's regions; zero disables the override.
func New(store RegionStore, adminOwnerID int64, logger *slog.Logger) *Matcher {
	return &Matcher{store: store, adminOwnerID: adminOwnerID, logger: logger}
}

// IsAdmin reports whether the owner holds the cross-tenant visibility
// override. The check is by named configuration, not an inline literal.
func (m *Matcher) IsAdmin(owner int64) bool {
	return m.adminOwnerID != 0 && owner == m.adminOwnerID
}

// FindBestMatch returns the earliest-entered region intersecting the path,
// or nil when no owned region intersects. Ordering is delegated to the
// spatial query; the first candidate wins.
func (m *Matcher) FindBestMatch(ctx context.Context, owner int64, path []geometry.Point) (*model.MatchResult, error) {
	lineWKT, err := geometry.EncodePath(path)
	if err != nil {
		return nil, fmt.Errorf("encode activity path: %w", err)
	}

	var candidates []model.MatchResult
	if m.IsAdmin(owner) {
		candidates, err = m.store.FindIntersectingAllOwners(ctx, lineWKT)
	} else {
		candidates, err = m.store.FindIntersecting(ctx, owner, lineWKT)
	}
	if err != nil {
		return nil, fmt.Errorf("intersect query: %w", err)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	m.logger.Debug("matched region",
		"owner", owner,
		"polygon_id", best.PolygonID,
		"name", best.Name,
		"distance", best.Distance,
		"candidates", len(candidates),
	)
	return &best, nil
}
