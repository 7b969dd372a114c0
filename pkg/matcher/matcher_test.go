package matcher

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
)

type fakeRegionStore struct {
	owned      []model.MatchResult
	all        []model.MatchResult
	ownedCalls int
	allCalls   int
	lastOwner  int64
	lastWKT    string
}

func (s *fakeRegionStore) FindIntersecting(ctx context.Context, owner int64, lineWKT string) ([]model.MatchResult, error) {
	s.ownedCalls++
	s.lastOwner = owner
	s.lastWKT = lineWKT
	return s.owned, nil
}

func (s *fakeRegionStore) FindIntersectingAllOwners(ctx context.Context, lineWKT string) ([]model.MatchResult, error) {
	s.allCalls++
	s.lastWKT = lineWKT
	return s.all, nil
}

var path = []geometry.Point{
	{Lat: 41.0, Lng: -71.0},
	{Lat: 41.1, Lng: -71.1},
}

func TestFindBestMatchReturnsFirstCandidate(t *testing.T) {
	// The store orders by position along the line; region A entered first.
	store := &fakeRegionStore{owned: []model.MatchResult{
		{PolygonID: 1, Name: "A", Distance: 12.5},
		{PolygonID: 2, Name: "B", Distance: 2.0},
	}}
	m := New(store, 0, slog.New(slog.DiscardHandler))

	best, err := m.FindBestMatch(context.Background(), 7, path)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "A", best.Name, "earliest-entered region wins, distance is not the ordering key")
	assert.Equal(t, int64(7), store.lastOwner)
	assert.Contains(t, store.lastWKT, "LINESTRING")
}

func TestFindBestMatchNoCandidates(t *testing.T) {
	store := &fakeRegionStore{}
	m := New(store, 0, slog.New(slog.DiscardHandler))

	best, err := m.FindBestMatch(context.Background(), 7, path)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestFindBestMatchEmptyPath(t *testing.T) {
	m := New(&fakeRegionStore{}, 0, slog.New(slog.DiscardHandler))

	_, err := m.FindBestMatch(context.Background(), 7, nil)
	assert.ErrorIs(t, err, errs.ErrEmptyGeometry)
}

func TestFindBestMatchAdminOverride(t *testing.T) {
	store := &fakeRegionStore{all: []model.MatchResult{{PolygonID: 9, Name: "Everywhere"}}}
	m := New(store, 73667316, slog.New(slog.DiscardHandler))

	best, err := m.FindBestMatch(context.Background(), 73667316, path)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "Everywhere", best.Name)
	assert.Equal(t, 1, store.allCalls)
	assert.Equal(t, 0, store.ownedCalls, "admin must use the explicit widened path")
}

func TestFindBestMatchScopedForEveryoneElse(t *testing.T) {
	store := &fakeRegionStore{owned: []model.MatchResult{{PolygonID: 3, Name: "Mine"}}}
	m := New(store, 73667316, slog.New(slog.DiscardHandler))

	best, err := m.FindBestMatch(context.Background(), 7, path)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "Mine", best.Name)
	assert.Equal(t, 0, store.allCalls, "non-admin owners never see other tenants' regions")
}

func TestIsAdminZeroConfigDisablesOverride(t *testing.T) {
	m := New(&fakeRegionStore{}, 0, slog.New(slog.DiscardHandler))
	assert.False(t, m.IsAdmin(0))
	assert.False(t, m.IsAdmin(7))
}
