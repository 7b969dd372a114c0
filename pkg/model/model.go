// Package model defines the entities shared between storage, matching and
// the webhook pipeline.
package model

import (
	"encoding/json"

	"github.com/aceriverson/titlesv2/pkg/geometry"
)

// Region is a named polygon owned by a single athlete. The ring is stored
// closed in PostGIS; PUID is the externally-visible id, unique per owner.
type Region struct {
	Owner int64            `json:"owner"`
	Name  string           `json:"name"`
	PUID  string           `json:"id"`
	Ring  []geometry.Point `json:"latlngs"`
}

// Credential holds one athlete's Strava tokens. ExpiresAt is seconds since
// epoch, matching Strava's token payload. At most one row exists per owner.
type Credential struct {
	Owner        int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	AIEnabled    bool
	Athlete      json.RawMessage
}

// Athlete is the subset of Strava's athlete blob shown to the front-end.
type Athlete struct {
	ID      int64  `json:"id"`
	Name    string `json:"username"`
	Profile string `json:"profile"`
}

// MatchResult is one intersecting region, with the distance from the
// activity's start point to the region boundary. Distance is reported for
// observability only; ordering happens in the spatial query.
type MatchResult struct {
	PolygonID int64
	Name      string
	Distance  float64
}

// WebhookEvent is a Strava push notification. It is never persisted; the
// dispatcher processes it to completion or drops it.
type WebhookEvent struct {
	SubscriptionID int64             `json:"subscription_id"`
	OwnerID        int64             `json:"owner_id"`
	ObjectType     string            `json:"object_type"`
	AspectType     string            `json:"aspect_type"`
	ObjectID       int64             `json:"object_id"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Deauthorized reports whether the event revokes the owner's authorization.
func (e *WebhookEvent) Deauthorized() bool {
	return e.Updates["authorized"] == "false"
}
