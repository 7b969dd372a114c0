package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/aceriverson/titlesv2/pkg/geometry"
	"github.com/aceriverson/titlesv2/pkg/model"
)

// regionRequest is the body of create/edit/delete. The front-end sends the
// ring as leaflet lat/lng pairs; delete only carries the id.
type regionRequest struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	LatLngs []geometry.Point `json:"latlngs"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	athlete, _ := athleteFrom(r.Context())

	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ring, err := geometry.EncodeRing(req.LatLngs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.regions.Insert(r.Context(), athlete.ID, req.Name, req.ID, ring); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	athlete, _ := athleteFrom(r.Context())

	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.regions.Delete(r.Context(), athlete.ID, req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	athlete, _ := athleteFrom(r.Context())

	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ring, err := geometry.EncodeRing(req.LatLngs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.regions.UpdateGeometry(r.Context(), athlete.ID, req.ID, ring); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePolygons(w http.ResponseWriter, r *http.Request) {
	athlete, _ := athleteFrom(r.Context())

	var (
		regions []model.Region
		err     error
	)
	if s.isAdmin(athlete.ID) {
		regions, err = s.regions.ListAllOwners(r.Context())
	} else {
		regions, err = s.regions.ListByOwner(r.Context(), athlete.ID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if regions == nil {
		regions = []model.Region{}
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleSetAI(w http.ResponseWriter, r *http.Request) {
	athlete, _ := athleteFrom(r.Context())

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.users.SetAIEnabled(r.Context(), athlete.ID, req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleUser mirrors the front-end contract: an empty object when nobody is
// logged in, never a 401.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	athlete, ok := athleteFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":   athlete.ID,
		"name": athlete.Name,
		"pic":  athlete.Profile,
	})
}
