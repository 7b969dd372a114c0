package api

import (
	"encoding/json"
	"net/http"

	"github.com/aceriverson/titlesv2/pkg/model"
	"github.com/aceriverson/titlesv2/pkg/webhook"
)

// requiredScope is what the authorize URL asks for plus the implicit "read"
// Strava prepends. An exchange arriving with anything narrower means the
// athlete unchecked a permission, and the pipeline could not function.
const requiredScope = "read,activity:write,activity:read_all"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.oauth.AuthCodeURL(), http.StatusFound)
}

func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("scope") != requiredScope {
		http.Error(w, "invalid scope", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	tok, err := s.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		s.logger.Error("oauth exchange failed", "error", err)
		http.Error(w, "oauth exchange failed", http.StatusBadGateway)
		return
	}

	var athlete model.Athlete
	if err := json.Unmarshal(tok.Athlete, &athlete); err != nil || athlete.ID == 0 {
		s.logger.Error("oauth exchange returned no athlete", "error", err)
		http.Error(w, "oauth exchange failed", http.StatusBadGateway)
		return
	}

	cred := &model.Credential{
		Owner:        athlete.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		Athlete:      tok.Athlete,
	}
	if err := s.users.Upsert(r.Context(), cred); err != nil {
		s.writeError(w, err)
		return
	}

	session, err := s.sessions.Issue(athlete)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.sessions.SetCookie(w, session)
	http.Redirect(w, r, s.postLoginURL, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, s.postLoginURL, http.StatusFound)
}

// handleWebhookVerify answers Strava's subscription validation handshake.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	echo, ok := s.events.VerifyChallenge(
		r.URL.Query().Get("hub.verify_token"),
		r.URL.Query().Get("hub.challenge"),
	)
	if !ok {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": echo})
}

func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var event model.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Strava retries non-2xx deliveries; an abort is worth a retry, a
	// rejected or no-op event is not.
	if state := s.events.HandleEvent(r.Context(), &event); state == webhook.StateAborted {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
