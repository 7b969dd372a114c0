package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/model"
)

const sessionCookie = "titles_session"

// Sessions mints and verifies the signed cookie that identifies a logged-in
// athlete. The cookie carries only the profile summary the front-end needs;
// tokens never leave the database.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions constructs a session signer with the given HMAC secret.
func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: 30 * 24 * time.Hour}
}

type sessionClaims struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
	jwt.RegisteredClaims
}

// Issue signs a session token for the athlete.
func (s *Sessions) Issue(athlete model.Athlete) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Name:    athlete.Name,
		Profile: athlete.Profile,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(athlete.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a session token and returns the athlete it identifies.
func (s *Sessions) Parse(token string) (*model.Athlete, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrAuthRequired, err)
	}
	if !parsed.Valid {
		return nil, errs.ErrAuthRequired
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", errs.ErrAuthRequired)
	}
	return &model.Athlete{ID: id, Name: claims.Name, Profile: claims.Profile}, nil
}

// SetCookie attaches the session cookie to the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionCtxKey struct{}

// athleteFrom returns the athlete stored by the session middleware.
func athleteFrom(ctx context.Context) (*model.Athlete, bool) {
	a, ok := ctx.Value(sessionCtxKey{}).(*model.Athlete)
	return a, ok
}

// withSession resolves the session cookie if present and stores the athlete
// on the request context. It never rejects; handlers that need a session use
// requireSession.
func (s *Sessions) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err == nil {
			if athlete, err := s.Parse(cookie.Value); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), sessionCtxKey{}, athlete))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireSession rejects requests without a valid session cookie.
func requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := athleteFrom(r.Context()); !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
