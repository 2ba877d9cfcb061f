// internal/httpserver/token.go
//
// Session tokens. A client proves which session it plays with an HS256 JWT
// whose "sid" claim is the session ID, sent as a bearer token or cookie.
// Tokens slide: once past half their lifetime, any session-scoped request
// gets a fresh one in the cookie and the X-Session-Token header.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/internal/game"
)

const (
	sessionCookieName  = "connections_session"
	sessionTokenHeader = "X-Session-Token"
)

// ctxSessionKey is the context key type for the resolved *game.Session.
type ctxSessionKey struct{}

// signToken creates an HS256 JWT for session id, valid for s.ttl.
func (s *Server) signToken(id string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": id,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	ss, err := t.SignedString(s.secret)
	return ss, exp, err
}

// parseToken verifies tok and returns its session ID and expiry.
func (s *Server) parseToken(tok string) (string, time.Time, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", time.Time{}, err
	}
	if !t.Valid {
		return "", time.Time{}, errors.New("invalid token")
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", time.Time{}, errors.New("token has no session")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, errors.New("token has no expiry")
	}
	return sid, exp.Time, nil
}

// requireSession resolves the request's token to a live session and puts it
// into the request context.
func (s *Server) requireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerOrCookie(r)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			sid, exp, err := s.parseToken(tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			sess, err := s.store.Get(r.Context(), sid)
			if err != nil {
				writeError(w, http.StatusNotFound, "session_not_found")
				return
			}
			if exp.Sub(s.now()) < s.ttl/2 {
				s.refreshToken(w, sid)
			}
			ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// refreshToken issues a new token for sid on the response.
func (s *Server) refreshToken(w http.ResponseWriter, sid string) {
	tok, exp, err := s.signToken(sid)
	if err != nil {
		log.Warn().Err(err).Str("session", sid).Msg("token refresh")
		return
	}
	w.Header().Set(sessionTokenHeader, tok)
	setSessionCookie(w, tok, exp)
}

// sessionFrom returns the session placed by requireSession.
func sessionFrom(r *http.Request) *game.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*game.Session)
	return sess
}

// bearerOrCookie extracts a token from the Authorization header, the session
// cookie, or (for browsers opening a WebSocket) the "token" query parameter.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

func setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
