package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// IdentityLookup resolves the current identity of a token subject. It
// returns an error when the account no longer exists or is inactive.
type IdentityLookup interface {
	LookupIdentity(ctx context.Context, userID uint) (*Identity, error)
}

type Authenticator struct {
	tokens *Tokens
	lookup IdentityLookup
	log    *logrus.Entry
}

// NewAuthenticator returns an Authenticator. When lookup is nil the identity
// is taken from the token claims alone.
func NewAuthenticator(logger *logrus.Logger, tokens *Tokens, lookup IdentityLookup) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		lookup: lookup,
		log:    logger.WithField("component", "authenticator"),
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Middleware attaches the caller identity when a valid access token is
// presented. Requests without credentials pass through anonymously; a
// presented but invalid token is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := BearerToken(r)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Authorization header must contain a bearer token.")
			return
		}

		claims, err := a.tokens.ValidateAccess(token)
		if err != nil {
			a.log.WithError(err).WithField("path", r.URL.Path).Debug("Rejected token")
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}

		id := &Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
		if a.lookup != nil {
			id, err = a.lookup.LookupIdentity(r.Context(), claims.UserID)
			if err != nil {
				a.log.WithError(err).WithField("user_id", claims.UserID).Debug("Token subject rejected")
				writeDetail(w, http.StatusUnauthorized, "User not found or inactive")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireIdentity rejects requests that carry no authenticated identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
