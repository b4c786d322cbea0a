package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/employd-dev/employd/internal/auth"
	"github.com/employd-dev/employd/internal/authz"
	"github.com/employd-dev/employd/internal/guard"
	"github.com/employd-dev/employd/internal/models"
	"github.com/employd-dev/employd/internal/session"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrSessionRevoked    = errors.New("session revoked or expired")
	ErrUserNotFound      = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

// GetSessionData returns the authenticated session context for a request
func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	sess, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := sess.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// resolveRequest turns the request's Bearer token into a session
// snapshot plus the matched records. Failures come back as an
// unauthenticated snapshot with an explanatory error, never as a
// response: the guard decides what the caller sees.
func (s *Server) resolveRequest(c *gin.Context) (session.Snapshot, *models.User, *auth.JWTClaims, error) {
	token, err := extractBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		return session.Snapshot{}, nil, nil, err
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return session.Snapshot{}, nil, nil, ErrInvalidToken
	}

	// The token must still be backed by a live provider session
	var provSession models.GatewaySession
	if err := s.db.Where("token_id = ?", claims.TokenID).First(&provSession).Error; err != nil {
		return session.Snapshot{}, nil, nil, ErrSessionRevoked
	}
	if !provSession.Active(time.Now()) {
		return session.Snapshot{}, nil, nil, ErrSessionRevoked
	}

	var user models.User
	if err := s.db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		return session.Snapshot{}, nil, nil, ErrUserNotFound
	}

	return session.Snapshot{
		User:            user.Profile(),
		IsAuthenticated: true,
	}, &user, claims, nil
}

// GuardMiddleware evaluates the route guard for every request and maps
// its decision onto HTTP: unauthenticated requests get 401 (or a login
// redirect for browser navigation), denials get 403, and allowed
// requests carry their session context forward.
func (s *Server) GuardMiddleware(req guard.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, user, claims, resolveErr := s.resolveRequest(c)

		hasPermission := func(p authz.Permission) bool {
			return snap.User != nil && s.permissions.Allowed(snap.User.Role, p)
		}

		decision := guard.Evaluate(snap, req, hasPermission, c.Request.URL.Path)

		switch decision.Outcome {
		case guard.Allow:
			setSession(c, &auth.SessionData{
				UserID:  user.ID,
				Email:   user.Email,
				Role:    user.Role,
				TokenID: claims.TokenID,
			})
			c.Next()
		case guard.RedirectToLogin:
			if resolveErr != nil {
				s.logger.Debug().Err(resolveErr).Str("path", c.Request.URL.Path).Msg("Unauthenticated request")
			}
			if isBrowserNavigation(c) {
				target := decision.RedirectTo + "?from=" + url.QueryEscape(decision.From)
				c.Redirect(http.StatusFound, target)
				c.Abort()
				return
			}
			respondWithError(c, s.logger, http.StatusUnauthorized, resolveErr, "Authentication required")
		case guard.DenyRole, guard.DenyPermission:
			respondWithError(c, s.logger, http.StatusForbidden, errors.New(decision.Outcome.String()), decision.Message)
		default:
			// Loading and error states cannot arise from a per-request
			// snapshot; treat them as unauthenticated just in case.
			respondWithError(c, s.logger, http.StatusUnauthorized, resolveErr, "Authentication required")
		}
	}
}

// isBrowserNavigation distinguishes a browser page load from an API
// call, so navigations get the login redirect and API clients get 401.
func isBrowserNavigation(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
