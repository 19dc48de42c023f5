package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"
	"coachfit/platform/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Constants for context keys
const (
	ContextUserIDKey   = "userID"
	ContextTenantIDKey = "tenantID"
	ContextUserRoleKey = "userRole"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}
		tokenString := parts[1]

		claims := &service.AuthClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			}
			return
		}
		if !token.Valid || claims.UserID == "" || claims.Role == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID) // Hex representation
		c.Set(ContextTenantIDKey, claims.TenantID)
		c.Set(ContextUserRoleKey, claims.Role)
		c.Next()
	}
}

// RoleMiddleware creates middleware to check if user has the required role(s).
// Must run AFTER AuthMiddleware.
func RoleMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleRaw, exists := c.Get(ContextUserRoleKey)
		if !exists {
			abortWithError(c, http.StatusInternalServerError, "User role not found in context")
			return
		}
		userRole, ok := roleRaw.(domain.Role)
		if !ok {
			abortWithError(c, http.StatusInternalServerError, "Invalid user role type in context")
			return
		}

		for _, allowedRole := range allowedRoles {
			if userRole == allowedRole {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, fmt.Sprintf("Access denied: Role '%s' does not have permission", userRole))
	}
}

// RecoveryMiddleware is the single process-wide panic boundary: it renders
// a diagnostic JSON body instead of killing the connection.
func RecoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal error",
			"path":  c.Request.URL.Path,
		})
	})
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// renderError maps service and repository errors onto HTTP statuses.
func renderError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		abortWithError(c, http.StatusConflict, err.Error())
		return
	case apperr.KindNotFound:
		abortWithError(c, http.StatusNotFound, err.Error())
		return
	case apperr.KindAuthExpired:
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	case apperr.KindPaymentGateway:
		abortWithError(c, http.StatusBadGateway, err.Error())
		return
	case apperr.KindPartialWrite:
		// The write landed partially; the client must know it is not a
		// clean failure.
		var e *apperr.Error
		if errors.As(err, &e) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "partial write",
				"committed": e.CommittedIDs,
			})
			return
		}
	}

	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrClientNotFound),
		errors.Is(err, service.ErrProtocolNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrTenantNotFound),
		errors.Is(err, service.ErrNoClientRecord),
		errors.Is(err, service.ErrNoCoach):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotTemplateOwner),
		errors.Is(err, service.ErrNotManagedClient):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrAlreadyAssigned),
		errors.Is(err, repository.ErrConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotATemplate),
		errors.Is(err, service.ErrInvalidTimeRange),
		errors.Is(err, service.ErrMissingDaySession):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationFailed):
		abortWithError(c, http.StatusUnauthorized, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (primitive.ObjectID, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return primitive.NilObjectID, errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return primitive.NilObjectID, errors.New("invalid user ID type in context")
	}
	return primitive.ObjectIDFromHex(idStr)
}

// Helper function to get Tenant ID from context (used by handlers)
func getTenantIDFromContext(c *gin.Context) (primitive.ObjectID, error) {
	idRaw, exists := c.Get(ContextTenantIDKey)
	if !exists {
		return primitive.NilObjectID, errors.New("tenant ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok || idStr == "" {
		return primitive.NilObjectID, errors.New("no tenant in token")
	}
	return primitive.ObjectIDFromHex(idStr)
}
