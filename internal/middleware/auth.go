// Package middleware provides HTTP middleware shared by the API surfaces.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

type contextKey string

const (
	staffIDKey     contextKey = "staff_id"
	staffRoleKey   contextKey = "staff_role"
	staffTenantKey contextKey = "staff_tenant"
)

// Claims carries the staff identity inside an access token.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token for a staff user.
func IssueToken(secret string, staff tenant.StaffUser, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		TenantID: staff.TenantID,
		Email:    staff.Email,
		Role:     string(staff.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates an access token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// StaffAuth authenticates admin requests with a bearer token.
type StaffAuth struct {
	secret string
	log    *logger.Logger
}

// NewStaffAuth creates the staff authentication middleware.
func NewStaffAuth(secret string, log *logger.Logger) *StaffAuth {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &StaffAuth{secret: secret, log: log}
}

// Handler rejects requests without a valid bearer token and stores the staff
// identity in the request context.
func (a *StaffAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid authorization header")
			return
		}

		claims, err := ParseToken(a.secret, parts[1])
		if err != nil {
			a.log.WithError(err).WithField("path", r.URL.Path).Warn("token validation failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), staffIDKey, claims.Subject)
		ctx = context.WithValue(ctx, staffRoleKey, claims.Role)
		ctx = context.WithValue(ctx, staffTenantKey, claims.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StaffID extracts the authenticated staff ID from the context.
func StaffID(ctx context.Context) string {
	id, _ := ctx.Value(staffIDKey).(string)
	return id
}

// StaffRole extracts the authenticated staff role from the context.
func StaffRole(ctx context.Context) string {
	role, _ := ctx.Value(staffRoleKey).(string)
	return role
}

// StaffTenant extracts the authenticated staff user's tenant ID from the
// context.
func StaffTenant(ctx context.Context) string {
	id, _ := ctx.Value(staffTenantKey).(string)
	return id
}

// RequireAdmin rejects requests whose token does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if StaffRole(r.Context()) != string(tenant.RoleAdmin) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
