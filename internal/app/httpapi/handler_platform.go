package httpapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/services/tenants"
)

// platformTenants provisions and lists tenants. The endpoint only exists when
// a platform token is configured, and every call must present it.
func (h *handler) platformTenants(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PlatformToken == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	token := r.Header.Get("X-Platform-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.PlatformToken)) != 1 {
		writeError(w, http.StatusForbidden, fmt.Errorf("invalid platform token"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.app.Tenants.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		var payload struct {
			Name          string  `json:"name"`
			Subdomain     string  `json:"subdomain"`
			Currency      string  `json:"currency"`
			TaxRate       float64 `json:"tax_rate"`
			BusinessType  string  `json:"business_type"`
			AdminEmail    string  `json:"admin_email"`
			AdminName     string  `json:"admin_name"`
			AdminPassword string  `json:"admin_password"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := h.app.Tenants.Create(r.Context(), tenants.CreateInput{
			Name:         payload.Name,
			Subdomain:    payload.Subdomain,
			Currency:     payload.Currency,
			TaxRate:      payload.TaxRate,
			BusinessType: tenant.BusinessType(payload.BusinessType),
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp := map[string]interface{}{"tenant": created}
		if payload.AdminEmail != "" {
			admin, err := h.app.Tenants.CreateStaff(r.Context(), created.ID,
				payload.AdminEmail, payload.AdminName, payload.AdminPassword, tenant.RoleAdmin)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			admin.PasswordHash = ""
			resp["admin"] = admin
		}
		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       "platform",
			Tenant:     created.ID,
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     http.StatusCreated,
			RemoteAddr: r.RemoteAddr,
		})
		writeJSON(w, http.StatusCreated, resp)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
