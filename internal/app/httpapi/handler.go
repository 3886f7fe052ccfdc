// Package httpapi exposes the storefront, admin and webhook REST surfaces.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/maxnate/infinit-butchery/internal/app"
	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/metrics"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/internal/middleware"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Config carries the handler's settings.
type Config struct {
	// AuthSecret signs staff access tokens.
	AuthSecret string
	// TokenTTL bounds staff session length. Zero means 12 hours.
	TokenTTL time.Duration
	// AuditPath is an optional JSONL file for admin audit entries.
	AuditPath string
	// PlatformToken guards the tenant provisioning endpoint. Empty disables
	// the endpoint entirely.
	PlatformToken string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	hub   *Hub
	cfg   Config
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns a mux exposing the storefront, webhook and admin APIs.
// The hub is optional; without it the order stream endpoint returns 404.
func NewHandler(application *app.Application, hub *Hub, cfg Config, log *logger.Logger) (http.Handler, error) {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	sink, err := newFileAuditSink(cfg.AuditPath)
	if err != nil {
		return nil, err
	}

	h := &handler{
		app:   application,
		hub:   hub,
		cfg:   cfg,
		audit: newAuditLog(0, sink),
		log:   log,
	}

	auth := middleware.NewStaffAuth(cfg.AuthSecret, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/store/features", h.tenantScoped(h.storeFeatures))
	mux.HandleFunc("/store/categories", h.tenantScoped(h.storeCategories))
	mux.HandleFunc("/store/products", h.tenantScoped(h.storeProducts))
	mux.HandleFunc("/store/products/", h.tenantScoped(h.storeProductResources))
	mux.HandleFunc("/store/delivery-zones", h.tenantScoped(h.storeDeliveryZones))
	mux.HandleFunc("/store/payment-methods", h.tenantScoped(h.storePaymentMethods))
	mux.HandleFunc("/store/orders", h.tenantScoped(h.storeOrders))
	mux.HandleFunc("/store/orders/", h.tenantScoped(h.storeOrderResources))
	mux.HandleFunc("/webhooks/payments/", h.paymentWebhook)
	mux.HandleFunc("/platform/tenants", h.platformTenants)
	mux.HandleFunc("/admin/login", h.tenantScoped(h.adminLogin))
	mux.Handle("/admin/", auth.Handler(http.HandlerFunc(h.admin)))
	return mux, nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tenantScoped resolves the tenant from the X-Tenant-ID header or the host
// subdomain before invoking the handler.
func (h *handler) tenantScoped(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.app.Tenants.Resolve(r.Context(), r.Header.Get("X-Tenant-ID"), r.Host)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		next(w, r.WithContext(withTenantContext(r.Context(), t)))
	}
}

func (h *handler) storeFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, _ := tenantFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.app.Tenants.Features(t))
}

func (h *handler) storeCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, _ := tenantFromContext(r.Context())
	categories, err := h.app.Catalog.ListCategories(r.Context(), t.ID, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *handler) storeProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, _ := tenantFromContext(r.Context())
	q := r.URL.Query()
	filter := storage.ProductFilter{
		CategoryID:  q.Get("category"),
		Search:      q.Get("search"),
		VisibleOnly: true,
		InStockOnly: q.Get("include_out_of_stock") != "true",
		Offset:      intQuery(q.Get("offset"), 0),
		Limit:       intQuery(q.Get("limit"), 0),
	}
	products, err := h.app.Catalog.ListProducts(r.Context(), t.ID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *handler) storeProductResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/store/products"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	t, _ := tenantFromContext(r.Context())
	productID := parts[0]

	p, err := h.app.Catalog.GetProduct(r.Context(), t.ID, productID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if len(parts) > 1 && parts[1] == "stock" {
		onHand, err := h.app.Catalog.StockOnHand(r.Context(), t.ID, productID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"on_hand": onHand})
		return
	}
	if len(parts) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) storeDeliveryZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, _ := tenantFromContext(r.Context())
	q := r.URL.Query()

	if area, postal := q.Get("area"), q.Get("postal_code"); area != "" || postal != "" {
		zone, err := h.app.Delivery.ZoneForArea(r.Context(), t.ID, area, postal)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, zone)
		return
	}

	amount, _ := strconv.ParseFloat(q.Get("amount"), 64)
	availability, err := h.app.Delivery.Availability(r.Context(), t.ID, amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (h *handler) storePaymentMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, _ := tenantFromContext(r.Context())
	grouped, err := h.app.Payments.MethodsByType(r.Context(), t.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

func (h *handler) storeOrders(w http.ResponseWriter, r *http.Request) {
	t, _ := tenantFromContext(r.Context())
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Type          string  `json:"type"`
			CustomerName  string  `json:"customer_name"`
			CustomerPhone string  `json:"customer_phone"`
			CustomerEmail string  `json:"customer_email"`
			Discount      float64 `json:"discount"`
			Items         []struct {
				ProductID string  `json:"product_id"`
				Qty       float64 `json:"qty"`
				WeightKG  float64 `json:"weight_kg"`
				Notes     string  `json:"notes"`
			} `json:"items"`
			DeliveryZoneID   string `json:"delivery_zone_id"`
			DeliveryAddress  string `json:"delivery_address"`
			DeliveryDate     string `json:"delivery_date"`
			DeliveryTimeSlot string `json:"delivery_time_slot"`
			PickupDate       string `json:"pickup_date"`
			PickupTime       string `json:"pickup_time"`
			Notes            string `json:"notes"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		in := orders.CreateInput{
			Type:             order.Type(payload.Type),
			CustomerName:     payload.CustomerName,
			CustomerPhone:    payload.CustomerPhone,
			CustomerEmail:    payload.CustomerEmail,
			Discount:         payload.Discount,
			DeliveryZoneID:   payload.DeliveryZoneID,
			DeliveryAddress:  payload.DeliveryAddress,
			DeliveryTimeSlot: payload.DeliveryTimeSlot,
			PickupTime:       payload.PickupTime,
			Notes:            payload.Notes,
			DeliveryDate:     parseDate(payload.DeliveryDate),
			PickupDate:       parseDate(payload.PickupDate),
		}
		for _, item := range payload.Items {
			in.Items = append(in.Items, orders.ItemInput{
				ProductID: item.ProductID,
				Qty:       item.Qty,
				WeightKG:  item.WeightKG,
				Notes:     item.Notes,
			})
		}

		created, err := h.app.Orders.Create(r.Context(), t.ID, in)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metrics.RecordOrderCreated(string(created.Type), created.GrandTotal)
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		phone := r.URL.Query().Get("phone")
		offset := intQuery(r.URL.Query().Get("offset"), 0)
		page, total, err := h.app.Orders.History(r.Context(), t.ID, phone,
			offset, intQuery(r.URL.Query().Get("limit"), 20))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"orders":   page,
			"total":    total,
			"has_more": offset+len(page) < total,
		})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) storeOrderResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/store/orders"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	t, _ := tenantFromContext(r.Context())

	if parts[0] == "stream" {
		if h.hub == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.hub.Subscribe(w, r, t.ID)
		return
	}

	orderID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		o, err := h.app.Orders.Get(r.Context(), t.ID, orderID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		// Customers identify themselves by phone; staff go through /admin.
		if phone := strings.TrimSpace(r.URL.Query().Get("phone")); phone != "" && o.CustomerPhone != phone {
			writeError(w, http.StatusNotFound, fmt.Errorf("order %s not found", orderID))
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "cancel":
		var payload struct {
			Phone  string `json:"phone"`
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cancelled, err := h.app.Orders.CustomerCancel(r.Context(), t.ID, orderID, payload.Phone, payload.Reason)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, cancelled)

	case "pay":
		var payload struct {
			Gateway string `json:"gateway"`
			Phone   string `json:"phone"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, result, err := h.app.Payments.Initiate(r.Context(), t.ID, orderID, payload.Gateway, payload.Phone)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metrics.RecordPayment(tx.GatewayCode, string(tx.Status))
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"transaction":  tx,
			"reference":    result.Reference,
			"redirect_url": result.RedirectURL,
		})

	case "verify-payment":
		var payload struct {
			TransactionID string `json:"transaction_id"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := h.app.Payments.VerifyForOrder(r.Context(), t.ID, orderID, payload.TransactionID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	gateway := strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhooks/payments"), "/")
	if gateway == "" || strings.Contains(gateway, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.Body.Close()

	tx, err := h.app.Payments.HandleWebhook(r.Context(), gateway, payload, r.Header.Get("X-Webhook-Signature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	metrics.RecordPayment(tx.GatewayCode, string(tx.Status))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "transaction_status": string(tx.Status)})
}

func (h *handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	t, _ := tenantFromContext(r.Context())
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	staff, err := h.app.Tenants.Authenticate(r.Context(), t.ID, payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	token, err := middleware.IssueToken(h.cfg.AuthSecret, staff, h.cfg.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"staff": map[string]string{
			"id":    staff.ID,
			"email": staff.Email,
			"name":  staff.Name,
			"role":  string(staff.Role),
		},
	})
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
