package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/delivery"
	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/metrics"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/internal/middleware"
)

// admin dispatches authenticated staff requests. The tenant comes from the
// access token, never from the request.
func (h *handler) admin(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.StaffTenant(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("token carries no tenant"))
		return
	}

	rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if r.Method == http.MethodGet {
			return
		}
		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       middleware.StaffID(r.Context()),
			Role:       middleware.StaffRole(r.Context()),
			Tenant:     tenantID,
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	}()

	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		rec.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "dashboard":
		h.adminDashboard(rec, r, tenantID)
	case "orders":
		h.adminOrders(rec, r, tenantID, parts[1:])
	case "transactions":
		h.adminTransactions(rec, r, tenantID, parts[1:])
	case "reports":
		h.adminReports(rec, r, tenantID, parts[1:])
	case "settings":
		h.adminSettings(rec, r, tenantID, parts[1:])
	case "payment-methods":
		h.adminPaymentMethods(rec, r, tenantID)
	case "features":
		h.adminFeatures(rec, r, tenantID)
	case "categories":
		h.adminCategories(rec, r, tenantID, parts[1:])
	case "products":
		h.adminProducts(rec, r, tenantID, parts[1:])
	case "warehouses":
		h.adminWarehouses(rec, r, tenantID)
	case "stock":
		h.adminStock(rec, r, tenantID, parts[1:])
	case "batches":
		h.adminBatches(rec, r, tenantID, parts[1:])
	case "zones":
		h.adminZones(rec, r, tenantID, parts[1:])
	case "staff":
		middleware.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.adminStaff(w, r, tenantID)
		})).ServeHTTP(rec, r)
	case "audit":
		h.adminAudit(rec, r)
	default:
		rec.WriteHeader(http.StatusNotFound)
	}
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *handler) adminDashboard(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	d, err := h.app.Reports.Dashboard(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) adminOrders(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		filter := storage.OrderFilter{
			Status:        order.Status(q.Get("status")),
			Type:          order.Type(q.Get("type")),
			PaymentStatus: order.PaymentStatus(q.Get("payment_status")),
			Phone:         q.Get("phone"),
			DateFrom:      parseDate(q.Get("from")),
			DateTo:        parseDate(q.Get("to")),
			Offset:        intQuery(q.Get("offset"), 0),
			Limit:         intQuery(q.Get("limit"), 50),
		}
		page, total, err := h.app.Orders.List(r.Context(), tenantID, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"orders": page, "total": total})
		return
	}

	orderID := rest[0]
	if len(rest) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		o, err := h.app.Orders.Get(r.Context(), tenantID, orderID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}

	switch rest[1] {
	case "status":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Orders.Transition(r.Context(), tenantID, orderID, order.Status(payload.Status), payload.Reason)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case "transactions":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		txs, err := h.app.Payments.TransactionsForOrder(r.Context(), tenantID, orderID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, txs)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminTransactions(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) < 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	txID := rest[0]
	switch rest[1] {
	case "confirm-cash":
		tx, err := h.app.Payments.ConfirmCash(r.Context(), tenantID, txID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metrics.RecordPayment(tx.GatewayCode, string(tx.Status))
		writeJSON(w, http.StatusOK, tx)

	case "refund":
		var payload struct {
			Amount float64 `json:"amount"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tx, err := h.app.Payments.Refund(r.Context(), tenantID, txID, payload.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metrics.RecordPayment(tx.GatewayCode, string(tx.Status))
		writeJSON(w, http.StatusOK, tx)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminReports(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if r.Method != http.MethodGet || len(rest) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	from := parseDate(q.Get("from"))
	to := parseDate(q.Get("to"))
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}

	switch rest[0] {
	case "summary":
		sum, err := h.app.Reports.Summarize(r.Context(), tenantID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)

	case "top-products":
		top, err := h.app.Reports.TopProducts(r.Context(), tenantID, from, to, intQuery(q.Get("limit"), 10))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, top)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) adminSettings(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) > 0 && rest[0] == "full" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.adminSettingsFull(w, r, tenantID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := h.app.Tenants.Get(r.Context(), tenantID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, t)

	case http.MethodPut:
		var payload struct {
			Name     string  `json:"name"`
			Currency string  `json:"currency"`
			TaxRate  float64 `json:"tax_rate"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Tenants.UpdateSettings(r.Context(), tenantID, payload.Name, payload.Currency, payload.TaxRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// adminSettingsFull aggregates everything the admin settings screen shows in
// one response.
func (h *handler) adminSettingsFull(w http.ResponseWriter, r *http.Request, tenantID string) {
	t, err := h.app.Tenants.Get(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	methods, err := h.app.Payments.Methods(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	zones, err := h.app.Delivery.ListZones(r.Context(), tenantID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant":          t,
		"features":        h.app.Tenants.Features(t),
		"payment_methods": methods,
		"zones":           zones,
	})
}

func (h *handler) adminPaymentMethods(w http.ResponseWriter, r *http.Request, tenantID string) {
	switch r.Method {
	case http.MethodGet:
		methods, err := h.app.Payments.Methods(r.Context(), tenantID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, methods)

	case http.MethodPost, http.MethodPut:
		var payload struct {
			Gateway      string  `json:"gateway"`
			DisplayName  string  `json:"display_name"`
			Enabled      bool    `json:"enabled"`
			MinAmount    float64 `json:"min_amount"`
			MaxAmount    float64 `json:"max_amount"`
			DisplayOrder int     `json:"display_order"`
			MerchantID   string  `json:"merchant_id"`
			MerchantCode string  `json:"merchant_code"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := h.app.Payments.ConfigureMethod(r.Context(), payment.Method{
			TenantID:     tenantID,
			GatewayCode:  payload.Gateway,
			DisplayName:  payload.DisplayName,
			Enabled:      payload.Enabled,
			MinAmount:    payload.MinAmount,
			MaxAmount:    payload.MaxAmount,
			DisplayOrder: payload.DisplayOrder,
			MerchantID:   payload.MerchantID,
			MerchantCode: payload.MerchantCode,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminFeatures(w http.ResponseWriter, r *http.Request, tenantID string) {
	switch r.Method {
	case http.MethodGet:
		t, err := h.app.Tenants.Get(r.Context(), tenantID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Tenants.Features(t))

	case http.MethodPost:
		var payload struct {
			Code    string `json:"code"`
			Enabled bool   `json:"enabled"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.app.Tenants.SetFeature(r.Context(), tenantID, payload.Code, payload.Enabled)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Tenants.Features(updated))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminCategories(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) > 0 {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var c catalog.Category
		if err := decodeJSON(r.Body, &c); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c.ID = rest[0]
		c.TenantID = tenantID
		updated, err := h.app.Catalog.UpdateCategory(r.Context(), c)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}

	switch r.Method {
	case http.MethodGet:
		categories, err := h.app.Catalog.ListCategories(r.Context(), tenantID, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)

	case http.MethodPost:
		var c catalog.Category
		if err := decodeJSON(r.Body, &c); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		c.TenantID = tenantID
		created, err := h.app.Catalog.CreateCategory(r.Context(), c)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminProducts(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) > 0 {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var p catalog.Product
		if err := decodeJSON(r.Body, &p); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		p.ID = rest[0]
		p.TenantID = tenantID
		updated, err := h.app.Catalog.UpdateProduct(r.Context(), p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		products, err := h.app.Catalog.ListProducts(r.Context(), tenantID, storage.ProductFilter{
			CategoryID: q.Get("category"),
			Search:     q.Get("search"),
			Offset:     intQuery(q.Get("offset"), 0),
			Limit:      intQuery(q.Get("limit"), 0),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, products)

	case http.MethodPost:
		var p catalog.Product
		if err := decodeJSON(r.Body, &p); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		p.TenantID = tenantID
		created, err := h.app.Catalog.CreateProduct(r.Context(), p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminWarehouses(w http.ResponseWriter, r *http.Request, tenantID string) {
	switch r.Method {
	case http.MethodGet:
		warehouses, err := h.app.Catalog.ListWarehouses(r.Context(), tenantID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, warehouses)

	case http.MethodPost:
		var wh catalog.Warehouse
		if err := decodeJSON(r.Body, &wh); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		wh.TenantID = tenantID
		created, err := h.app.Catalog.CreateWarehouse(r.Context(), wh)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminStock(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) > 0 && rest[0] == "low" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		low, err := h.app.Catalog.LowStock(r.Context(), tenantID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, low)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		WarehouseID string  `json:"warehouse_id"`
		ProductID   string  `json:"product_id"`
		Qty         float64 `json:"qty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Catalog.SetStock(r.Context(), tenantID, payload.WarehouseID, payload.ProductID, payload.Qty); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminBatches(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				Code          string `json:"code"`
				CategoryID    string `json:"category_id"`
				Supplier      string `json:"supplier"`
				ReceiptDate   string `json:"receipt_date"`
				SlaughterDate string `json:"slaughter_date"`
				ExpiryDate    string `json:"expiry_date"`
				Certification string `json:"certification"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			created, err := h.app.Catalog.ReceiveBatch(r.Context(), catalog.Batch{
				TenantID:      tenantID,
				Code:          payload.Code,
				CategoryID:    payload.CategoryID,
				Supplier:      payload.Supplier,
				ReceiptDate:   parseDate(payload.ReceiptDate),
				SlaughterDate: parseDate(payload.SlaughterDate),
				ExpiryDate:    parseDate(payload.ExpiryDate),
				Certification: catalog.Certification(payload.Certification),
			})
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			if horizon := r.URL.Query().Get("expiring_within_hours"); horizon != "" {
				hours := intQuery(horizon, 72)
				batches, err := h.app.Catalog.ExpiringBatches(r.Context(), tenantID, time.Duration(hours)*time.Hour)
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				writeJSON(w, http.StatusOK, batches)
				return
			}
			batches, err := h.app.Catalog.ListBatches(r.Context(), tenantID)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, batches)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	code := rest[0]
	if len(rest) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b, err := h.app.Catalog.TraceBatch(r.Context(), tenantID, code)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}

	if rest[1] != "status" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.app.Catalog.UpdateBatchStatus(r.Context(), tenantID, code, catalog.BatchStatus(payload.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) adminZones(w http.ResponseWriter, r *http.Request, tenantID string, rest []string) {
	if len(rest) > 0 {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var z delivery.Zone
		if err := decodeJSON(r.Body, &z); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		z.ID = rest[0]
		z.TenantID = tenantID
		updated, err := h.app.Delivery.UpdateZone(r.Context(), z)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}

	switch r.Method {
	case http.MethodGet:
		zones, err := h.app.Delivery.ListZones(r.Context(), tenantID, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, zones)

	case http.MethodPost:
		var z delivery.Zone
		if err := decodeJSON(r.Body, &z); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		z.TenantID = tenantID
		created, err := h.app.Delivery.CreateZone(r.Context(), z)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) adminStaff(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role := tenant.StaffRole(payload.Role)
	if role == "" {
		role = tenant.RoleStaff
	}
	created, err := h.app.Tenants.CreateStaff(r.Context(), tenantID, payload.Email, payload.Name, payload.Password, role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created.PasswordHash = ""
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(intQuery(r.URL.Query().Get("limit"), 0)))
}
