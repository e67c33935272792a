package board

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinesync/dinesync/pkg/event"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	logger        apt.Logger
	config        *apt.Config
	tlm           *telemetry.HTTP
	session       *Session
	cart          *Cart
	registry      *Registry
	ledger        *Ledger
	notifications *Notifications
	submitter     *Submitter
	orderSvc      OrderService
	sse           http.Handler
}

type HandlerDeps struct {
	Session       *Session
	Cart          *Cart
	Registry      *Registry
	Ledger        *Ledger
	Notifications *Notifications
	Submitter     *Submitter
	OrderSvc      OrderService
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &Handler{
		config:        config,
		logger:        logger,
		tlm:           telemetry.NewHTTP(),
		session:       hd.Session,
		cart:          hd.Cart,
		registry:      hd.Registry,
		ledger:        hd.Ledger,
		notifications: hd.Notifications,
		submitter:     hd.Submitter,
		orderSvc:      hd.OrderSvc,
	}
}

// SetSSEHandler attaches the event stream endpoint (called after initialization).
func (h *Handler) SetSSEHandler(sse http.Handler) {
	h.sse = sse
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	if h.sse != nil {
		r.Method(http.MethodGet, "/events", h.sse)
	}

	r.Route("/session", func(r chi.Router) {
		r.Get("/table", h.GetSessionTable)
		r.Post("/table", h.ResolveSessionTable)
		r.Get("/flags/{name}", h.GetSessionFlag)
		r.Put("/flags/{name}", h.SetSessionFlag)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Put("/items/{productRef}", h.UpdateCartItem)
		r.Delete("/items/{productRef}", h.RemoveCartItem)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}/status", h.AdvanceOrderStatus)
	})

	r.Get("/tables/{tableKey}/order", h.GetOpenOrderForTable)
	r.Get("/bills", h.ListBills)

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Delete("/", h.DismissAllNotifications)
		r.Delete("/{id}", h.DismissNotification)
	})

	r.Post("/checkout", h.Checkout)
	r.Get("/submissions/{token}", h.GetSubmission)
	r.Post("/submissions/{token}/retry", h.RetrySubmission)
}

// Session

type resolveTableRequest struct {
	Mode  string `json:"mode,omitempty"`
	Table string `json:"table,omitempty"`
	Order string `json:"order,omitempty"`
	From  string `json:"from,omitempty"`
}

// ResolveSessionTable turns entry-link parameters into the active table
// identity. An unresolved request leaves the session untouched; the response
// tells the client to prompt instead.
func (h *Handler) ResolveSessionTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ResolveSessionTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req resolveTableRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	res := h.session.Resolve(ctx, LinkParams{
		Mode:  req.Mode,
		Table: req.Table,
		Order: req.Order,
		From:  req.From,
	})

	if res.Resolved {
		if err := h.session.SetTable(ctx, res.TableKey); err != nil {
			apt.RespondError(w, http.StatusInternalServerError, "Could not persist table selection")
			return
		}
		h.cart.Use(ctx, res.TableKey)
		log.Info("table resolved", "table_key", res.TableKey, "source", res.Source)
	} else {
		log.Info("table unresolved, client should prompt")
	}

	apt.RespondSuccess(w, res)
}

func (h *Handler) GetSessionTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSessionTable")
	defer finish()

	key := h.session.TableKey()
	apt.RespondSuccess(w, map[string]any{
		"table_key": key,
		"resolved":  key != "",
	})
}

func (h *Handler) GetSessionFlag(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSessionFlag")
	defer finish()

	name := chi.URLParam(r, "name")
	apt.RespondSuccess(w, map[string]any{
		"name":  name,
		"value": h.session.Flag(r.Context(), name),
	})
}

func (h *Handler) SetSessionFlag(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetSessionFlag")
	defer finish()

	log := h.log(r)
	name := chi.URLParam(r, "name")

	var req struct {
		Value bool `json:"value"`
	}
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	if err := h.session.SetFlag(r.Context(), name, req.Value); err != nil {
		log.Error("cannot persist session flag", "error", err, "flag", name)
		apt.RespondError(w, http.StatusInternalServerError, "Could not persist flag")
		return
	}

	apt.RespondSuccess(w, map[string]any{"name": name, "value": req.Value})
}

// Cart

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCart")
	defer finish()

	h.respondCart(w)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddCartItem")
	defer finish()

	log := h.log(r)

	var item event.Item
	if !h.decodePayload(w, r, &item, log) {
		return
	}

	if item.ProductRef == "" {
		apt.RespondError(w, http.StatusBadRequest, "Missing product reference")
		return
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	if err := h.cart.AddItem(r.Context(), item); err != nil {
		log.Error("cannot add cart item", "error", err, "product_ref", item.ProductRef)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update cart")
		return
	}

	h.respondCart(w)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateCartItem")
	defer finish()

	log := h.log(r)
	productRef := chi.URLParam(r, "productRef")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	if err := h.cart.UpdateQuantity(r.Context(), productRef, req.Quantity); err != nil {
		log.Error("cannot update cart item", "error", err, "product_ref", productRef)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update cart")
		return
	}

	h.respondCart(w)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveCartItem")
	defer finish()

	log := h.log(r)
	productRef := chi.URLParam(r, "productRef")

	if err := h.cart.RemoveItem(r.Context(), productRef); err != nil {
		log.Error("cannot remove cart item", "error", err, "product_ref", productRef)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update cart")
		return
	}

	h.respondCart(w)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ClearCart")
	defer finish()

	log := h.log(r)

	if err := h.cart.Clear(r.Context()); err != nil {
		log.Error("cannot clear cart", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not clear cart")
		return
	}

	h.respondCart(w)
}

func (h *Handler) respondCart(w http.ResponseWriter) {
	apt.RespondSuccess(w, map[string]any{
		"table_key":    h.cart.TableKey(),
		"items":        h.cart.Lines(),
		"bill_details": h.cart.Totals(),
	})
}

// Orders (local mirror)

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	apt.RespondCollection(w, h.registry.Orders(), "order")
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	id := chi.URLParam(r, "id")
	o, ok := h.registry.Get(id)
	if !ok {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	apt.RespondSuccess(w, o)
}

func (h *Handler) GetOpenOrderForTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOpenOrderForTable")
	defer finish()

	tableKey := chi.URLParam(r, "tableKey")
	o, ok := h.registry.OpenForTable(tableKey)
	if !ok {
		apt.RespondError(w, http.StatusNotFound, "No open order for table")
		return
	}

	apt.RespondSuccess(w, o)
}

// AdvanceOrderStatus proxies a staff status change to the order service and
// folds the confirmed snapshot back into the local mirror without waiting for
// the bus to echo it.
func (h *Handler) AdvanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceOrderStatus")
	defer finish()

	log := h.log(r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	updated, err := h.orderSvc.AdvanceStatus(ctx, id, req.Status)
	if err != nil {
		log.Error("status change rejected", "error", err, "order_id", id, "status", req.Status)
		apt.RespondError(w, http.StatusBadGateway, "Could not update order status")
		return
	}

	h.registry.ApplyUpdated(ctx, *updated)
	apt.RespondSuccess(w, updated)
}

// Bills

func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBills")
	defer finish()

	apt.RespondCollection(w, h.ledger.Bills(), "bill")
}

// Notifications

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListNotifications")
	defer finish()

	apt.RespondCollection(w, h.notifications.List(), "notification")
}

func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DismissNotification")
	defer finish()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if !h.notifications.Dismiss(id) {
		apt.RespondError(w, http.StatusNotFound, "Notification not found")
		return
	}

	apt.Respond(w, http.StatusNoContent, nil, nil)
}

func (h *Handler) DismissAllNotifications(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DismissAllNotifications")
	defer finish()

	h.notifications.DismissAll()
	apt.Respond(w, http.StatusNoContent, nil, nil)
}

// Checkout

type checkoutRequest struct {
	Notes    string              `json:"notes,omitempty"`
	Customer *event.CustomerInfo `json:"customer,omitempty"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Checkout")
	defer finish()

	log := h.log(r)

	var req checkoutRequest
	if !h.decodePayload(w, r, &req, log) {
		return
	}

	sub, err := h.submitter.Submit(r.Context(), req.Notes, req.Customer)
	if err != nil {
		// Validation failures never reach the network and are reported inline.
		log.Debug("checkout rejected", "reason", err)
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	apt.RespondSuccess(w, sub)
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSubmission")
	defer finish()

	sub, ok := h.submitter.Status(chi.URLParam(r, "token"))
	if !ok {
		apt.RespondError(w, http.StatusNotFound, "Submission not found")
		return
	}

	apt.RespondSuccess(w, sub)
}

func (h *Handler) RetrySubmission(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RetrySubmission")
	defer finish()

	log := h.log(r)

	sub, err := h.submitter.Retry(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		log.Debug("retry rejected", "reason", err)
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	apt.RespondSuccess(w, sub)
}

// Helpers

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request, dest any, log apt.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if len(body) == 0 {
		return true
	}

	if err := json.Unmarshal(body, dest); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}
