package order

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinesync/dinesync/pkg"
	"github.com/dinesync/dinesync/pkg/event"
)

const MaxBodyBytes = 1 << 20

const (
	defaultOrdersLimit = 50
	defaultBillsLimit  = 20
	maxFetchLimit      = 200
)

// Submission outcomes. The tag is explicit so clients render "order placed"
// vs "items added" deterministically instead of inferring from item counts.
const (
	OutcomeCreated   = "created"
	OutcomeMerged    = "merged"
	OutcomeDuplicate = "duplicate"
)

type Handler struct {
	logger    apt.Logger
	config    *apt.Config
	tlm       *telemetry.HTTP
	orderRepo OrderRepo
	billRepo  BillRepo
	publisher events.Publisher
}

type HandlerDeps struct {
	OrderRepo OrderRepo
	BillRepo  BillRepo
	Publisher events.Publisher
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &Handler{
		config:    config,
		logger:    logger,
		tlm:       telemetry.NewHTTP(),
		orderRepo: hd.OrderRepo,
		billRepo:  hd.BillRepo,
		publisher: hd.Publisher,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.SubmitOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}/status", h.AdvanceStatus)
	})

	r.Get("/tables/{tableKey}/order", h.GetOpenOrderForTable)
	r.Get("/bills", h.ListBills)
}

// Payloads

type SubmitOrderRequest struct {
	TableKey    string              `json:"table_key"`
	Items       []event.Item        `json:"items"`
	Notes       string              `json:"notes,omitempty"`
	Customer    *event.CustomerInfo `json:"customer,omitempty"`
	WaiterRef   *uuid.UUID          `json:"waiter_ref,omitempty"`
	ClientToken string              `json:"client_token,omitempty"`
}

type SubmitOrderResponse struct {
	Outcome string `json:"outcome"`
	Order   *Order `json:"order"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status"`
}

// SubmitOrder is the single submission entry point. The server is the
// authority on merge-vs-create: when the table already has an open order the
// submitted items are folded into it and the bill is updated, otherwise a new
// order and bill are created. The response order is authoritative and must
// replace any optimistic client copy by identity.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	req, ok := h.decodeSubmitPayload(w, r, log)
	if !ok {
		return
	}

	if msg, valid := validateSubmission(req.Items); !valid {
		log.Debug("rejecting invalid submission", "reason", msg)
		apt.RespondError(w, http.StatusBadRequest, msg)
		return
	}

	tableKey := resolveSubmissionTableKey(req.TableKey)

	// A replayed token is answered with the order it originally produced,
	// even when that order has since reached a terminal status.
	if req.ClientToken != "" {
		replayed, err := h.orderRepo.FindBySubmissionToken(ctx, tableKey, req.ClientToken)
		if err != nil {
			log.Error("cannot look up submission token", "error", err, "table_key", tableKey)
			apt.RespondError(w, http.StatusInternalServerError, "Could not submit order")
			return
		}
		if replayed != nil {
			log.Info("replaying duplicate submission", "order_id", replayed.ID.String(), "client_token", req.ClientToken)
			apt.Respond(w, http.StatusOK, SubmitOrderResponse{Outcome: OutcomeDuplicate, Order: replayed}, nil)
			return
		}
	}

	existing, err := h.orderRepo.FindOpenByTable(ctx, tableKey)
	if err != nil {
		log.Error("cannot look up open order", "error", err, "table_key", tableKey)
		apt.RespondError(w, http.StatusInternalServerError, "Could not submit order")
		return
	}

	if existing != nil {
		h.mergeSubmission(ctx, w, existing, req, log)
		return
	}

	h.createSubmission(ctx, w, tableKey, req, log)
}

func (h *Handler) createSubmission(ctx context.Context, w http.ResponseWriter, tableKey string, req SubmitOrderRequest, log apt.Logger) {
	o := NewOrder()
	o.TableKey = tableKey
	o.Items = mergeLines(nil, req.Items)
	o.Notes = req.Notes
	o.Customer = req.Customer
	o.WaiterRef = req.WaiterRef
	o.RecomputeBill()
	o.RecordSubmissionToken(req.ClientToken)
	o.BeforeCreate()

	if err := h.orderRepo.Create(ctx, o); err != nil {
		log.Error("cannot create order", "error", err, "table_key", tableKey)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	bill := NewBillForOrder(o)
	bill.BeforeCreate()
	if err := h.billRepo.Upsert(ctx, bill); err != nil {
		// The bill is derivable from the order; the next merge or fetch
		// reconverges, so the submission itself does not fail.
		log.Error("cannot create bill", "error", err, "order_id", o.ID.String())
	}

	h.publishOrderEvent(ctx, event.EventOrderCreated, o)
	h.publishBillEvent(ctx, event.EventBillCreated, bill)

	log.Info("order created", "order_id", o.ID.String(), "table_key", tableKey, "items", len(o.Items))
	apt.Respond(w, http.StatusCreated, SubmitOrderResponse{Outcome: OutcomeCreated, Order: o}, nil)
}

func (h *Handler) mergeSubmission(ctx context.Context, w http.ResponseWriter, existing *Order, req SubmitOrderRequest, log apt.Logger) {
	delta := mergeLines(nil, req.Items)

	existing.MergeItems(delta)
	if req.Notes != "" {
		if existing.Notes != "" {
			existing.Notes += "\n" + req.Notes
		} else {
			existing.Notes = req.Notes
		}
	}
	existing.RecordSubmissionToken(req.ClientToken)

	if err := h.orderRepo.Save(ctx, existing); err != nil {
		log.Error("cannot merge into order", "error", err, "order_id", existing.ID.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not submit order")
		return
	}

	bill := h.refreshBill(ctx, existing, log)

	h.publishOrderEvent(ctx, event.EventOrderUpdated, existing)
	if bill != nil {
		h.publishBillEvent(ctx, event.EventBillUpdated, bill)
	}
	h.publishItemsAdded(ctx, existing, delta)

	log.Info("order merged", "order_id", existing.ID.String(), "table_key", existing.TableKey, "added_items", len(delta))
	apt.Respond(w, http.StatusOK, SubmitOrderResponse{Outcome: OutcomeMerged, Order: existing}, nil)
}

// refreshBill brings the order's bill record in line with the order after a
// mutation, creating it if a previous write was lost.
func (h *Handler) refreshBill(ctx context.Context, o *Order, log apt.Logger) *Bill {
	bill, err := h.billRepo.GetByOrderRef(ctx, o.ID)
	if err != nil {
		log.Error("cannot load bill for order", "error", err, "order_id", o.ID.String())
		return nil
	}

	if bill == nil {
		bill = NewBillForOrder(o)
		bill.BeforeCreate()
	} else {
		bill.Totals = o.Bill
		bill.TableKey = o.TableKey
		bill.BeforeUpdate()
	}

	if err := h.billRepo.Upsert(ctx, bill); err != nil {
		log.Error("cannot update bill", "error", err, "order_id", o.ID.String())
		return nil
	}
	return bill
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	o, err := h.orderRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	if o == nil {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	links := apt.RESTfulLinksFor(o)
	apt.RespondSuccess(w, o, links...)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	tableKey := r.URL.Query().Get("table_key")
	limit := h.fetchLimit(r, "orders.fetch.limit", defaultOrdersLimit)

	var orders []*Order
	var err error

	if tableKey != "" {
		orders, err = h.orderRepo.ListByTable(ctx, pkg.NormalizeTableKey(tableKey))
	} else {
		orders, err = h.orderRepo.List(ctx, limit)
	}

	if err != nil {
		log.Error("error retrieving orders", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve orders")
		return
	}

	apt.RespondCollection(w, orders, "order")
}

// AdvanceStatus moves an order through the fixed pipeline. The UI reflects
// only the server-confirmed order broadcast to all subscribers.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceStatus")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	o, err := h.orderRepo.Get(ctx, id)
	if err != nil || o == nil {
		log.Error("order not found", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}

	req, ok := h.decodeAdvancePayload(w, r, log)
	if !ok {
		return
	}

	if err := o.AdvanceTo(req.Status); err != nil {
		log.Debug("rejected status transition", "order_id", id.String(), "from", o.Status, "to", req.Status)
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orderRepo.Save(ctx, o); err != nil {
		log.Error("cannot update order", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}

	h.publishOrderEvent(ctx, event.EventOrderUpdated, o)

	log.Info("order status advanced", "order_id", id.String(), "status", o.Status)
	links := apt.RESTfulLinksFor(o)
	apt.RespondSuccess(w, o, links...)
}

func (h *Handler) GetOpenOrderForTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOpenOrderForTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	tableKey := pkg.NormalizeTableKey(chi.URLParam(r, "tableKey"))
	if tableKey == "" {
		apt.RespondError(w, http.StatusBadRequest, "Invalid table key")
		return
	}

	o, err := h.orderRepo.FindOpenByTable(ctx, tableKey)
	if err != nil {
		log.Error("cannot look up open order", "error", err, "table_key", tableKey)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve order")
		return
	}

	if o == nil {
		apt.RespondError(w, http.StatusNotFound, "No open order for table")
		return
	}

	links := apt.RESTfulLinksFor(o)
	apt.RespondSuccess(w, o, links...)
}

func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBills")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	limit := h.fetchLimit(r, "bills.fetch.limit", defaultBillsLimit)

	bills, err := h.billRepo.List(ctx, limit)
	if err != nil {
		log.Error("error retrieving bills", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve bills")
		return
	}

	apt.RespondCollection(w, bills, "bill")
}

// Validation helpers

func validateSubmission(items []event.Item) (string, bool) {
	if len(items) == 0 {
		return "order must contain at least one item", false
	}
	for _, it := range items {
		if it.ProductRef == "" {
			return "every item needs a product reference", false
		}
		if it.Quantity < 1 {
			return "item quantity must be at least 1", false
		}
	}
	return "", true
}

// resolveSubmissionTableKey normalizes the submitted key; a submission that
// arrives without any table context falls back to the takeaway identity
// rather than being silently dropped.
func resolveSubmissionTableKey(raw string) string {
	key := pkg.NormalizeTableKey(raw)
	if key == "" {
		return pkg.Takeaway
	}
	return key
}

// mergeLines folds src into dst by product reference, summing quantities of
// duplicate lines. Used with a nil dst it normalizes a submitted item set.
func mergeLines(dst, src []event.Item) []event.Item {
	for _, in := range src {
		merged := false
		for i := range dst {
			if dst[i].ProductRef == in.ProductRef {
				dst[i].Quantity += in.Quantity
				merged = true
				break
			}
		}
		if !merged {
			dst = append(dst, in)
		}
	}
	return dst
}

func (h *Handler) fetchLimit(r *http.Request, configKey string, fallback int) int {
	limit := fallback
	configured, _ := h.config.GetString(configKey)
	if parsed, err := strconv.Atoi(configured); err == nil && parsed > 0 {
		limit = parsed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}
	return limit
}

// Event publishing

func (h *Handler) publishOrderEvent(ctx context.Context, eventType string, o *Order) {
	if h.publisher == nil {
		return
	}

	evt := event.OrderEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Order:      o.Snapshot(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("cannot marshal order event", "error", err, "order_id", o.ID.String())
		return
	}
	if err := h.publisher.Publish(ctx, event.OrdersTopic, payload); err != nil {
		h.logger.Error("cannot publish order event", "error", err, "order_id", o.ID.String())
	}
}

func (h *Handler) publishBillEvent(ctx context.Context, eventType string, b *Bill) {
	if h.publisher == nil || b == nil {
		return
	}

	evt := event.BillEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Bill:       b.Snapshot(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("cannot marshal bill event", "error", err, "bill_id", b.ID.String())
		return
	}
	if err := h.publisher.Publish(ctx, event.BillsTopic, payload); err != nil {
		h.logger.Error("cannot publish bill event", "error", err, "bill_id", b.ID.String())
	}
}

func (h *Handler) publishItemsAdded(ctx context.Context, o *Order, delta []event.Item) {
	if h.publisher == nil {
		return
	}

	evt := event.ItemsAddedEvent{
		EventType:  event.EventOrderItemsAdded,
		OccurredAt: time.Now().UTC(),
		OrderID:    o.ID.String(),
		TableKey:   o.TableKey,
		Items:      delta,
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("cannot marshal items added event", "error", err, "order_id", o.ID.String())
		return
	}
	if err := h.publisher.Publish(ctx, event.ItemsAddedTopic, payload); err != nil {
		h.logger.Error("cannot publish items added event", "error", err, "order_id", o.ID.String())
	}
}

// Helpers

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log apt.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
		apt.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr)
		apt.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) decodeSubmitPayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (SubmitOrderRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return SubmitOrderRequest{}, false
	}

	var req SubmitOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return SubmitOrderRequest{}, false
	}

	return req, true
}

func (h *Handler) decodeAdvancePayload(w http.ResponseWriter, r *http.Request, log apt.Logger) (AdvanceStatusRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return AdvanceStatusRequest{}, false
	}

	var req AdvanceStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return AdvanceStatusRequest{}, false
	}

	return req, true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}
