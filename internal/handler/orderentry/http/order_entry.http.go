package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/krobus00/order-entry/internal/constant"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/service/orderentry"
	"github.com/sirupsen/logrus"
)

const (
	maxListLimit    = 500
	maxRequestBytes = 4 << 10
)

type UpdateFieldRequest struct {
	Symbol string      `json:"symbol"`
	Field  string      `json:"field"`
	Value  null.String `json:"value"`
}

type SetQualifierRequest struct {
	Symbol    string `json:"symbol"`
	Qualifier string `json:"qualifier"`
	Enabled   bool   `json:"enabled"`
}

type SymbolRequest struct {
	Symbol string `json:"symbol"`
}

type Handler struct {
	orderEntryService *orderentry.Service
}

func NewOrderEntryHTTPHandler(orderEntryService *orderentry.Service) *Handler {
	return &Handler{orderEntryService: orderEntryService}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/order-entry/v1/draft", withAPIKey(h.GetDraft))
	mux.HandleFunc("/order-entry/v1/draft/fields", withAPIKey(h.UpdateField))
	mux.HandleFunc("/order-entry/v1/draft/qualifiers", withAPIKey(h.SetQualifier))
	mux.HandleFunc("/order-entry/v1/draft/reset", withAPIKey(h.ResetDraft))
	mux.HandleFunc("/order-entry/v1/orders", withAPIKey(h.Orders))
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbol is required"})
		return
	}

	view, err := h.orderEntryService.GetDraft(r.Context(), sessionFromRequest(r), symbol)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapDraftView(view))
}

func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req UpdateFieldRequest
	if !decodePost(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Symbol) == "" || strings.TrimSpace(req.Field) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields"})
		return
	}

	view, err := h.orderEntryService.UpdateField(r.Context(), sessionFromRequest(r), strings.TrimSpace(req.Symbol), strings.ToLower(strings.TrimSpace(req.Field)), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapDraftView(view))
}

func (h *Handler) SetQualifier(w http.ResponseWriter, r *http.Request) {
	var req SetQualifierRequest
	if !decodePost(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Symbol) == "" || strings.TrimSpace(req.Qualifier) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields"})
		return
	}

	view, err := h.orderEntryService.SetQualifier(r.Context(), sessionFromRequest(r), strings.TrimSpace(req.Symbol), strings.ToLower(strings.TrimSpace(req.Qualifier)), req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapDraftView(view))
}

func (h *Handler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	var req SymbolRequest
	if !decodePost(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Symbol) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbol is required"})
		return
	}

	view, err := h.orderEntryService.ResetDraft(r.Context(), sessionFromRequest(r), strings.TrimSpace(req.Symbol))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapDraftView(view))
}

// Orders submits the current draft on POST and lists past submissions on GET.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.SubmitOrder(w, r)
	case http.MethodGet:
		h.ListOrders(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SymbolRequest
	if !decodePost(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Symbol) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "symbol is required"})
		return
	}

	res, err := h.orderEntryService.Submit(r.Context(), sessionFromRequest(r), strings.TrimSpace(req.Symbol))
	writeJSON(w, statusCode(err), mapSubmitResult(res, err))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := uint64(0)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed > maxListLimit {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	submissions, err := h.orderEntryService.ListSubmissions(r.Context(), sessionFromRequest(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]SubmissionResponse, 0, len(submissions))
	for _, s := range submissions {
		resp = append(resp, mapSubmission(s))
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": resp})
}

func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return false
	}

	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body"})
		return false
	}

	return true
}

func sessionFromRequest(r *http.Request) *entity.Session {
	return &entity.Session{
		ID:        strings.TrimSpace(r.Header.Get(constant.HeaderSessionID)),
		AccountID: strings.TrimSpace(r.Header.Get(constant.HeaderAccountID)),
		Signer:    strings.TrimSpace(r.Header.Get(constant.HeaderSigner)),
	}
}

func statusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, entity.ErrInvalidValue),
		errors.Is(err, entity.ErrInvalidOrderSide),
		errors.Is(err, entity.ErrInvalidOrderType),
		errors.Is(err, entity.ErrInvalidInstrument),
		errors.Is(err, entity.ErrMissingPrice),
		errors.Is(err, entity.ErrMissingSize),
		errors.Is(err, entity.ErrMissingTriggerPrice),
		errors.Is(err, entity.ErrSessionRequired):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrInstrumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrSubmissionInFlight),
		errors.Is(err, entity.ErrDraftLocked):
		return http.StatusConflict
	case errors.Is(err, entity.ErrPrerequisiteMissing):
		return http.StatusPreconditionFailed
	case errors.Is(err, entity.ErrPriceUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrSubmissionRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		logrus.Errorf("order entry request failed: %v", err)
		writeJSON(w, code, map[string]any{"error": "internal server error"})
		return
	}

	writeJSON(w, code, map[string]any{"error": err.Error()})
}
