package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/industria/cotizacion-service/internal/application/quotation"
	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/transport/http/dto"
	"github.com/industria/cotizacion-service/internal/transport/http/middleware"
	"github.com/industria/cotizacion-service/internal/transport/http/response"
	"github.com/industria/cotizacion-service/internal/transport/http/validate"
)

type QuotationsHandler struct {
	svc *quotation.Service
}

func NewQuotationsHandler(svc *quotation.Service) *QuotationsHandler {
	return &QuotationsHandler{svc: svc}
}

func (h *QuotationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateQuotationReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("invalid json body"))
		return
	}

	q, err := h.svc.Create(r.Context(), quotation.CreateCmd{
		Actor:       middleware.Actor(r),
		ClientID:    req.ClientID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Description: req.Description,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, dto.ToQuotationResp(q))
}

func (h *QuotationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quotation_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"quotation_id": "must be uuid",
		}))
		return
	}

	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToQuotationResp(q))
}

func (h *QuotationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	filter := quotation.ListFilter{
		ClientID: q.Get("client_id"),
		Page:     page,
		PageSize: pageSize,
	}
	if v := q.Get("status"); v != "" {
		filter.Status = domain.NormalizeStatus(v)
	}

	items, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	out := make([]dto.QuotationResp, 0, len(items))
	for _, it := range items {
		out = append(out, dto.ToQuotationResp(it))
	}
	response.Data(w, http.StatusOK, dto.PageResp[dto.QuotationResp]{
		Items:    out,
		Page:     maxInt(filter.Page, 1),
		PageSize: normalizePageSize(filter.PageSize),
		Total:    total,
	})
}

// AddProgress appends a progress update. For technicians a proposed
// status change parks as PENDING until office review; other roles commit
// directly.
func (h *QuotationsHandler) AddProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quotation_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"quotation_id": "must be uuid",
		}))
		return
	}

	var req dto.AddProgressReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("invalid json body"))
		return
	}

	q, err := h.svc.AddProgress(r.Context(), id, dto.ToProgressUpdate(req), middleware.Actor(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToQuotationResp(q))
}

func (h *QuotationsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quotation_id")
	index, err := updateIndexParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"quotation_id": "must be uuid",
		}))
		return
	}

	q, err := h.svc.ApproveStage(r.Context(), id, index, middleware.Actor(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToQuotationResp(q))
}

func (h *QuotationsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quotation_id")
	index, err := updateIndexParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"quotation_id": "must be uuid",
		}))
		return
	}

	var req dto.RejectStageReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("invalid json body"))
		return
	}

	q, err := h.svc.RejectStage(r.Context(), id, index, middleware.Actor(r), req.Reason)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToQuotationResp(q))
}

func (h *QuotationsHandler) AssignTechnician(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quotation_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"quotation_id": "must be uuid",
		}))
		return
	}

	var req dto.AssignTechnicianReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("invalid json body"))
		return
	}

	q, err := h.svc.AssignTechnician(r.Context(), id, req.TechnicianID, middleware.Actor(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToQuotationResp(q))
}

func (h *QuotationsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quotation_id")
	if !validate.IsUUID(id) {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"quotation_id": "must be uuid",
		}))
		return
	}

	if err := h.svc.Remove(r.Context(), id, middleware.Actor(r)); err != nil {
		response.Err(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func updateIndexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "update_index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, domain.ErrValidationMeta("invalid path param", map[string]string{
			"update_index": "must be a non-negative integer",
		})
	}
	return index, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func normalizePageSize(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}
