package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industria/cotizacion-service/internal/application/quotation"
	"github.com/industria/cotizacion-service/internal/domain"
	"github.com/industria/cotizacion-service/internal/transport/http/middleware"
)

type mockClock struct{ t time.Time }

func (m mockClock) Now() time.Time { return m.t }

// stubRepo keeps one quotation in memory; enough to drive the handlers.
type stubRepo struct {
	q *domain.Quotation
}

func (s *stubRepo) Create(_ context.Context, q *domain.Quotation) error { s.q = q; return nil }
func (s *stubRepo) GetByID(_ context.Context, id string) (*domain.Quotation, error) {
	if s.q == nil || s.q.ID != id {
		return nil, domain.ErrNotFound("cotización no encontrada")
	}
	cp := *s.q
	return &cp, nil
}
func (s *stubRepo) List(_ context.Context, _ quotation.ListFilter) ([]*domain.Quotation, int, error) {
	if s.q == nil {
		return nil, 0, nil
	}
	return []*domain.Quotation{s.q}, 1, nil
}
func (s *stubRepo) Delete(_ context.Context, id string) error {
	if s.q == nil || s.q.ID != id {
		return domain.ErrNotFound("cotización no encontrada")
	}
	s.q = nil
	return nil
}
func (s *stubRepo) WithTx(_ context.Context, fn func(tr quotation.TxRepo) error) error {
	return fn(&stubTxRepo{repo: s})
}

type stubTxRepo struct{ repo *stubRepo }

func (t *stubTxRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Quotation, error) {
	return t.repo.GetByID(ctx, id)
}
func (t *stubTxRepo) Update(_ context.Context, q *domain.Quotation) error {
	t.repo.q = q
	return nil
}

func newHandler(repo *stubRepo) *QuotationsHandler {
	svc := quotation.New(repo, mockClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}, nil, nil, nil, 0)
	return NewQuotationsHandler(svc)
}

func asOffice(r *http.Request) *http.Request {
	return middleware.WithActor(r, domain.ActorContext{ID: "ofi_1", Role: domain.RoleOficina})
}

func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestQuotationsHandler_Create(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)

	t.Run("created", func(t *testing.T) {
		body := `{"client_id":"cli_1","client_name":"Taller Norte","client_email":"t@example.com","description":"Portón corredizo"}`
		req := asOffice(httptest.NewRequest("POST", "/cotizaciones", strings.NewReader(body)))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		var out struct {
			Data struct {
				ID              string `json:"id"`
				Status          string `json:"status"`
				ProgressPercent int    `json:"progress_percent"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.NotEmpty(t, out.Data.ID)
		assert.Equal(t, "PENDIENTE", out.Data.Status)
		assert.Equal(t, 5, out.Data.ProgressPercent)
	})

	t.Run("rejects_unknown_fields", func(t *testing.T) {
		body := `{"client_id":"cli_1","evil":"field"}`
		req := asOffice(httptest.NewRequest("POST", "/cotizaciones", strings.NewReader(body)))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("missing_client_is_validation_error", func(t *testing.T) {
		body := `{"client_name":"Taller","description":"Reja"}`
		req := asOffice(httptest.NewRequest("POST", "/cotizaciones", strings.NewReader(body)))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestQuotationsHandler_Get(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)

	t.Run("return_400_on_invalid_uuid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/cotizaciones/invalid-uuid", nil)
		req = withURLParams(req, map[string]string{"quotation_id": "invalid-uuid"})
		rr := httptest.NewRecorder()

		h.Get(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("return_404_when_missing", func(t *testing.T) {
		id := "550e8400-e29b-41d4-a716-446655440000"
		req := httptest.NewRequest("GET", "/cotizaciones/"+id, nil)
		req = withURLParams(req, map[string]string{"quotation_id": id})
		rr := httptest.NewRecorder()

		h.Get(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestQuotationsHandler_ProgressAndReview(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)

	q, err := domain.NewQuotation("cli_1", "Taller Norte", "t@example.com", "Portón", time.Now().UTC())
	require.NoError(t, err)
	q.Status = domain.StatusEnProceso
	q.ProgressPercent = 20
	repo.q = q

	// Technician proposes PRODUCCION with materials: parks as PENDING.
	body := `{"message":"materiales listos","proposed_status":"PRODUCCION","materials":"cable 10m"}`
	req := httptest.NewRequest("POST", "/cotizaciones/"+q.ID+"/progreso", strings.NewReader(body))
	req = middleware.WithActor(req, domain.ActorContext{ID: "tec_1", Role: domain.RoleTecnico})
	req = withURLParams(req, map[string]string{"quotation_id": q.ID})
	rr := httptest.NewRecorder()

	h.AddProgress(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out struct {
		Data struct {
			Status        string `json:"status"`
			PendingReview bool   `json:"pending_review"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "EN_PROCESO", out.Data.Status, "canonical status must not move before review")
	assert.True(t, out.Data.PendingReview)

	// Office approves update 0: status commits.
	req = asOffice(httptest.NewRequest("POST", "/cotizaciones/"+q.ID+"/progreso/0/aprobar", nil))
	req = withURLParams(req, map[string]string{"quotation_id": q.ID, "update_index": "0"})
	rr = httptest.NewRecorder()

	h.Approve(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "PRODUCCION", out.Data.Status)
	assert.False(t, out.Data.PendingReview)
}

func TestQuotationsHandler_RejectRequiresReason(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)

	q, err := domain.NewQuotation("cli_1", "Taller", "t@example.com", "Reja", time.Now().UTC())
	require.NoError(t, err)
	repo.q = q

	req := asOffice(httptest.NewRequest("POST", "/cotizaciones/"+q.ID+"/progreso/0/rechazar", strings.NewReader(`{"reason":""}`)))
	req = withURLParams(req, map[string]string{"quotation_id": q.ID, "update_index": "0"})
	rr := httptest.NewRecorder()

	h.Reject(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQuotationsHandler_InvalidUpdateIndex(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)
	id := "550e8400-e29b-41d4-a716-446655440000"

	req := asOffice(httptest.NewRequest("POST", "/cotizaciones/"+id+"/progreso/abc/aprobar", nil))
	req = withURLParams(req, map[string]string{"quotation_id": id, "update_index": "abc"})
	rr := httptest.NewRecorder()

	h.Approve(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "update_index")
}

func TestQuotationsHandler_RemoveIsAdminOnly(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)

	q, err := domain.NewQuotation("cli_1", "Taller", "t@example.com", "Reja", time.Now().UTC())
	require.NoError(t, err)
	repo.q = q

	req := asOffice(httptest.NewRequest("DELETE", "/cotizaciones/"+q.ID, nil))
	req = withURLParams(req, map[string]string{"quotation_id": q.ID})
	rr := httptest.NewRecorder()

	h.Remove(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest("DELETE", "/cotizaciones/"+q.ID, nil)
	req = middleware.WithActor(req, domain.ActorContext{ID: "adm_1", Role: domain.RoleAdmin})
	req = withURLParams(req, map[string]string{"quotation_id": q.ID})
	rr = httptest.NewRecorder()

	h.Remove(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestQuotationsHandler_List(t *testing.T) {
	repo := &stubRepo{}
	h := newHandler(repo)

	q, err := domain.NewQuotation("cli_1", "Taller", "t@example.com", "Reja", time.Now().UTC())
	require.NoError(t, err)
	repo.q = q

	req := asOffice(httptest.NewRequest("GET", "/cotizaciones?status=pendiente&page=1&page_size=10", nil))
	rr := httptest.NewRecorder()

	h.List(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out struct {
		Data struct {
			Items []json.RawMessage `json:"items"`
			Total int               `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Data.Total)
	assert.Len(t, out.Data.Items, 1)
}
