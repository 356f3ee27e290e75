package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/industria/cotizacion-service/internal/application/quotation"
	"github.com/industria/cotizacion-service/internal/domain"
)

// Repo persists the quotation aggregate. The progress history lives in a
// single JSONB column and is rewritten whole on every update; it is small
// (tens of entries) and always read together with its quotation.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, q *domain.Quotation) error {
	updates, err := marshalUpdates(q.Updates)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertQuotationSQL,
		q.ID, q.ClientID, q.ClientName, q.ClientEmail, q.Description,
		q.TechnicianID, string(q.Status), q.ProgressPercent, string(q.ApprovalStatus),
		updates, q.CreatedAt, q.UpdatedAt,
	)
	return err
}

func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Quotation, error) {
	return scanQuotation(r.db.QueryRowContext(ctx, getQuotationSQL, id))
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteQuotationSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("cotización no encontrada")
	}
	return nil
}

func (r *Repo) List(ctx context.Context, f quotation.ListFilter) ([]*domain.Quotation, int, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	offset := (f.Page - 1) * f.PageSize

	where := []string{}
	args := []any{}
	argN := 1

	add := func(condFmt string, val any) {
		where = append(where, fmt.Sprintf(condFmt, argN))
		args = append(args, val)
		argN++
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if strings.TrimSpace(f.ClientID) != "" {
		add("client_id = $%d", strings.TrimSpace(f.ClientID))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	countSQL := "SELECT COUNT(*) FROM cotizaciones " + whereSQL
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := `
SELECT id, client_id, client_name, client_email, description,
       technician_id, status, progress_percent, approval_status,
       updates, created_at, updated_at
FROM cotizaciones
` + whereSQL + `
ORDER BY created_at DESC, id DESC
LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	args = append(args, f.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuotation(row rowScanner) (*domain.Quotation, error) {
	var q domain.Quotation
	var status, approval string
	var updates []byte
	err := row.Scan(
		&q.ID, &q.ClientID, &q.ClientName, &q.ClientEmail, &q.Description,
		&q.TechnicianID, &status, &q.ProgressPercent, &approval,
		&updates, &q.CreatedAt, &q.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("cotización no encontrada")
	}
	if err != nil {
		return nil, err
	}
	q.Status = domain.Status(status)
	q.ApprovalStatus = domain.ApprovalStatus(approval)
	if len(updates) > 0 {
		if err := json.Unmarshal(updates, &q.Updates); err != nil {
			return nil, fmt.Errorf("unmarshal updates for %s: %w", q.ID, err)
		}
	}
	return &q, nil
}

func marshalUpdates(updates []domain.ProgressUpdate) ([]byte, error) {
	if updates == nil {
		updates = []domain.ProgressUpdate{}
	}
	b, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("marshal updates: %w", err)
	}
	return b, nil
}
