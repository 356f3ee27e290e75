package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/industria/cotizacion-service/internal/application/quotation"
	"github.com/industria/cotizacion-service/internal/domain"
)

func (r *Repo) WithTx(ctx context.Context, fn func(tr quotation.TxRepo) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
		ReadOnly:  false,
	})
	if err != nil {
		return err
	}

	tr := &txRepo{tx: tx}

	defer func() {
		// Safety: in case fn panics, rollback to avoid leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tr); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txRepo struct {
	tx *sql.Tx
}

// GetByIDForUpdate takes the row lock; a second writer on the same id
// blocks here until the first transaction commits or rolls back.
func (t *txRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Quotation, error) {
	return scanQuotation(t.tx.QueryRowContext(ctx, getQuotationForUpdateSQL, id))
}

func (t *txRepo) Update(ctx context.Context, q *domain.Quotation) error {
	updates, err := marshalUpdates(q.Updates)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, updateQuotationSQL,
		q.ID,
		q.ClientName, q.ClientEmail, q.Description,
		q.TechnicianID, string(q.Status), q.ProgressPercent, string(q.ApprovalStatus),
		updates, q.UpdatedAt,
	)
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
