package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industria/cotizacion-service/internal/application/quotation"
	"github.com/industria/cotizacion-service/internal/domain"
)

func quotationColumns() []string {
	return []string{
		"id", "client_id", "client_name", "client_email", "description",
		"technician_id", "status", "progress_percent", "approval_status",
		"updates", "created_at", "updated_at",
	}
}

func TestRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	now := time.Now().UTC()
	q, err := domain.NewQuotation("cli_1", "Taller Norte", "taller@example.com", "Portón corredizo 4m", now)
	require.NoError(t, err)
	q.ID = "cot_1"

	updates, err := json.Marshal(q.Updates)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO cotizaciones").
		WithArgs(
			q.ID, q.ClientID, q.ClientName, q.ClientEmail, q.Description,
			q.TechnicianID, string(q.Status), q.ProgressPercent, string(q.ApprovalStatus),
			updates, q.CreatedAt, q.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Create(context.Background(), q)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)

	t.Run("success_mapping", func(t *testing.T) {
		now := time.Now().UTC()
		history := []domain.ProgressUpdate{{
			Message:        "Medidas tomadas en sitio",
			AuthorID:       "tec_1",
			AuthorRole:     domain.RoleTecnico,
			ApprovalStatus: domain.ApprovalApproved,
			CreatedAt:      now,
		}}
		raw, err := json.Marshal(history)
		require.NoError(t, err)

		rows := sqlmock.NewRows(quotationColumns()).AddRow(
			"cot_123", "cli_1", "Taller Norte", "taller@example.com", "Portón",
			"tec_1", "EN_PROCESO", 20, "APPROVED",
			raw, now, now,
		)

		mock.ExpectQuery("SELECT (.+) FROM cotizaciones WHERE id =").
			WithArgs("cot_123").
			WillReturnRows(rows)

		q, err := repo.GetByID(context.Background(), "cot_123")
		require.NoError(t, err)
		assert.Equal(t, "cot_123", q.ID)
		assert.Equal(t, domain.StatusEnProceso, q.Status)
		require.Len(t, q.Updates, 1)
		assert.Equal(t, "Medidas tomadas en sitio", q.Updates[0].Message)
		assert.Equal(t, domain.RoleTecnico, q.Updates[0].AuthorRole)
	})

	t.Run("not_found_mapping", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WithArgs("none").WillReturnError(sql.ErrNoRows)

		q, err := repo.GetByID(context.Background(), "none")
		assert.Nil(t, q)

		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.CodeNotFound, appErr.Code)
	})

	t.Run("corrupt_history", func(t *testing.T) {
		now := time.Now().UTC()
		rows := sqlmock.NewRows(quotationColumns()).AddRow(
			"cot_bad", "cli_1", "Taller", "t@example.com", "Portón",
			"", "PENDIENTE", 5, "APPROVED",
			[]byte(`{not json`), now, now,
		)
		mock.ExpectQuery("SELECT").WithArgs("cot_bad").WillReturnRows(rows)

		_, err := repo.GetByID(context.Background(), "cot_bad")
		assert.Error(t, err)
	})
}

func TestRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cotizaciones WHERE status = \\$1 AND client_id = \\$2").
		WithArgs("PRODUCCION", "cli_7").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("SELECT (.+) FROM cotizaciones").
		WithArgs("PRODUCCION", "cli_7", 20, 0).
		WillReturnRows(sqlmock.NewRows(quotationColumns()).AddRow(
			"cot_9", "cli_7", "Cliente", "c@example.com", "Reja",
			"tec_2", "PRODUCCION", 55, "APPROVED",
			[]byte(`[]`), now, now,
		))

	out, total, err := repo.List(context.Background(), quotation.ListFilter{
		Status:   domain.StatusProduccion,
		ClientID: "cli_7",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, out, 1)
	assert.Equal(t, "cot_9", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)

	t.Run("ok", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM cotizaciones").
			WithArgs("cot_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Delete(context.Background(), "cot_1"))
	})

	t.Run("missing_row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM cotizaciones").
			WithArgs("cot_gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), "cot_gone")
		var appErr *domain.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.CodeNotFound, appErr.Code)
	})
}

func TestRepo_WithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := New(db)
	now := time.Now().UTC()

	t.Run("commit_on_success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM cotizaciones WHERE id = (.+) FOR UPDATE").
			WithArgs("cot_1").
			WillReturnRows(sqlmock.NewRows(quotationColumns()).AddRow(
				"cot_1", "cli_1", "Cliente", "c@example.com", "Reja",
				"", "PENDIENTE", 5, "APPROVED",
				[]byte(`[]`), now, now,
			))
		mock.ExpectExec("UPDATE cotizaciones SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.WithTx(context.Background(), func(tr quotation.TxRepo) error {
			q, err := tr.GetByIDForUpdate(context.Background(), "cot_1")
			if err != nil {
				return err
			}
			q.UpdatedAt = now
			return tr.Update(context.Background(), q)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback_on_error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		wantErr := errors.New("domain said no")
		err := repo.WithTx(context.Background(), func(quotation.TxRepo) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
