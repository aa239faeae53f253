package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const testUserID = "5b0c3f5e-8f6b-4d59-9f1f-5b3d7f0a2c11"

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewWithDB(db), mock
}

func userRow(credits int, verified bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "credits", "instagram_username", "instagram_verified", "is_admin", "created_at"}).
		AddRow(testUserID, "chihiro@example.com", credits, nil, verified, false, time.Now())
}

func transformationRow(status models.TransformationStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "original_image", "mime_type", "remote_job_id", "transformed_image",
		"status", "error", "created_at", "updated_at", "finalized_at"}).
		AddRow(int64(7), testUserID, "originals/2026/10/14/a.png", "image/png", "job-7", nil, string(status), nil, now, now, nil)
}

func TestStorage_ApplyDebit(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(mock sqlmock.Sqlmock)
		wantBalance int
		wantErr     error
	}{
		{
			name: "successful debit",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE users SET credits = credits - \$1 WHERE id = \$2 AND credits >= \$1`).
					WithArgs(1, testUserID).
					WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(0))
				mock.ExpectExec(`INSERT INTO credit_transactions`).
					WithArgs(sqlmock.AnyArg(), testUserID, -1, "generation").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			wantBalance: 0,
		},
		{
			name: "insufficient credits",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE users SET credits = credits - \$1`).
					WithArgs(1, testUserID).
					WillReturnRows(sqlmock.NewRows([]string{"credits"}))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(testUserID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectRollback()
			},
			wantErr: apperr.ErrInsufficientCredits,
		},
		{
			name: "unknown user",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE users SET credits = credits - \$1`).
					WithArgs(1, testUserID).
					WillReturnRows(sqlmock.NewRows([]string{"credits"}))
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(testUserID).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				mock.ExpectRollback()
			},
			wantErr: apperr.ErrNotFound,
		},
		{
			name: "ledger insert fails rolls back",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`UPDATE users SET credits = credits - \$1`).
					WithArgs(1, testUserID).
					WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(2))
				mock.ExpectExec(`INSERT INTO credit_transactions`).
					WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			wantErr: errors.New("disk full"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, mock := newMockStorage(t)
			tt.setup(mock)

			balance, err := storage.ApplyDebit(context.Background(), testUserID, 1, models.ReasonGeneration)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantBalance, balance)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStorage_ApplyDebit_InsufficientIsSentinel(t *testing.T) {
	storage, mock := newMockStorage(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE users SET credits = credits - \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := storage.ApplyDebit(context.Background(), testUserID, 1, models.ReasonGeneration)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)
}

func TestStorage_ApplyCredit(t *testing.T) {
	storage, mock := newMockStorage(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE users SET credits = credits \+ \$1 WHERE id = \$2`).
		WithArgs(15, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(16))
	mock.ExpectExec(`INSERT INTO credit_transactions`).
		WithArgs(sqlmock.AnyArg(), testUserID, 15, "purchase").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, err := storage.ApplyCredit(context.Background(), testUserID, 15, models.ReasonPurchase)
	require.NoError(t, err)
	assert.Equal(t, 16, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateUserWithGrant(t *testing.T) {
	nu := models.NewUser{ID: testUserID, Email: "chihiro@example.com"}

	t.Run("creates user and initial transaction", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(testUserID, "chihiro@example.com", 1, nil).
			WillReturnRows(userRow(1, false))
		mock.ExpectExec(`INSERT INTO credit_transactions`).
			WithArgs(sqlmock.AnyArg(), testUserID, 1, "initial").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		u, err := storage.CreateUserWithGrant(context.Background(), nu, models.InitialCredits)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Credits)
		assert.Nil(t, u.InstagramUsername)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		u, err := storage.CreateUserWithGrant(context.Background(), nu, models.InitialCredits)
		assert.Nil(t, u)
		assert.ErrorIs(t, err, apperr.ErrDuplicateUser)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_VerifyInstagram(t *testing.T) {
	t.Run("first verification credits bonus", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users\s+SET instagram_verified = TRUE`).
			WithArgs(testUserID, "totoro_fan").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE users SET credits = credits \+ \$1`).
			WithArgs(2, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(3))
		mock.ExpectExec(`INSERT INTO credit_transactions`).
			WithArgs(sqlmock.AnyArg(), testUserID, 2, "instagram_follow").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		balance, err := storage.VerifyInstagram(context.Background(), testUserID, "totoro_fan", models.InstagramFollowCredits)
		require.NoError(t, err)
		assert.Equal(t, 3, balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already verified", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users\s+SET instagram_verified = TRUE`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := storage.VerifyInstagram(context.Background(), testUserID, "totoro_fan", models.InstagramFollowCredits)
		assert.ErrorIs(t, err, apperr.ErrAlreadyVerified)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_SetBalance(t *testing.T) {
	t.Run("writes corrective transaction", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT credits FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(3))
		mock.ExpectExec(`UPDATE users SET credits = \$1 WHERE id = \$2`).
			WithArgs(10, testUserID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO credit_transactions`).
			WithArgs(sqlmock.AnyArg(), testUserID, 7, "admin").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		balance, delta, err := storage.SetBalance(context.Background(), testUserID, 10)
		require.NoError(t, err)
		assert.Equal(t, 10, balance)
		assert.Equal(t, 7, delta)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no change when equal", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT credits FROM users`).
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(4))
		mock.ExpectCommit()

		balance, delta, err := storage.SetBalance(context.Background(), testUserID, 4)
		require.NoError(t, err)
		assert.Equal(t, 4, balance)
		assert.Zero(t, delta)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_FinalizeTransformation(t *testing.T) {
	failed := "model crashed"

	t.Run("failed status refunds once", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE transformations\s+SET status = \$2`).
			WithArgs(int64(7), "failed", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(transformationRow(models.StatusFailed))
		mock.ExpectQuery(`UPDATE users SET credits = credits \+ \$1`).
			WithArgs(1, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(1))
		mock.ExpectExec(`INSERT INTO credit_transactions`).
			WithArgs(sqlmock.AnyArg(), testUserID, 1, "generation").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tr, applied, err := storage.FinalizeTransformation(context.Background(), 7,
			models.TransformationResult{Status: models.StatusFailed, Error: &failed}, models.GenerationCost)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, models.StatusFailed, tr.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already terminal is read back", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE transformations`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()
		mock.ExpectQuery(`SELECT .+ FROM transformations WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(transformationRow(models.StatusSucceeded))

		tr, applied, err := storage.FinalizeTransformation(context.Background(), 7,
			models.TransformationResult{Status: models.StatusFailed, Error: &failed}, models.GenerationCost)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, models.StatusSucceeded, tr.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non terminal status rejected", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		_, _, err := storage.FinalizeTransformation(context.Background(), 7,
			models.TransformationResult{Status: models.StatusProcessing}, 0)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_RecordPurchase(t *testing.T) {
	t.Run("credits order", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT user_id, credits, status FROM payment_orders WHERE order_id = \$1 FOR UPDATE`).
			WithArgs("order_1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "credits", "status"}).AddRow(testUserID, 15, "created"))
		mock.ExpectExec(`INSERT INTO payments`).
			WithArgs("pay_1", "order_1", testUserID, 15).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE payment_orders SET status = 'paid'`).
			WithArgs("order_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE users SET credits = credits \+ \$1`).
			WithArgs(15, testUserID).
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(16))
		mock.ExpectExec(`INSERT INTO credit_transactions`).
			WithArgs(sqlmock.AnyArg(), testUserID, 15, "purchase").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		balance, credits, err := storage.RecordPurchase(context.Background(), testUserID, "order_1", "pay_1")
		require.NoError(t, err)
		assert.Equal(t, 16, balance)
		assert.Equal(t, 15, credits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replayed order", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT user_id, credits, status FROM payment_orders`).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "credits", "status"}).AddRow(testUserID, 15, "paid"))
		mock.ExpectRollback()

		_, _, err := storage.RecordPurchase(context.Background(), testUserID, "order_1", "pay_1")
		assert.ErrorIs(t, err, apperr.ErrPaymentAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("order of another user", func(t *testing.T) {
		storage, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT user_id, credits, status FROM payment_orders`).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "credits", "status"}).AddRow("someone-else", 15, "created"))
		mock.ExpectRollback()

		_, _, err := storage.RecordPurchase(context.Background(), testUserID, "order_1", "pay_1")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_GetUser_NotFound(t *testing.T) {
	storage, mock := newMockStorage(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := storage.GetUser(context.Background(), testUserID)
	assert.Nil(t, u)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_ListProducts(t *testing.T) {
	storage, mock := newMockStorage(t)
	mock.ExpectQuery(`SELECT .+ FROM products WHERE \(\$1::text = '' OR type = \$1\) ORDER BY id`).
		WithArgs("prints").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "type", "name", "price", "features", "popular", "image_url"}).
			AddRow(int64(3), "totoro-forest-art-print-12-x-16", "prints", `Totoro Forest Art Print - 12" x 16"`, "39.99",
				[]byte(`["Museum-quality paper","Fade-resistant inks"]`), false, ""))

	products, err := storage.ListProducts(context.Background(), "prints")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "39.99", products[0].Price.StringFixed(2))
	assert.Equal(t, []string{"Museum-quality paper", "Fade-resistant inks"}, products[0].Features)
	assert.NoError(t, mock.ExpectationsWereMet())
}
