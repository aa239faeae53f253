package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const transformationColumns = `id, user_id, original_image, mime_type, remote_job_id, transformed_image,
	status, error, created_at, updated_at, finalized_at`

func scanTransformation(row rowScanner) (*models.Transformation, error) {
	var t models.Transformation
	var jobID, output, errMsg sql.NullString
	var finalizedAt sql.NullTime
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.OriginalImage, &t.MimeType, &jobID, &output,
		&status, &errMsg, &t.CreatedAt, &t.UpdatedAt, &finalizedAt); err != nil {
		return nil, err
	}
	t.Status = models.TransformationStatus(status)
	if jobID.Valid {
		t.RemoteJobID = &jobID.String
	}
	if output.Valid {
		t.TransformedImage = &output.String
	}
	if errMsg.Valid {
		t.Error = &errMsg.String
	}
	if finalizedAt.Valid {
		t.FinalizedAt = &finalizedAt.Time
	}
	return &t, nil
}

// CreateTransformation создает запись в состоянии pending.
func (s *Storage) CreateTransformation(ctx context.Context, userID, originalImage, mimeType string) (*models.Transformation, error) {
	const op = "storage.CreateTransformation"

	query := `INSERT INTO transformations (user_id, original_image, mime_type, status)
			  VALUES ($1, $2, $3, 'pending')
			  RETURNING ` + transformationColumns
	t, err := scanTransformation(s.DB.QueryRowContext(ctx, query, userID, originalImage, mimeType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// MarkTransformationProcessing сохраняет идентификатор удаленной задачи и переводит запись в processing.
func (s *Storage) MarkTransformationProcessing(ctx context.Context, id int64, remoteJobID string) (*models.Transformation, error) {
	const op = "storage.MarkTransformationProcessing"

	query := `UPDATE transformations
			     SET remote_job_id = $2, status = 'processing', updated_at = NOW()
			   WHERE id = $1 AND status = 'pending'
			  RETURNING ` + transformationColumns
	t, err := scanTransformation(s.DB.QueryRowContext(ctx, query, id, remoteJobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// GetTransformation возвращает запись по локальному идентификатору.
func (s *Storage) GetTransformation(ctx context.Context, id int64) (*models.Transformation, error) {
	const op = "storage.GetTransformation"

	t, err := scanTransformation(s.DB.QueryRowContext(ctx,
		`SELECT `+transformationColumns+` FROM transformations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// GetTransformationByJobID возвращает запись по идентификатору удаленной задачи.
func (s *Storage) GetTransformationByJobID(ctx context.Context, remoteJobID string) (*models.Transformation, error) {
	const op = "storage.GetTransformationByJobID"

	t, err := scanTransformation(s.DB.QueryRowContext(ctx,
		`SELECT `+transformationColumns+` FROM transformations WHERE remote_job_id = $1`, remoteJobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// ListTransformations возвращает трансформации пользователя, новые первыми.
func (s *Storage) ListTransformations(ctx context.Context, userID string) ([]models.Transformation, error) {
	const op = "storage.ListTransformations"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+transformationColumns+` FROM transformations WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collectTransformations(op, rows)
}

// ListStaleTransformations возвращает незавершенные записи, не обновлявшиеся с olderThan.
func (s *Storage) ListStaleTransformations(ctx context.Context, olderThan time.Time, limit int) ([]models.Transformation, error) {
	const op = "storage.ListStaleTransformations"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+transformationColumns+`
		   FROM transformations
		  WHERE status IN ('pending', 'processing') AND updated_at < $1
		  ORDER BY updated_at
		  LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collectTransformations(op, rows)
}

func collectTransformations(op string, rows *sql.Rows) ([]models.Transformation, error) {
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Transformation, 0)
	for rows.Next() {
		t, err := scanTransformation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FinalizeTransformation переводит незавершенную запись в конечное состояние.
//
// Обновление условное: только первый вызов меняет запись и возвращает applied=true.
// Если состояние failed и refund > 0, кредиты возвращаются в той же транзакции
// с причиной generation. Повторные вызовы возвращают сохраненную запись.
func (s *Storage) FinalizeTransformation(ctx context.Context, id int64, result models.TransformationResult, refund int) (*models.Transformation, bool, error) {
	const op = "storage.FinalizeTransformation"

	if !result.Status.Terminal() {
		return nil, false, fmt.Errorf("%s: %w: status %q is not terminal", op, apperr.ErrValidation, result.Status)
	}

	var t *models.Transformation
	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE transformations
				     SET status = $2, transformed_image = $3, error = $4,
				         updated_at = NOW(), finalized_at = NOW()
				   WHERE id = $1 AND status IN ('pending', 'processing')
				  RETURNING ` + transformationColumns
		updated, err := scanTransformation(tx.QueryRowContext(ctx, query,
			id, string(result.Status), result.TransformedImage, result.Error))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if updated.Status == models.StatusFailed && refund > 0 {
			if _, err = creditTx(ctx, tx, updated.UserID, refund, models.ReasonGeneration); err != nil {
				return err
			}
		}
		t = updated
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if applied {
		return t, true, nil
	}

	t, err = s.GetTransformation(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return t, false, nil
}
