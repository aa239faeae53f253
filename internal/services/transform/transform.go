// Package transform управляет жизненным циклом трансформации изображения:
// списание кредита, загрузка оригинала, постановка задачи в Replicate,
// опрос статуса и однократная финализация с возвратом кредита при сбое.
package transform

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/metrics"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
	"github.com/magabrotheeeer/mirage-ghibli/internal/replicate"
)

// MaxImageSize — максимальный размер загружаемого изображения.
const MaxImageSize = 5 << 20

// PollInterval — рекомендуемый интервал опроса статуса клиентом.
const PollInterval = 2 * time.Second

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Repository — хранилище трансформаций.
type Repository interface {
	CreateTransformation(ctx context.Context, userID, originalImage, mimeType string) (*models.Transformation, error)
	MarkTransformationProcessing(ctx context.Context, id int64, remoteJobID string) (*models.Transformation, error)
	GetTransformationByJobID(ctx context.Context, remoteJobID string) (*models.Transformation, error)
	ListTransformations(ctx context.Context, userID string) ([]models.Transformation, error)
	ListStaleTransformations(ctx context.Context, olderThan time.Time, limit int) ([]models.Transformation, error)
	FinalizeTransformation(ctx context.Context, id int64, result models.TransformationResult, refund int) (*models.Transformation, bool, error)
}

// Ledger — списание и возврат кредитов.
type Ledger interface {
	Debit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error)
	Credit(ctx context.Context, userID string, amount int, reason models.CreditReason) (int, error)
}

// Uploader сохраняет оригинал и возвращает его ключ.
type Uploader interface {
	PutOriginal(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Predictor — удаленный сервис генерации.
type Predictor interface {
	Create(ctx context.Context, imageDataURI string) (*replicate.Prediction, error)
	Get(ctx context.Context, id string) (*replicate.Prediction, error)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// SubmitResult — ответ на постановку задачи.
type SubmitResult struct {
	Transformation   *models.Transformation
	RemoteJobID      string
	OriginalImage    string // data URI оригинала
	RemainingCredits int
}

// Service — контроллер жизненного цикла трансформаций.
type Service struct {
	repo      Repository
	ledger    Ledger
	uploader  Uploader
	predictor Predictor
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// New создает сервис трансформаций. m может быть nil.
func New(repo Repository, ledger Ledger, uploader Uploader, predictor Predictor,
	publisher Publisher, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		uploader:  uploader,
		predictor: predictor,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// NormalizeMimeType убирает параметры и приводит image/jpg к image/jpeg.
func NormalizeMimeType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(declared))
	}
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	return mt
}

// ValidateImage проверяет тип и размер изображения до списания кредита.
func ValidateImage(image []byte, declared string) (string, error) {
	mt := NormalizeMimeType(declared)
	if !allowedTypes[mt] {
		return "", fmt.Errorf("%w: %q is not one of image/jpeg, image/png, image/webp", apperr.ErrUnsupportedMedia, declared)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("%w: image is empty", apperr.ErrValidation)
	}
	if len(image) > MaxImageSize {
		return "", fmt.Errorf("%w: image exceeds %d bytes", apperr.ErrPayloadTooLarge, MaxImageSize)
	}
	if sniffed := NormalizeMimeType(http.DetectContentType(image)); sniffed != mt {
		return "", fmt.Errorf("%w: content looks like %s, declared %s", apperr.ErrUnsupportedMedia, sniffed, mt)
	}
	return mt, nil
}

// DataURI кодирует изображение в data URI.
func DataURI(image []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// Submit списывает кредит и ставит задачу трансформации.
// Любая ошибка после списания возвращает кредит с причиной generation.
func (s *Service) Submit(ctx context.Context, userID string, image []byte, declaredType string) (*SubmitResult, error) {
	const op = "transform.Submit"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))

	mimeType, err := ValidateImage(image, declaredType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	remaining, err := s.ledger.Debit(ctx, userID, models.GenerationCost, models.ReasonGeneration)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec *models.Transformation
	fail := func(cause error) (*SubmitResult, error) {
		s.refund(ctx, log, userID, rec, cause)
		return nil, fmt.Errorf("%s: %w", op, cause)
	}

	key, err := s.uploader.PutOriginal(ctx, image, mimeType)
	if err != nil {
		return fail(err)
	}
	rec, err = s.repo.CreateTransformation(ctx, userID, key, mimeType)
	if err != nil {
		return fail(err)
	}

	dataURI := DataURI(image, mimeType)
	prediction, err := s.predictor.Create(ctx, dataURI)
	if err != nil {
		return fail(err)
	}

	processing, err := s.repo.MarkTransformationProcessing(ctx, rec.ID, prediction.ID)
	if err != nil {
		return fail(err)
	}

	log.Info("transformation submitted", slog.Int64("transformation_id", processing.ID),
		slog.String("remote_job_id", prediction.ID))
	return &SubmitResult{
		Transformation:   processing,
		RemoteJobID:      prediction.ID,
		OriginalImage:    dataURI,
		RemainingCredits: remaining,
	}, nil
}

// refund возвращает списанный кредит. Если запись уже создана, она
// финализируется как failed, и возврат происходит в той же транзакции.
func (s *Service) refund(ctx context.Context, log *slog.Logger, userID string, rec *models.Transformation, cause error) {
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()

	if rec != nil {
		_, applied, err := s.repo.FinalizeTransformation(ctx, rec.ID,
			models.TransformationResult{Status: models.StatusFailed, Error: &msg}, models.GenerationCost)
		if err == nil {
			if applied {
				s.metrics.LedgerCredit(string(models.ReasonGeneration))
				s.metrics.TransformationFinalized(string(models.StatusFailed))
			}
			log.Warn("submission failed, credit refunded", slog.Int64("transformation_id", rec.ID), sl.Err(cause))
			return
		}
		log.Error("failed to finalize transformation after submit failure", sl.Err(err))
	}

	if _, err := s.ledger.Credit(ctx, userID, models.GenerationCost, models.ReasonGeneration); err != nil {
		log.Error("failed to refund generation credit", sl.Err(err))
		return
	}
	log.Warn("submission failed, credit refunded", sl.Err(cause))
}

// PollStatus возвращает состояние трансформации по идентификатору задачи.
// Незавершенная запись сверяется с Replicate и финализируется, если задача завершилась.
func (s *Service) PollStatus(ctx context.Context, userID, remoteJobID string) (*models.Transformation, error) {
	const op = "transform.PollStatus"

	rec, err := s.repo.GetTransformationByJobID(ctx, remoteJobID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	rec, err = s.sync(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// sync опрашивает удаленную задачу и финализирует запись при конечном статусе.
func (s *Service) sync(ctx context.Context, rec *models.Transformation) (*models.Transformation, error) {
	if rec.RemoteJobID == nil {
		return rec, nil
	}
	prediction, err := s.predictor.Get(ctx, *rec.RemoteJobID)
	if err != nil {
		return nil, err
	}

	status := replicate.MapStatus(prediction.Status)
	if !status.Terminal() {
		return rec, nil
	}
	return s.finalize(ctx, rec, resultOf(prediction))
}

func resultOf(p *replicate.Prediction) models.TransformationResult {
	status := replicate.MapStatus(p.Status)
	if status == models.StatusSucceeded && p.Output != "" {
		output := p.Output
		return models.TransformationResult{Status: models.StatusSucceeded, TransformedImage: &output}
	}

	msg := p.Error
	switch {
	case msg != "":
	case status == models.StatusSucceeded:
		msg = "prediction returned no output"
	case p.Status == replicate.StatusCanceled:
		msg = "prediction canceled"
	default:
		msg = "prediction failed"
	}
	return models.TransformationResult{Status: models.StatusFailed, Error: &msg}
}

// finalize выполняет условную финализацию. Побочные эффекты применяет
// только вызов, который изменил запись.
func (s *Service) finalize(ctx context.Context, rec *models.Transformation, result models.TransformationResult) (*models.Transformation, error) {
	final, applied, err := s.repo.FinalizeTransformation(ctx, rec.ID, result, models.GenerationCost)
	if err != nil {
		return nil, err
	}
	if !applied {
		return final, nil
	}

	s.metrics.TransformationFinalized(string(final.Status))
	if final.Status == models.StatusFailed {
		s.metrics.LedgerCredit(string(models.ReasonGeneration))
	}
	s.log.Info("transformation finalized", slog.Int64("transformation_id", final.ID),
		sl.UserID(final.UserID), slog.String("status", string(final.Status)))

	event := models.TransformationFinalizedEvent{
		TransformationID: final.ID,
		UserID:           final.UserID,
		Status:           final.Status,
		TransformedImage: final.TransformedImage,
		Error:            final.Error,
	}
	if final.RemoteJobID != nil {
		event.RemoteJobID = *final.RemoteJobID
	}
	if err = s.publisher.Publish(ctx, rabbitmq.KeyTransformationFinalized, event); err != nil {
		s.log.Warn("failed to publish transformation event", slog.Int64("transformation_id", final.ID), sl.Err(err))
	}
	return final, nil
}

// List возвращает трансформации пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userID string) ([]models.Transformation, error) {
	const op = "transform.List"

	list, err := s.repo.ListTransformations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Reconcile доводит до конечного состояния записи, не обновлявшиеся дольше staleAfter.
// Запись без идентификатора задачи означает прерванную постановку: она
// финализируется как failed с возвратом кредита. Возвращает число финализированных записей.
func (s *Service) Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	const op = "transform.Reconcile"

	stale, err := s.repo.ListStaleTransformations(ctx, s.now().Add(-staleAfter), limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	finalized := 0
	for i := range stale {
		rec := &stale[i]
		log := s.log.With(slog.String("op", op), slog.Int64("transformation_id", rec.ID))

		var final *models.Transformation
		if rec.RemoteJobID == nil {
			msg := "submission did not complete"
			final, err = s.finalize(ctx, rec, models.TransformationResult{Status: models.StatusFailed, Error: &msg})
		} else {
			final, err = s.sync(ctx, rec)
		}
		if err != nil {
			var upstream *apperr.UpstreamError
			if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
				msg := "remote job not found"
				final, err = s.finalize(ctx, rec, models.TransformationResult{Status: models.StatusFailed, Error: &msg})
			}
		}
		if err != nil {
			log.Error("failed to reconcile transformation", sl.Err(err))
			continue
		}
		if final.Status.Terminal() {
			finalized++
		}
	}
	return finalized, nil
}
