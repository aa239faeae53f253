package models

import "time"

// TransformationStatus — состояние трансформации.
type TransformationStatus string

const (
	StatusPending    TransformationStatus = "pending"
	StatusProcessing TransformationStatus = "processing"
	StatusSucceeded  TransformationStatus = "succeeded"
	StatusFailed     TransformationStatus = "failed"
)

// Terminal сообщает, является ли состояние конечным.
func (s TransformationStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Transformation — запись о запросе на трансформацию изображения.
// После перехода в конечное состояние запись не меняется.
type Transformation struct {
	ID               int64                `json:"id"`
	UserID           string               `json:"user_id"`
	OriginalImage    string               `json:"original_image"` // Ключ оригинала в объектном хранилище
	MimeType         string               `json:"mime_type"`
	RemoteJobID      *string              `json:"remote_job_id,omitempty"`
	TransformedImage *string              `json:"transformed_image,omitempty"`
	Status           TransformationStatus `json:"status"`
	Error            *string              `json:"error,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	FinalizedAt      *time.Time           `json:"finalized_at,omitempty"`
}

// TransformationResult — итог опроса удаленной задачи.
type TransformationResult struct {
	Status           TransformationStatus
	TransformedImage *string
	Error            *string
}
