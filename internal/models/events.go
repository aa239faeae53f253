package models

// TransformationFinalizedEvent публикуется при переходе трансформации в конечное состояние.
type TransformationFinalizedEvent struct {
	TransformationID int64                `json:"transformation_id"`
	UserID           string               `json:"user_id"`
	RemoteJobID      string               `json:"remote_job_id"`
	Status           TransformationStatus `json:"status"`
	TransformedImage *string              `json:"transformed_image,omitempty"`
	Error            *string              `json:"error,omitempty"`
}

// CreditsPurchasedEvent публикуется после зачисления оплаченного пакета.
type CreditsPurchasedEvent struct {
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Credits   int    `json:"credits"`
	Balance   int    `json:"balance"`
}
