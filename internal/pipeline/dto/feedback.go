package dto

// RecordFeedbackRequest is the payload accepted by the feedback ingestion
// surface (HTTP handler and redis stream consumer).
type RecordFeedbackRequest struct {
	SubscriberID     uint   `json:"subscriber_id"`
	EventFingerprint string `json:"event_fingerprint"`
	Action           string `json:"action"`
}

// ErrorResponse is the standard error body returned by the HTTP handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
