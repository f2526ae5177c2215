// This file is the error code taxonomy for the API. Every ErrorResponse
// carries exactly one of these codes next to the HTTP status, and
// clients branch on the code, not the message.
//
// The first group mirrors plain HTTP semantics. The second group names
// digest operations whose failure a status alone cannot distinguish: a
// 500 from POST /digest/trigger means the pipeline run itself failed
// (trigger_failed), which a client may retry with the same idempotency
// key, while a 500 from PATCH /settings (update_failed) means the
// settings write was lost and should be re-sent.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeTriggerFailed    = "trigger_failed"
	ErrCodeUpdateFailed     = "update_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
