package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldOT is the standardized structured logging key for work-order codes.
	FieldOT = "ot"
	// FieldPress is the standardized structured logging key for press names.
	FieldPress = "press"
	// FieldRequestID is the standardized structured logging key for API request identifiers.
	FieldRequestID = "request_id"
	// FieldUserID is the standardized structured logging key for acting users.
	FieldUserID = "user_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step on warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
