package ports

// OperationRecorder receives lifecycle outcomes for monitoring.
type OperationRecorder interface {
	// Operation records one finished operation, e.g. ("create", "conflict").
	Operation(operation, outcome string)
	// Violation records one validation rule failure by code.
	Violation(code string)
	// RoleIntegrityWarning records a read that found more than one role.
	RoleIntegrityWarning()
	// PublishFailed records an event the publisher refused.
	PublishFailed()
}
