package metrics

// Recorder reports user lifecycle outcomes to the Prometheus counters above.
type Recorder struct{}

func NewRecorder() Recorder { return Recorder{} }

func (Recorder) Operation(operation, outcome string) {
	UserOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (Recorder) Violation(code string) {
	ValidationViolationsTotal.WithLabelValues(code).Inc()
}

func (Recorder) RoleIntegrityWarning() {
	RoleIntegrityWarningsTotal.Inc()
}

func (Recorder) PublishFailed() {
	EventsErrorsTotal.WithLabelValues("dispatcher").Inc()
}
