package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ssoserver/user-directory/internal/core/ports"
)

var _ ports.OperationRecorder = Recorder{}

func TestRecorder_IncrementsCounters(t *testing.T) {
	r := NewRecorder()

	ops := UserOperationsTotal.WithLabelValues("create", "conflict")
	violations := ValidationViolationsTotal.WithLabelValues("invalid-role")
	dispatch := EventsErrorsTotal.WithLabelValues("dispatcher")

	beforeOps := testutil.ToFloat64(ops)
	beforeViolations := testutil.ToFloat64(violations)
	beforeWarnings := testutil.ToFloat64(RoleIntegrityWarningsTotal)
	beforeDispatch := testutil.ToFloat64(dispatch)

	r.Operation("create", "conflict")
	r.Violation("invalid-role")
	r.Violation("invalid-role")
	r.RoleIntegrityWarning()
	r.PublishFailed()

	if got := testutil.ToFloat64(ops) - beforeOps; got != 1 {
		t.Fatalf("expected 1 operation, got %v", got)
	}
	if got := testutil.ToFloat64(violations) - beforeViolations; got != 2 {
		t.Fatalf("expected 2 violations, got %v", got)
	}
	if got := testutil.ToFloat64(RoleIntegrityWarningsTotal) - beforeWarnings; got != 1 {
		t.Fatalf("expected 1 role warning, got %v", got)
	}
	if got := testutil.ToFloat64(dispatch) - beforeDispatch; got != 1 {
		t.Fatalf("expected 1 dispatcher error, got %v", got)
	}
}
