package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterCollectorsExposesMapperMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	Operations.WithLabelValues("employees", "find", OutcomeOK).Inc()
	OperationDuration.WithLabelValues("employees", "find").Observe(0.01)
	PopulationLookups.WithLabelValues("roles").Inc()

	count, err := testutil.GatherAndCount(reg,
		"docmapper_odm_operations_total",
		"docmapper_odm_operation_duration_seconds",
		"docmapper_odm_population_lookups_total",
	)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count < 3 {
		t.Fatalf("expected at least 3 series, got %d", count)
	}
}

func TestRegisterCollectorsPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	RegisterCollectors(reg)
}
