package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()

	RetrievalRefusalsTotal.WithLabelValues("no_overlap").Inc()
	if got := testutil.ToFloat64(RetrievalRefusalsTotal.WithLabelValues("no_overlap")); got < 1 {
		t.Errorf("expected refusal counter >= 1, got %f", got)
	}

	if err := prometheus.Register(RetrievalLookupsTotal); err == nil {
		t.Error("expected AlreadyRegistered after RegisterPipelineMetrics")
	}
}
