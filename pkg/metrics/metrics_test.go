package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRecordPassAppearsInText exercises the full round trip: recording a
// pass outcome through the opencensus stats API, letting the registered
// Prometheus exporter observe it, and rendering the registry as text.
func TestRecordPassAppearsInText(t *testing.T) {
	exp, err := NewExporter("coreselect_test")
	require.NoError(t, err)
	defer exp.Close()

	RecordPass("default", OutcomeIdle, 3*time.Millisecond)

	// the opencensus view worker delivers data to exporters asynchronously.
	require.Eventually(t, func() bool {
		text, err := exp.Text()
		if err != nil {
			return false
		}
		return strings.Contains(text, "coreselect_test_coreselect_pass_total")
	}, time.Second, 10*time.Millisecond)
}

func TestTextIsValidWithNoData(t *testing.T) {
	exp, err := NewExporter("coreselect_empty")
	require.NoError(t, err)
	defer exp.Close()

	text, err := exp.Text()
	require.NoError(t, err)
	require.NotNil(t, text)
}
