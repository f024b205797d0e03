package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/models"
)

func TestParseDetectionEvent(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"event_type": EventTypeDetected},
		Value: []byte(`{
			"tenant_id": "tenant-1",
			"signal_type": "delivery_velocity_drop",
			"entity_id": "entity-1",
			"entity_kind": "project",
			"severity": "warning",
			"metric_trend": "toward_threshold",
			"cycle_id": "c-42",
			"detected_at": "2026-08-26T09:00:00Z"
		}`),
	}

	require.NoError(t, msg.Parse())
	require.NotNil(t, msg.Detection)
	assert.Nil(t, msg.Clearing)

	assert.Equal(t, "tenant-1", msg.Detection.TenantID)
	assert.Equal(t, models.SeverityWarning, msg.Detection.Severity)
	assert.Equal(t, models.MetricTrendTowardThreshold, msg.Detection.MetricTrend)
	assert.Equal(t, "c-42", msg.Detection.CycleID)
}

func TestParseClearingEvent(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"event_type": EventTypeCleared},
		Value: []byte(`{
			"tenant_id": "tenant-1",
			"signal_type": "delivery_velocity_drop",
			"entity_id": "entity-1",
			"cycle_id": "c-43",
			"action_recorded": true,
			"condition_holds": false,
			"cleared_at": "2026-08-27T09:00:00Z"
		}`),
	}

	require.NoError(t, msg.Parse())
	require.NotNil(t, msg.Clearing)
	assert.Nil(t, msg.Detection)

	assert.True(t, msg.Clearing.ActionRecorded)
	assert.False(t, msg.Clearing.ConditionHolds)
}

func TestParseRejectsMalformedMessages(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		value   string
	}{
		{
			name:    "unknown event type",
			headers: map[string]string{"event_type": "signal.exploded"},
			value:   `{}`,
		},
		{
			name:    "missing event type header",
			headers: map[string]string{},
			value:   `{}`,
		},
		{
			name:    "invalid json",
			headers: map[string]string{"event_type": EventTypeDetected},
			value:   `{not json`,
		},
		{
			name:    "missing required fields",
			headers: map[string]string{"event_type": EventTypeDetected},
			value:   `{"tenant_id": "tenant-1"}`,
		},
		{
			name:    "unknown severity label",
			headers: map[string]string{"event_type": EventTypeDetected},
			value:   `{"signal_type": "x", "entity_id": "y", "severity": "catastrophic"}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			msg := &IncomingMessage{Headers: test.headers, Value: []byte(test.value)}
			assert.Error(t, msg.Parse())
		})
	}
}
