package influx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFromMetric(t *testing.T) {
	point := PointFromMetric(
		"vault_timing",
		map[string]string{"server": "main"},
		map[string]any{
			"pending":  12,
			"write_ms": 3.5,
			"backend":  "postgres",
		},
	)
	require.NotNil(t, point)
	assert.Equal(t, "vault_timing", point.Name())
	assert.True(t, point.Time().IsZero())

	tags := point.TagList()
	require.Len(t, tags, 1)
	assert.Equal(t, "server", tags[0].Key)
	assert.Equal(t, "main", tags[0].Value)

	fields := make(map[string]any)
	for _, f := range point.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(12), fields["pending"])
	assert.Equal(t, 3.5, fields["write_ms"])
	assert.Equal(t, "postgres", fields["backend"])
}

func TestPointFromMetricEmpty(t *testing.T) {
	point := PointFromMetric("heartbeat", nil, nil)
	require.NotNil(t, point)
	assert.Equal(t, "heartbeat", point.Name())
	assert.Empty(t, point.TagList())
	assert.Empty(t, point.FieldList())
}
