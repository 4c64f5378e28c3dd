package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/arrowexec/execution"
)

func TestLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		want  []interface{}
	}{
		{
			name:  "cuts last batch",
			limit: 4,
			want:  []interface{}{[]int64{1, 2, 3}, []int64{4}},
		},
		{
			name:  "exact batch boundary",
			limit: 3,
			want:  []interface{}{[]int64{1, 2, 3}},
		},
		{
			name:  "limit larger than input",
			limit: 100,
			want:  []interface{}{[]int64{1, 2, 3}, []int64{4, 5, 6}, []int64{7, 8}},
		},
		{
			name:  "zero",
			limit: 0,
			want:  []interface{}{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewInMemoryRecords(idSchema, []execution.Record{
				int64Record(1, 2, 3),
				int64Record(4, 5, 6),
				int64Record(7, 8),
			})
			node := NewLimit(source, tt.limit)

			var c collector
			require.NoError(t, node.Run(testContext(), c.produce, c.metaSend))
			assert.Equal(t, tt.want, describeEvents(t, c.events))
		})
	}
}

func TestNestedLimits(t *testing.T) {
	source := NewInMemoryRecords(idSchema, []execution.Record{
		int64Record(1, 2, 3),
		int64Record(4, 5, 6),
	})
	node := NewLimit(NewFilter(NewLimit(source, 5), call(t, "greater", column(0), constInt(1))), 2)

	var c collector
	require.NoError(t, node.Run(testContext(), c.produce, c.metaSend))
	assert.Equal(t, []interface{}{[]int64{2, 3}}, describeEvents(t, c.events))
}
