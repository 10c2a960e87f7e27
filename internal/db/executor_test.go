package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
)

// recordingQuerier captures every script sent to the store.
type recordingQuerier struct {
	calls   []recordedCall
	failOn  int // 1-based call number to fail, 0 = never
	failErr error
	status  string
}

type recordedCall struct {
	sql  string
	vars map[string]any
}

func (r *recordingQuerier) Query(_ context.Context, sql string, vars map[string]any) (*[]surrealdb.QueryResult[any], error) {
	r.calls = append(r.calls, recordedCall{sql: sql, vars: vars})
	if r.failOn == len(r.calls) {
		return nil, r.failErr
	}
	status := r.status
	if status == "" {
		status = "OK"
	}
	return &[]surrealdb.QueryResult[any]{{Status: status, Result: "stub"}}, nil
}

func paramSets(n int) []map[string]any {
	sets := make([]map[string]any, n)
	for i := range sets {
		sets[i] = map[string]any{"index": i}
	}
	return sets
}

func TestExecuteWrapsInTransaction(t *testing.T) {
	q := &recordingQuerier{}
	exec := NewExecutor(q, nil, nil)

	err := exec.Execute(context.Background(), "UPDATE message SET public = true;", map[string]any{"id": "llm-1"})
	require.NoError(t, err)
	require.Len(t, q.calls, 1)

	sql := q.calls[0].sql
	assert.True(t, strings.HasPrefix(sql, "BEGIN TRANSACTION;"))
	assert.True(t, strings.HasSuffix(sql, "COMMIT TRANSACTION;"))
	assert.NotContains(t, sql, ";;", "trailing semicolon must not be doubled")
	assert.Equal(t, "llm-1", q.calls[0].vars["id"])
}

func TestExecuteSurfacesWriteFailed(t *testing.T) {
	cause := errors.New("websocket: connection reset")
	q := &recordingQuerier{failOn: 1, failErr: cause}
	mc := metrics.NewCollector()
	exec := NewExecutor(q, nil, mc)

	err := exec.Execute(context.Background(), "CREATE message", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int64(1), mc.Snapshot().Get(metrics.OpDBWrite).Failures)
}

func TestExecuteStatementErrorStatus(t *testing.T) {
	q := &recordingQuerier{status: "ERR"}
	exec := NewExecutor(q, nil, nil)

	err := exec.Execute(context.Background(), "CREATE message", nil)
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestExecuteChainBrokenIsNotWriteFailed(t *testing.T) {
	q := &recordingQuerier{failOn: 1, failErr: errors.New("An error occurred: chain_broken: user-x")}
	exec := NewExecutor(q, nil, nil)

	err := exec.Execute(context.Background(), OpAppendUserMessage, nil)
	assert.ErrorIs(t, err, ErrChainBroken)
	assert.NotErrorIs(t, err, ErrWriteFailed)
}

func TestExecuteBatchTransactionCount(t *testing.T) {
	q := &recordingQuerier{}
	exec := NewExecutor(q, nil, nil)

	err := exec.ExecuteBatch(context.Background(), OpUpsertDocuments, paramSets(25000), 10000)
	require.NoError(t, err)
	require.Len(t, q.calls, 3)

	sizes := make([]int, len(q.calls))
	for i, c := range q.calls {
		sizes[i] = len(c.vars["params"].([]map[string]any))
	}
	assert.Equal(t, []int{10000, 10000, 5000}, sizes)
}

func TestExecuteBatchDefaultSize(t *testing.T) {
	q := &recordingQuerier{}
	exec := NewExecutor(q, nil, nil)

	require.NoError(t, exec.ExecuteBatch(context.Background(), OpUpsertDocuments, paramSets(DefaultBatchSize+1), 0))
	assert.Len(t, q.calls, 2)
}

func TestExecuteBatchStopsAtFailedChunk(t *testing.T) {
	q := &recordingQuerier{failOn: 2, failErr: errors.New("Database index `document_index` already contains 12")}
	exec := NewExecutor(q, nil, nil)

	err := exec.ExecuteBatch(context.Background(), OpUpsertDocuments, paramSets(30), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "batch chunk 2/3")
	assert.Len(t, q.calls, 2, "third chunk must not run and nothing is retried")
}

func TestExecuteBatchEmpty(t *testing.T) {
	q := &recordingQuerier{}
	exec := NewExecutor(q, nil, nil)

	require.NoError(t, exec.ExecuteBatch(context.Background(), OpUpsertDocuments, nil, 10))
	assert.Empty(t, q.calls)
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder", 25, 10, []int{10, 10, 5}},
		{"smaller than batch", 3, 10, []int{3}},
		{"empty", 0, 10, []int{}},
		{"size one", 3, 1, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.n)
			for i := range items {
				items[i] = i
			}
			chunks := Chunk(items, tt.size)
			got := make([]int, len(chunks))
			for i, c := range chunks {
				got[i] = len(c)
			}
			assert.Equal(t, tt.sizes, got)
			if tt.n > 0 {
				assert.Equal(t, 0, chunks[0][0])
				last := chunks[len(chunks)-1]
				assert.Equal(t, tt.n-1, last[len(last)-1], "order must be preserved")
			}
		})
	}
}
