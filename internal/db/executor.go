package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/surrealdb/surrealdb.go"
)

// DefaultBatchSize bounds the number of parameter sets sent in one transaction.
const DefaultBatchSize = 10000

// Querier runs a SurrealQL script with named parameters.
// *Client implements it; tests substitute a recorder.
type Querier interface {
	Query(ctx context.Context, sql string, vars map[string]any) (*[]surrealdb.QueryResult[any], error)
}

// Executor runs parameterized write operations, each inside its own
// transaction. A failed transaction is rolled back by the store and reported
// as ErrWriteFailed (or a chain sentinel); nothing is retried here.
type Executor struct {
	q       Querier
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewExecutor creates an executor on top of q. logger and mc may be nil.
func NewExecutor(q Querier, logger *slog.Logger, mc *metrics.Collector) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{q: q, logger: logger, metrics: mc}
}

// Execute runs op with params in a single transaction.
func (e *Executor) Execute(ctx context.Context, op string, params map[string]any) (err error) {
	defer e.metrics.Observe(metrics.OpDBWrite, time.Now(), &err)

	if err := e.run(ctx, op, params); err != nil {
		e.logger.Debug("write transaction failed", "error", err)
		return err
	}
	return nil
}

// ExecuteBatch partitions paramSets into chunks of at most batchSize and runs
// op once per chunk, sequentially, each chunk in its own transaction. The chunk
// is bound as $params. A failing chunk aborts the batch; chunks committed
// before it stay committed. batchSize <= 0 selects DefaultBatchSize.
func (e *Executor) ExecuteBatch(ctx context.Context, op string, paramSets []map[string]any, batchSize int) (err error) {
	defer e.metrics.Observe(metrics.OpDBBatch, time.Now(), &err)

	chunks := Chunk(paramSets, batchSize)
	for i, chunk := range chunks {
		if err := e.run(ctx, op, map[string]any{"params": chunk}); err != nil {
			e.logger.Warn("batch chunk failed",
				"chunk", i+1,
				"chunks", len(chunks),
				"committed_sets", i*effectiveBatchSize(batchSize),
				"error", err,
			)
			return fmt.Errorf("batch chunk %d/%d: %w", i+1, len(chunks), err)
		}
		e.logger.Debug("batch chunk committed", "chunk", i+1, "chunks", len(chunks), "size", len(chunk))
	}
	return nil
}

func (e *Executor) run(ctx context.Context, op string, params map[string]any) error {
	results, err := e.q.Query(ctx, transaction(op), params)
	if err != nil {
		return classifyWriteError(err)
	}
	if results != nil {
		for _, r := range *results {
			if r.Status == "ERR" {
				return classifyWriteError(fmt.Errorf("%v", r.Result))
			}
		}
	}
	return nil
}

// transaction wraps op so all its statements commit or roll back together.
func transaction(op string) string {
	body := strings.TrimRight(strings.TrimSpace(op), ";")
	return "BEGIN TRANSACTION;\n" + body + ";\nCOMMIT TRANSACTION;"
}

func effectiveBatchSize(batchSize int) int {
	if batchSize <= 0 {
		return DefaultBatchSize
	}
	return batchSize
}

// Chunk splits items into consecutive slices of at most batchSize elements.
// batchSize <= 0 selects DefaultBatchSize.
func Chunk[T any](items []T, batchSize int) [][]T {
	size := effectiveBatchSize(batchSize)
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
