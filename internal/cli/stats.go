package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/fsechat/internal/metrics"
)

var statLabels = map[string]string{
	metrics.OpTurn:        "Chat turns",
	metrics.OpEmbedding:   "Embeddings",
	metrics.OpRetrieval:   "Retrieval",
	metrics.OpLLMGenerate: "LLM Generate",
	metrics.OpDBWrite:     "DB Write",
	metrics.OpDBBatch:     "DB Batch",
	metrics.OpDBQuery:     "DB Query",
}

// printStats displays the runtime statistics collected by this process.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\nStatistics (this run)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if len(snap.Operations) == 0 {
		fmt.Fprintf(w, "No operations recorded.\n")
		return
	}
	for _, op := range snap.Operations {
		label, ok := statLabels[op.Name]
		if !ok {
			label = op.Name
		}
		fmt.Fprintf(w, "\n%s:\n", label)
		printOpStats(w, op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
