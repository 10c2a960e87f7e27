package cli

import (
	"fmt"

	"github.com/raphaelgruber/fsechat/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	docsBatchSize      int
	docsEmbedBatchSize int
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage context documents",
}

var docsImportCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import service manuals and document manifests",
	Long: `Import context documents used to answer questions.

Markdown files are split into passages by section; YAML manifests list
documents with explicit indices:

  source: fse-kb
  documents:
    - index: 7
      title: ECM codes
      content: Code 111 means ECM failure.

Directories are searched recursively. Documents are embedded and written in
batched transactions; re-importing an index replaces the document.

Examples:
  fsechat docs import manuals/
  fsechat docs import kb.yaml --batch-size 500`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocsImport,
}

func init() {
	docsImportCmd.Flags().IntVar(&docsBatchSize, "batch-size", 0, "documents per transaction (default FSECHAT_BATCH_SIZE)")
	docsImportCmd.Flags().IntVar(&docsEmbedBatchSize, "embed-batch-size", ingest.DefaultEmbedBatchSize, "passages per embedding call")
	docsCmd.AddCommand(docsImportCmd)
}

func runDocsImport(cmd *cobra.Command, args []string) error {
	opts := []ingest.Option{ingest.WithEmbedBatchSize(docsEmbedBatchSize)}
	if docsBatchSize > 0 {
		opts = append(opts, ingest.WithBatchSize(docsBatchSize))
	}

	report, err := application.Importer(opts...).Import(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, defaultTheme.assistantStyle().Render("✓ Imported"))
	fmt.Fprintf(out, "  Files:      %d\n", report.Files)
	fmt.Fprintf(out, "  Documents:  %d (indices %d-%d)\n", report.Documents, report.FirstIndex, report.LastIndex)
	fmt.Fprintf(out, "  Embedded:   %d\n", report.Embedded)
	fmt.Fprintf(out, "  Took:       %.1fs\n", report.Duration.Seconds())
	return nil
}
