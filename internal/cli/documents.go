package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/service"
)

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Ingest text files into the knowledge base",
	Long: `Read text files, split them into chunks and store them as completed
documents, ready for summarization, search and refresh jobs.

Examples:
  agentkb add notes.md
  agentkb add docs/*.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Keyword search over document chunks",
	Long: `Run a one-shot BM25 keyword search over stored chunks. Use
'submit deep_search' for decomposition and LLM synthesis.

Examples:
  agentkb search "token refresh"
  agentkb search "kubernetes" --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runSearchCmd,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "max results")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docSvc := service.NewDocumentService(dbClient)

	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		doc, err := docSvc.Ingest(ctx, filepath.Base(path), string(content), nil)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Printf("Ingested %s as %s\n", path, models.MustRecordIDString(doc.ID))
	}
	return nil
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docSvc := service.NewDocumentService(dbClient)

	results, err := docSvc.Search(ctx, args[0], searchLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results found")
		return nil
	}

	for i, hit := range results {
		fmt.Printf("%d. %s (score %.3f)\n", i+1, hit.Filename, hit.Score)
		content := hit.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("   %s\n\n", content)
	}
	return nil
}
