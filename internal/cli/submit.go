package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowledgetools/agentkb/internal/models"
)

var (
	submitConfig     string
	submitDocuments  []string
	submitQuery      string
	submitMaxCost    float64
	submitMaxRuntime float64
)

var submitCmd = &cobra.Command{
	Use:   "submit <type>",
	Short: "Submit a job and run it to completion",
	Long: `Submit a job of the given type and execute it on this process's worker
pool. The command returns when the job reaches a terminal state or is
paused; a paused or interrupted job can be resumed later with
'agentkb control <job-id> resume'.

Job types: ingestion, search, summarization, deep_search, synthesis, refresh.

Examples:
  agentkb submit summarization --documents d1,d2
  agentkb submit deep_search --query "What are the key features of Python?"
  agentkb submit refresh --config '{"max_documents": 10}'
  agentkb submit summarization --max-cost 2.5 --max-runtime 30`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitConfig, "config", "c", "", "job config as JSON object")
	submitCmd.Flags().StringSliceVarP(&submitDocuments, "documents", "d", nil, "document IDs to process")
	submitCmd.Flags().StringVarP(&submitQuery, "query", "q", "", "query for search jobs")
	submitCmd.Flags().Float64Var(&submitMaxCost, "max-cost", 0, "cost ceiling in USD (bounded by system limit)")
	submitCmd.Flags().Float64Var(&submitMaxRuntime, "max-runtime", 0, "runtime ceiling in minutes (bounded by system limit)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	jobConfig := map[string]any{}
	if submitConfig != "" {
		if err := json.Unmarshal([]byte(submitConfig), &jobConfig); err != nil {
			return fmt.Errorf("parse --config: %w", err)
		}
	}
	if len(submitDocuments) > 0 {
		jobConfig["document_ids"] = submitDocuments
	}
	if submitQuery != "" {
		jobConfig["query"] = submitQuery
	}
	if submitMaxCost > 0 {
		jobConfig["max_cost_usd"] = submitMaxCost
	}
	if submitMaxRuntime > 0 {
		jobConfig["max_runtime_minutes"] = submitMaxRuntime
	}

	jobSvc, orch, err := getJobService(ctx, true)
	if err != nil {
		return err
	}

	job, err := jobSvc.Submit(ctx, args[0], jobConfig)
	if err != nil {
		return err
	}
	jobID := models.MustRecordIDString(job.ID)
	fmt.Printf("Job submitted: %s\n", jobID)

	orch.Wait()

	final, err := jobSvc.Detail(ctx, jobID)
	if err != nil {
		return err
	}
	printJobDetail(final)

	if snap := collector.Snapshot(); snap.LLMCall != nil {
		fmt.Printf("\nLLM calls: %d (avg %.0fms)", snap.LLMCall.Count, snap.LLMCall.AvgTimeMs)
		if snap.LLMCall.TotalInputTokens != nil && snap.LLMCall.TotalOutputTokens != nil {
			fmt.Printf(", tokens %d in / %d out",
				*snap.LLMCall.TotalInputTokens, *snap.LLMCall.TotalOutputTokens)
		}
		fmt.Println()
	}
	return nil
}
