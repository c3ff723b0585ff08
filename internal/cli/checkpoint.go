package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowledgetools/agentkb/internal/models"
)

var checkpointData string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <job-id> <step-name>",
	Short: "Record a manual checkpoint for a job",
	Long: `Record an operator-provided checkpoint, independent of the checkpoints
the executors write. Useful for marking externally-performed progress
before resuming a paused job.

Examples:
  agentkb checkpoint 3f2a... manual_fixup --data '{"processed_count": 1}'`,
	Args: cobra.ExactArgs(2),
	RunE: runCheckpoint,
}

func init() {
	checkpointCmd.Flags().StringVarP(&checkpointData, "data", "d", "{}", "checkpoint state as JSON object")
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var stateData map[string]any
	if err := json.Unmarshal([]byte(checkpointData), &stateData); err != nil {
		return fmt.Errorf("parse --data: %w", err)
	}

	jobSvc, _, err := getJobService(ctx, false)
	if err != nil {
		return err
	}

	checkpoint, err := jobSvc.RecordCheckpoint(ctx, args[0], args[1], stateData)
	if err != nil {
		return err
	}
	fmt.Printf("Checkpoint recorded: %s (step %s)\n",
		models.MustRecordIDString(checkpoint.ID), checkpoint.StepName)
	return nil
}
