package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job with its checkpoints and events",
	Long: `Delete a job and all of its persisted checkpoints and events.

Running jobs cannot be deleted; stop them first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jobSvc, _, err := getJobService(ctx, false)
	if err != nil {
		return err
	}

	if err := jobSvc.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted job %s\n", args[0])
	return nil
}
