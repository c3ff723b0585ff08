package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowledgetools/agentkb/internal/service"
)

var controlCmd = &cobra.Command{
	Use:   "control <job-id> <pause|resume|stop>",
	Short: "Pause, resume or stop a job",
	Long: `Apply an external control transition to a job.

pause   only valid while the job is running; takes effect at the next
        checkpoint boundary
resume  only valid while paused; re-dispatches the job, which continues
        from its latest checkpoint
stop    valid unless the job already finished; marks it failed with an
        operator-stop message

Examples:
  agentkb control 3f2a... pause
  agentkb control 3f2a... resume
  agentkb control 3f2a... stop`,
	Args: cobra.ExactArgs(2),
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jobID := args[0]
	action := service.ControlAction(args[1])

	// Resume re-dispatches in this process, so it needs the LLM transport.
	needLLM := action == service.ActionResume
	jobSvc, orch, err := getJobService(ctx, needLLM)
	if err != nil {
		return err
	}

	status, err := jobSvc.Control(ctx, jobID, action)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s is now %s\n", jobID, status)

	if orch != nil {
		orch.Wait()
		final, err := jobSvc.Detail(ctx, jobID)
		if err != nil {
			return err
		}
		printJobDetail(final)
	}
	return nil
}
