package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/knowledgetools/agentkb/internal/models"
	"github.com/knowledgetools/agentkb/internal/service"
)

var (
	jobsStatus string
	jobsLimit  int
	jobsOffset int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List jobs or inspect one",
	Long: `List jobs or show one job's detail, including its latest checkpoint
and event count.

Examples:
  agentkb jobs                      # List recent jobs
  agentkb jobs --status running     # Filter by status
  agentkb jobs 3f2a...              # Show details for one job`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "filter by status (pending, running, paused, completed, failed)")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 50, "max jobs to list")
	jobsCmd.Flags().IntVar(&jobsOffset, "offset", 0, "jobs to skip")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jobSvc, _, err := getJobService(ctx, false)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		detail, err := jobSvc.Detail(ctx, args[0])
		if err != nil {
			return err
		}
		printJobDetail(detail)
		return nil
	}

	jobs, err := jobSvc.List(ctx, jobsStatus, jobsLimit, jobsOffset)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-38s %-14s %-10s %s\n", "ID", "TYPE", "STATUS", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, job := range jobs {
		fmt.Printf("%-38s %-14s %-10s %s\n",
			models.MustRecordIDString(job.ID), job.JobType, job.Status,
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printJobDetail(detail *service.JobDetail) {
	job := detail.Job

	fmt.Printf("Job: %s\n", models.MustRecordIDString(job.ID))
	fmt.Printf("  Type: %s\n", job.JobType)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			fmt.Printf("  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Second))
		}
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", *job.ErrorMessage)
	}
	fmt.Printf("  Events: %d\n", detail.EventCount)

	if cp := detail.LatestCheckpoint; cp != nil {
		fmt.Printf("\nLatest checkpoint: %s (%s)\n", cp.StepName, cp.Timestamp.Format(time.RFC3339))
	}

	if len(job.Result) > 0 {
		fmt.Println("\nResult:")
		printJSON(job.Result)
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		fmt.Printf("  %v\n", v)
		return
	}
	fmt.Printf("  %s\n", out)
}
