package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	eventsLimit  int
	eventsOffset int
)

var eventsCmd = &cobra.Command{
	Use:   "events <job-id>",
	Short: "Show a job's audit log",
	Long: `Show a job's events (start, checkpoint, retry, pause, resume, error,
complete), newest first.

Examples:
  agentkb events 3f2a...
  agentkb events 3f2a... --limit 100`,
	Args: cobra.ExactArgs(1),
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "max events to show")
	eventsCmd.Flags().IntVar(&eventsOffset, "offset", 0, "events to skip")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jobSvc, _, err := getJobService(ctx, false)
	if err != nil {
		return err
	}

	events, err := jobSvc.Events(ctx, args[0], eventsLimit, eventsOffset)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events found")
		return nil
	}

	for _, event := range events {
		fmt.Printf("%s  %-10s", event.Timestamp.Local().Format("2006-01-02 15:04:05"), event.EventType)
		if len(event.EventData) > 0 {
			if data, err := json.Marshal(event.EventData); err == nil {
				fmt.Printf("  %s", data)
			}
		}
		fmt.Println()
	}
	return nil
}
