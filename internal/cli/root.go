// Package cli provides the command-line interface for agentkb.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/knowledgetools/agentkb/internal/config"
	"github.com/knowledgetools/agentkb/internal/db"
	"github.com/knowledgetools/agentkb/internal/llm"
	"github.com/knowledgetools/agentkb/internal/metrics"
	"github.com/knowledgetools/agentkb/internal/orchestrator"
	"github.com/knowledgetools/agentkb/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global config and collaborators, wired in PersistentPreRunE.
	cfg       config.Config
	dbClient  *db.Client
	collector *metrics.Collector

	closeLogger func() error

	// Lazy-initialized LLM model; only commands that run jobs need it.
	model *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agentkb",
	Short: "Agentic knowledge base job engine",
	Long: `Agentkb runs long-running agent workflows (summarization, deep search,
staleness review) against a document knowledge base, with durable
checkpoints, budget guardrails and operator control.

Jobs survive restarts: progress is checkpointed after every unit of work
and a re-dispatched job resumes from its latest checkpoint.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		logger, closeFn := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		closeLogger = closeFn
		collector = metrics.NewCollector()

		ctx := context.Background()
		var err error
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger, collector)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// getOrchestrator builds the orchestrator with a lazily-initialized LLM
// transport. Only job-running commands pay the provider setup cost.
func getOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	return orchestrator.New(dbClient, dbClient, dbClient, model, cfg, nil, collector), nil
}

// getJobService wires the job service. Commands that never execute jobs
// (inspection, control without resume) pass needLLM=false and get a service
// whose dispatcher refuses to run work in-process.
func getJobService(ctx context.Context, needLLM bool) (*service.JobService, *orchestrator.Orchestrator, error) {
	if !needLLM {
		return service.NewJobService(dbClient, noDispatch{}, cfg), nil, nil
	}

	orch, err := getOrchestrator(ctx)
	if err != nil {
		return nil, nil, err
	}
	return service.NewJobService(dbClient, orch, cfg), orch, nil
}

// noDispatch is used by inspection-only commands; execution happens in the
// process that submitted or resumed the job.
type noDispatch struct{}

func (noDispatch) Dispatch(ctx context.Context, jobID string) error {
	return fmt.Errorf("this command does not execute jobs")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
