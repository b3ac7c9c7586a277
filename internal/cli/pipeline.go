package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineStartCmd(clientFn, outputFn),
		newPipelineListCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineCancelCmd(clientFn, outputFn),
		newPipelineStagesCmd(clientFn, outputFn),
		newPipelineJobsCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var prompt string
	var workspace string
	var excludeStages []string

	cmd := &cobra.Command{
		Use:   "start TEMPLATE_ID",
		Short: "Start a new pipeline from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.StartPipeline(args[0], InstantiateRequest{
				Prompt:        prompt,
				WorkspacePath: workspace,
				ExcludeStages: excludeStages,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline started: %s", pipeline.ID))
			out.Print(
				[]string{"ID", "TEMPLATE_ID", "STATUS", "CREATED"},
				[][]string{{pipeline.ID, pipeline.TemplateID, pipeline.Status, pipeline.CreatedAt}},
				pipeline,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Original prompt for the pipeline (required)")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace path for jobs")
	cmd.Flags().StringSliceVar(&excludeStages, "exclude-stage", nil, "Stage name to skip (repeatable)")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var templateID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines(ListPipelinesOpts{
				TemplateID: templateID,
				Status:     status,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "TEMPLATE_ID", "STATUS", "PROMPT", "CREATED"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				rows[i] = []string{
					p.ID, p.TemplateID, p.Status,
					truncate(p.OriginalPrompt, 40), p.CreatedAt,
				}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}

	cmd.Flags().StringVar(&templateID, "template-id", "", "Filter by template ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TEMPLATE_ID", "STATUS", "PROMPT", "STARTED", "COMPLETED"},
				[][]string{{
					pipeline.ID, pipeline.TemplateID, pipeline.Status,
					truncate(pipeline.OriginalPrompt, 40),
					pipeline.StartedAt, pipeline.CompletedAt,
				}},
				pipeline,
			)
			return nil
		},
	}
}

func newPipelineCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request pipeline cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.CancelPipeline(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", pipeline.ID))
			return nil
		},
	}
}

func newPipelineStagesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stages PIPELINE_ID",
		Short: "List stages in a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stages, err := client.ListStages(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "ORDER", "NAME", "STATUS"}
			rows := make([][]string, len(stages))
			for i, s := range stages {
				rows[i] = []string{s.ID, strconv.Itoa(s.Order), s.Name, s.Status}
			}

			out.Print(headers, rows, stages)
			return nil
		},
	}
}

func newPipelineJobsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs PIPELINE_ID",
		Short: "List jobs in a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "ROLE", "STATUS", "RETRIES", "TERMINATION", "CREATED"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{
					j.ID, j.Role, j.Status,
					fmt.Sprintf("%d/%d", j.RetryCount, j.MaxRetries),
					j.TerminationReason, j.CreatedAt,
				}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}
}
