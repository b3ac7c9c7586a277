package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для просмотра jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect jobs",
	}

	cmd.AddCommand(
		newJobShowCmd(clientFn, outputFn),
		newJobLogsCmd(clientFn, outputFn),
		newJobArtifactsCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "ROLE", "STATUS", "RETRIES", "TERMINATION", "PROMPT"},
				[][]string{{
					job.ID, job.Role, job.Status,
					fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
					job.TerminationReason, truncate(job.Prompt, 60),
				}},
				job,
			)
			return nil
		},
	}
}

func newJobLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "logs JOB_ID",
		Short: "Show job execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			actions, err := client.ListActions(args[0])
			if err != nil {
				return err
			}

			if raw {
				for _, a := range actions {
					out.Text(a.Stdout)
					if a.Stderr != "" {
						out.Text(a.Stderr)
					}
				}
				return nil
			}

			headers := []string{"ITERATION", "STDOUT", "CREATED"}
			rows := make([][]string, len(actions))
			for i, a := range actions {
				rows[i] = []string{
					strconv.Itoa(a.Iteration), truncate(a.Stdout, 80), a.CreatedAt,
				}
			}

			out.Print(headers, rows, actions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw stdout/stderr without table formatting")

	return cmd
}

func newJobArtifactsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts JOB_ID",
		Short: "List artifacts produced by a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			artifacts, err := client.ListArtifacts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "NAME", "PATH", "SIZE", "CREATED"}
			rows := make([][]string, len(artifacts))
			for i, a := range artifacts {
				rows[i] = []string{
					a.ID, a.Kind, a.Name, a.FilePath,
					strconv.FormatInt(a.SizeBytes, 10), a.CreatedAt,
				}
			}

			out.Print(headers, rows, artifacts)
			return nil
		},
	}
}
