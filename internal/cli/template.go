package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTemplateCmd создаёт группу команд для управления templates.
func NewTemplateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage pipeline templates",
	}

	cmd.AddCommand(
		newTemplateListCmd(clientFn, outputFn),
		newTemplateCreateCmd(clientFn, outputFn),
		newTemplateShowCmd(clientFn, outputFn),
		newTemplateDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newTemplateListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			templates, err := client.ListTemplates()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STAGES", "DESCRIPTION", "CREATED"}
			rows := make([][]string, len(templates))
			for i, t := range templates {
				rows[i] = []string{
					t.ID, t.Name, strconv.Itoa(len(t.Stages)),
					truncate(t.Description, 40), t.CreatedAt,
				}
			}

			out.Print(headers, rows, templates)
			return nil
		},
	}
}

func newTemplateCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a template from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			spec, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read template file: %w", err)
			}

			template, err := client.CreateTemplate(spec)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template created: %s", template.ID))
			out.Print(
				[]string{"ID", "NAME", "STAGES"},
				[][]string{{template.ID, template.Name, strconv.Itoa(len(template.Stages))}},
				template,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to template JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newTemplateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show template details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			template, err := client.GetTemplate(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "STAGES", "DESCRIPTION", "CREATED"},
				[][]string{{
					template.ID, template.Name, strconv.Itoa(len(template.Stages)),
					truncate(template.Description, 40), template.CreatedAt,
				}},
				template,
			)
			return nil
		},
	}
}

func newTemplateDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTemplate(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template deleted: %s", args[0]))
			return nil
		},
	}
}
