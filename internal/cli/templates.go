package cli

import (
	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Template catalogue commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the templates in play",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Template

			if err := client.Get("/api/v1/templates", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Reload templates from their source (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Template

			if err := client.Post("/api/v1/admin/templates/refresh", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	})

	return cmd
}
