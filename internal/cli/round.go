package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newRoundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "round",
		Aliases: []string{"r"},
		Short:   "Submission and voting commands",
	}

	cmd.AddCommand(newRoundSubmissionsCmd())
	cmd.AddCommand(newRoundSubmitCmd())
	cmd.AddCommand(newRoundEntriesCmd())
	cmd.AddCommand(newRoundVoteCmd())
	cmd.AddCommand(newRoundPodiumCmd())

	return cmd
}

func newRoundSubmissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submissions <code>",
		Short: "List your templates for the current round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Submission

			if err := client.Get(sessionPath(args[0], "submissions"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRoundSubmitCmd() *cobra.Command {
	var texts []string

	cmd := &cobra.Command{
		Use:   "submit <code> <submission-id>",
		Short: "Caption a template and submit it",
		Long: `Caption one of your templates for the round and submit it.

Pass --text once per text box, in order. Use an empty value to skip a box:

  mimctl round submit ABC123 s_1 --text "top" --text "" --text "bottom"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Submission

			req := map[string][]string{"texts": texts}
			if err := client.Put(sessionPath(args[0], "submissions", args[1]), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&texts, "text", nil, "Caption for the next text box (repeatable)")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newRoundEntriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entries <code> <round>",
		Short: "List the other players' entries for a round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.Atoi(args[1]); err != nil {
				return err
			}

			var result []Entry
			if err := client.Get(sessionPath(args[0], "rounds", args[1], "entries"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRoundVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <code> <submission-id> <category>",
		Short: "Vote on an entry: mild, normal or hilarious",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Vote

			req := map[string]string{
				"submission_id": args[1],
				"category":      args[2],
			}
			if err := client.Post(sessionPath(args[0], "votes"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRoundPodiumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "podium <code>",
		Short: "Show the final ranking of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []PodiumEntry

			if err := client.Get(sessionPath(args[0], "podium"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
