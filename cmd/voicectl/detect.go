package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/intent"
)

var detectAgent string

var detectCmd = &cobra.Command{
	Use:   "detect <utterance>",
	Short: "Show whether an utterance asks for a handoff",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, ok := domain.ParseAgentID(detectAgent)
		if !ok {
			return fmt.Errorf("unknown agent %q", detectAgent)
		}

		d := intent.NewDetector()
		text := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		if r, ok := d.Match(text, current); ok {
			fmt.Fprintf(out, "transfer %s -> %s (rule %s)\n", current, r.Target, r.Name)
		} else {
			fmt.Fprintf(out, "no transfer, %s stays active\n", current)
		}

		if verbose {
			for _, a := range domain.Agents {
				if a.ID == current {
					continue
				}
				fmt.Fprintf(out, "\nrules for %s:\n", a.Name)
				for _, r := range d.Rules(a.ID) {
					fmt.Fprintf(out, "  %-10s %s\n", r.Name, r.Pattern)
				}
			}
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectAgent, "agent", "a", string(domain.DefaultAgent), "currently active agent")
	rootCmd.AddCommand(detectCmd)
}
