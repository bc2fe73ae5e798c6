package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"legal-ease-backend/internal/ratelimit"
)

func newPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy <limits.yaml>",
		Short: "Validate a rate limit policy file and print its rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := ratelimit.LoadPolicyFile(args[0])
			if err != nil {
				return err
			}
			printPolicy(cmd.OutOrStdout(), policy)
			return nil
		},
	}
}

func printPolicy(w io.Writer, policy ratelimit.Policy) {
	scopes := make([]string, 0, len(policy))
	for scope := range policy {
		scopes = append(scopes, string(scope))
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		rule := policy[ratelimit.Scope(scope)]
		fmt.Fprintf(w, "%-20s %d per %s\n", scope, rule.Limit, rule.Window)
	}
}
