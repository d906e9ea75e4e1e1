package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/doppelganger/pkg/query"
)

func newQueriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "queries [persona.json ...]",
		Short: "Print the search queries generated for each persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			personas, err := readPersonas(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			gen := query.New(a.cfg.Tables(), query.WithQualifier(a.cfg.Search.Qualifier))
			w := cmd.OutOrStdout()
			for _, p := range personas {
				if _, err := fmt.Fprintf(w, "# %s\n", p.Name); err != nil {
					return err
				}
				for _, q := range gen.Generate(p) {
					if _, err := fmt.Fprintf(w, "%d\t%s\n", int(q.Tier), q.Text); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
