package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/doppelganger/pkg/persona"
)

// result is one persona's entry in the output.
type result struct {
	Persona string                `json:"persona"`
	Matches []persona.MatchResult `json:"matches"`
}

func newResolveCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "resolve [persona.json ...]",
		Short: "Find the best profile matches for each persona",
		Long: `Reads personas (a JSON object or array per file, or stdin when no files are
given) and writes the ranked matches for each as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			personas, err := readPersonas(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(personas) == 0 {
				return errors.New("no personas to resolve")
			}

			ctx := cmd.Context()
			c, err := build(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				c.Close(shutdown, a.logger)
			}()

			groups, err := c.resolver.ResolveAll(ctx, personas, a.cfg.Resolve.K, a.cfg.Resolve.Concurrency)
			if err != nil {
				return err
			}

			results := make([]result, len(personas))
			for i, p := range personas {
				results[i] = result{Persona: p.Name, Matches: groups[i]}
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close() //nolint:errcheck // closed explicitly below on success
				if err := writeResults(f, results); err != nil {
					return err
				}
				return f.Close()
			}
			return writeResults(w, results)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write results to this file instead of stdout")
	cmd.Flags().Int("concurrency", 2, "personas resolved in parallel")
	if err := a.v.BindPFlag("resolve.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
		panic(err)
	}
	return cmd
}

func writeResults(w io.Writer, results []result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

// readPersonas loads personas from each file in paths, or from r when paths is empty.
func readPersonas(paths []string, r io.Reader) ([]persona.Persona, error) {
	if len(paths) == 0 {
		return persona.Load(r)
	}
	var out []persona.Persona
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open persona file: %w", err)
		}
		ps, err := persona.Load(f)
		f.Close() //nolint:errcheck,gosec // read-only file
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, ps...)
	}
	return out, nil
}
