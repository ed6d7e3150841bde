package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nainya/entgraph/pkg/ent"
)

type queryResult struct {
	Name      string           `yaml:"name"`
	Condition string           `yaml:"condition"`
	Matches   []map[string]any `yaml:"matches"`
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <fixture> [name...]",
		Short: "Run a fixture's named queries",
		Long: `Query loads a fixture and runs its named queries, or only the ones
given, printing the matching entities as YAML.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, args[0])
			if err != nil {
				return err
			}

			names := args[1:]
			if len(names) == 0 {
				for _, doc := range s.fixture.Queries {
					names = append(names, doc.Name)
				}
			}

			results := make([]queryResult, 0, len(names))
			for _, name := range names {
				q, err := s.fixture.Query(name)
				if err != nil {
					return err
				}
				found, err := s.db.FindAll(cmd.Context(), q)
				if err != nil {
					s.log.Error("query failed").Str("query", name).Err(err).Send()
					return err
				}
				s.log.Debug("query evaluated").Str("query", name).Int("matches", len(found)).Send()
				r := queryResult{Name: name, Condition: q.String(), Matches: make([]map[string]any, len(found))}
				for i, e := range found {
					r.Matches[i] = ent.Document(e)
				}
				results = append(results, r)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(results); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			return s.close(cmd.Context(), cmd.OutOrStdout())
		},
	}
}
