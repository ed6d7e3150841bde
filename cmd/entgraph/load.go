package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type loadSummary struct {
	Entities int            `yaml:"entities"`
	Types    map[string]int `yaml:"types"`
	IDs      []uint64       `yaml:"ids"`
}

func newLoadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <fixture>",
		Short: "Load a fixture and summarize the store",
		Long:  `Load validates a fixture, inserts its entities and prints how many of each type were stored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, args[0])
			if err != nil {
				return err
			}

			summary := loadSummary{
				Entities: s.memory.Len(),
				Types:    make(map[string]int),
				IDs:      toUint64s(s.memory.IDs()),
			}
			for _, typ := range s.memory.Types() {
				summary.Types[typ] = len(s.memory.TypeIDs(typ))
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			return s.close(cmd.Context(), cmd.OutOrStdout())
		},
	}
}
