package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/store"
)

type removeReport struct {
	Removed   bool     `yaml:"removed"`
	Remaining []uint64 `yaml:"remaining"`
	Freed     []uint64 `yaml:"freed"`
	Broken    []string `yaml:"broken,omitempty"`
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	var ids []uint

	cmd := &cobra.Command{
		Use:   "remove <fixture> --id N",
		Short: "Remove entities and show the cascade",
		Long: `Remove loads a fixture, removes the given entities in order and prints
the ids left in the store, the freed ids and any edges the cascade could
not detach.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return fmt.Errorf("at least one --id is required")
			}
			s, err := openSession(cmd, opts, args[0])
			if err != nil {
				return err
			}

			var report removeReport
			for _, id := range ids {
				removed, err := s.db.Remove(cmd.Context(), ent.ID(id))
				switch {
				case errors.Is(err, store.ErrBrokenEdge):
					s.log.Warn("cascade left broken edges").Uint("id", id).Err(err).Send()
					report.Broken = append(report.Broken, err.Error())
				case err != nil:
					return err
				}
				report.Removed = report.Removed || removed
			}
			report.Remaining = toUint64s(s.memory.IDs())
			report.Freed = toUint64s(s.memory.Freed())

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(report); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			return s.close(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().UintSliceVar(&ids, "id", nil, "Id of an entity to remove (repeatable)")
	return cmd
}

func toUint64s(ids []ent.ID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
