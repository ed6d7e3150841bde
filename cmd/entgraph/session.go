package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/nainya/entgraph/internal/config"
	"github.com/nainya/entgraph/internal/fixture"
	"github.com/nainya/entgraph/internal/logger"
	"github.com/nainya/entgraph/internal/metrics"
	"github.com/nainya/entgraph/pkg/alloc"
	"github.com/nainya/entgraph/pkg/ent"
	"github.com/nainya/entgraph/pkg/store"
)

// session is a store loaded from one fixture for the life of a command
type session struct {
	cfg      config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	memory   *store.Memory
	db       *store.Handle
	fixture  *fixture.Fixture
	loaded   []ent.ID
}

func openSession(cmd *cobra.Command, opts *rootOptions, path string) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.pretty {
		cfg.Log.Pretty = true
	}
	if opts.metrics {
		cfg.Metrics.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	log := cfg.Logger(cmd.ErrOrStderr()).WithFields(map[string]interface{}{"fixture": path})

	fx, err := fixture.Load(path)
	if err != nil {
		return nil, err
	}
	schemas, err := fx.Registry()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	storeOpts := []store.Option{
		store.WithLogger(log),
		store.WithMetrics(metrics.NewMetrics(reg)),
	}
	if cfg.Store.ValidateSchemas {
		storeOpts = append(storeOpts, store.WithRegistry(schemas))
	}
	if cfg.Store.NextID != nil {
		a := alloc.New()
		a.SetNextID(ent.ID(*cfg.Store.NextID))
		storeOpts = append(storeOpts, store.WithAllocator(a))
	}

	mem := store.NewMemory(storeOpts...)
	s := &session{
		cfg:      cfg,
		log:      log,
		registry: reg,
		memory:   mem,
		db:       store.NewHandle(mem),
		fixture:  fx,
	}

	s.loaded, err = fx.Apply(cmd.Context(), s.db, schemas)
	if err != nil {
		return nil, err
	}
	s.log.StoreLogger("load").Info("fixture loaded").
		Int("entities", len(s.loaded)).
		Send()
	return s, nil
}

// close writes gathered metrics when enabled and detaches the store
func (s *session) close(ctx context.Context, w io.Writer) error {
	defer s.db.Detach()
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.cfg.Metrics.Enabled {
		return nil
	}
	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	return writeMetrics(w, families)
}

// writeMetrics encodes the gathered families in the Prometheus text format
func writeMetrics(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}
