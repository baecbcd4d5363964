package config

import (
	"fmt"
	"time"

	"github.com/jpalmerr/uptrends"
	"github.com/jpalmerr/uptrends/codec"
	"github.com/jpalmerr/uptrends/internal/registry"
)

// BuildOperations converts parsed configuration into SDK Operation objects.
//
// It processes both direct operations and grids, returning a combined
// slice. Direct operations are normalized like the raw configuration
// (bare path or object) and come first, sorted by name.
func BuildOperations(cfg *Config) ([]uptrends.Operation, error) {
	var ops []uptrends.Operation

	if len(cfg.Operations) > 0 {
		reg, err := registry.Normalize(cfg.Operations, cfg.Auth)
		if err != nil {
			return nil, err
		}
		for _, ro := range reg.Operations() {
			op, err := uptrends.NewOperation(ro.Name(), ro.Path(),
				uptrends.WithParameters(ro.Parameters()),
				uptrends.WithType(ro.Type()),
			)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}

	for _, gc := range cfg.Grids {
		gridOps, err := buildGridOperations(gc)
		if err != nil {
			return nil, err
		}
		ops = append(ops, gridOps...)
	}
	return ops, nil
}

func buildGridOperations(gc GridConfig) ([]uptrends.Operation, error) {
	opts := []uptrends.GridOption{
		uptrends.WithPathTemplate(gc.PathTemplate),
		uptrends.WithDimensions(gc.Dimensions),
	}
	if len(gc.Parameters) > 0 {
		opts = append(opts, uptrends.WithGridParameters(gc.Parameters))
	}
	if gc.Type != "" {
		opts = append(opts, uptrends.WithGridType(gc.Type))
	}
	return uptrends.NewOperationGrid(gc.Name, opts...)
}

// BuildOptions converts parsed configuration into options for
// [uptrends.New]. Sinks, the logger and result callbacks are left to the
// caller.
func BuildOptions(cfg *Config) ([]uptrends.Option, error) {
	ops, err := BuildOperations(cfg)
	if err != nil {
		return nil, err
	}

	creds, err := registry.NormalizeCredentials(cfg.Auth)
	if err != nil {
		return nil, err
	}

	schedule, err := uptrends.ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: codec: %s", registry.ErrInvalidConfig, err)
	}

	opts := []uptrends.Option{
		uptrends.WithOperations(ops...),
		uptrends.WithCredentials(creds.User, creds.Password),
		uptrends.WithSchedule(schedule),
		uptrends.WithCodec(c),
		uptrends.WithPort(cfg.Port),
	}

	if cfg.Target != "" {
		opts = append(opts, uptrends.WithTarget(cfg.Target))
	}
	if cfg.MetadataTarget != "" {
		opts = append(opts, uptrends.WithMetadataTarget(cfg.MetadataTarget))
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %s", registry.ErrInvalidConfig, cfg.Timezone, err)
		}
		opts = append(opts, uptrends.WithLocation(loc))
	}
	if cfg.RecordHistory > 0 {
		opts = append(opts, uptrends.WithRecordHistory(cfg.RecordHistory))
	}
	if cfg.Host != "" {
		opts = append(opts, uptrends.WithHost(cfg.Host))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, uptrends.WithBaseURL(cfg.BaseURL))
	}

	if d := cfg.HTTP.Timeout.Duration(); d > 0 {
		opts = append(opts, uptrends.WithHTTPTimeout(d))
	}
	if cfg.HTTP.MaxRetries != nil {
		opts = append(opts, uptrends.WithMaxRetries(*cfg.HTTP.MaxRetries))
	}
	if cfg.HTTP.RateLimit > 0 {
		opts = append(opts, uptrends.WithRateLimit(cfg.HTTP.RateLimit))
	}
	if cfg.HTTP.MaxConcurrency > 0 {
		opts = append(opts, uptrends.WithMaxConcurrency(cfg.HTTP.MaxConcurrency))
	}
	return opts, nil
}
