package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/maxdollinger/strata/pkg/oci"
)

// Orchestrator drives a single flatten-to-archive run: merge the layers,
// stream the result through the right compression, and publish it
// atomically.
type Orchestrator interface {
	FlattenToArchive(ctx context.Context, layers []oci.Layer, opts FlattenOptions) error
}

// FlattenOptions configures one archive build.
type FlattenOptions struct {
	OutputDir  string
	FinalPath  string
	PathPrefix string
	Gzip       bool
}

type orchestrator struct {
	flattener Flattener
	logger    *slog.Logger
}

// NewOrchestrator composes a Flattener into a full build pipeline.
func NewOrchestrator(flattener Flattener) Orchestrator {
	return &orchestrator{flattener: flattener, logger: slog.Default()}
}

func (o *orchestrator) FlattenToArchive(ctx context.Context, layers []oci.Layer, opts FlattenOptions) error {
	o.logger.InfoContext(ctx, "flattening layers", "count", len(layers), "output", opts.FinalPath, "gzip", opts.Gzip)

	err := WriteArchiveAtomic(opts.OutputDir, opts.FinalPath, opts.Gzip, func(w io.Writer) error {
		return o.flattener.Flatten(ctx, layers, w, opts.PathPrefix)
	})
	if err != nil {
		return fmt.Errorf("flatten to archive: %w", err)
	}

	o.logger.InfoContext(ctx, "flatten complete", "output", opts.FinalPath)
	return nil
}
