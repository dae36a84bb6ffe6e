// Package builder orchestrates fetching an OCI image and flattening its
// layers into a single archive, cached and locked by image digest.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maxdollinger/strata/pkg/cache"
	"github.com/maxdollinger/strata/pkg/fs"
	"github.com/maxdollinger/strata/pkg/lock"
	"github.com/maxdollinger/strata/pkg/oci"
	"github.com/opencontainers/go-digest"
)

type Builder interface {
	Build(ctx context.Context, provider oci.OciImageSource, opts BuildOptions) (*BuildResult, error)
}

type BuildOptions struct {
	OutputDir  string // where to place the final flattened archive
	PathPrefix string // optional prefix prepended to every emitted archive path
	Gzip       bool   // gzip-compress the output archive
}

// BuildResult contains information about the built artifact
type BuildResult struct {
	ArchivePath  string
	SourceDigest digest.Digest
	ImageConfig  *oci.ImageConfig
	BuildTime    time.Duration
	Cached       bool
}

type builder struct {
	orchestrator fs.Orchestrator
	locker       lock.Locker
	cache        cache.Store
	logger       *slog.Logger
}

func NewBuilder(orchestrator fs.Orchestrator, locker lock.Locker, store cache.Store) Builder {
	return &builder{
		orchestrator: orchestrator,
		locker:       locker,
		cache:        store,
		logger:       slog.Default(),
	}
}

func (b *builder) Build(ctx context.Context, provider oci.OciImageSource, opts BuildOptions) (*BuildResult, error) {
	startTime := time.Now()

	b.logger.InfoContext(ctx, "starting build", "providerInfo", provider.Info())

	image, err := provider.GetImage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to provide image: %w", err)
	}

	digestHex := image.Digest.Hex()
	logger := b.logger.With("digest", digestHex)
	logger.InfoContext(ctx, "image fetched", "layers", len(image.Layers))

	l, err := b.locker.AcquireLock(ctx, image.Digest)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", digestHex, err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.WarnContext(ctx, "failed to release lock", "error", err)
		}
	}()

	if rec, err := b.cache.Lookup(ctx, digestHex); err != nil {
		logger.WarnContext(ctx, "cache lookup failed, rebuilding", "error", err)
	} else if rec != nil {
		logger.InfoContext(ctx, "cache hit, reusing flattened archive", "path", rec.ArchivePath)
		return &BuildResult{
			ArchivePath:  rec.ArchivePath,
			SourceDigest: image.Digest,
			ImageConfig:  image.Config,
			BuildTime:    time.Since(startTime),
			Cached:       true,
		}, nil
	}

	ext := ".tar"
	if opts.Gzip {
		ext = ".tar.gz"
	}
	outputPath := filepath.Join(opts.OutputDir, digestHex+ext)

	logger.InfoContext(ctx, "flattening layers", "output", outputPath)
	err = b.orchestrator.FlattenToArchive(ctx, image.Layers, fs.FlattenOptions{
		OutputDir:  opts.OutputDir,
		FinalPath:  outputPath,
		PathPrefix: opts.PathPrefix,
		Gzip:       opts.Gzip,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to flatten layers: %w", err)
	}

	if err := b.cache.Insert(ctx, cache.Record{
		ImageDigest: digestHex,
		ImageRef:    provider.Info(),
		ArchivePath: outputPath,
	}); err != nil {
		logger.WarnContext(ctx, "failed to record build in cache", "error", err)
	}

	logger.InfoContext(ctx, "build completed successfully", "duration", time.Since(startTime))

	return &BuildResult{
		ArchivePath:  outputPath,
		SourceDigest: image.Digest,
		ImageConfig:  image.Config,
		BuildTime:    time.Since(startTime),
		Cached:       false,
	}, nil
}
