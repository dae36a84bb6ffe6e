// Package fs glues pkg/oci layer fetches to pkg/tarlayer's merge engine: it
// decompresses each layer's gzip framing, feeds the raw tar bytes into the
// merger, and publishes the flattened result to an output file.
package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/maxdollinger/strata/pkg/oci"
	"github.com/maxdollinger/strata/pkg/tarlayer"
)

// Flattener merges an ordered OCI layer stack into a single tar archive
// stream, writing it to out.
type Flattener interface {
	Flatten(ctx context.Context, layers []oci.Layer, out io.Writer, pathPrefix string) error
}

type layerFlattener struct {
	logger *slog.Logger
}

// NewLayerFlattener returns the production Flattener used outside of tests.
func NewLayerFlattener() Flattener {
	return &layerFlattener{logger: slog.Default()}
}

func (f *layerFlattener) Flatten(ctx context.Context, layers []oci.Layer, out io.Writer, pathPrefix string) error {
	factories := make([]tarlayer.LayerFactory, len(layers))
	for i, layer := range layers {
		factories[i] = f.factoryFor(ctx, i, layer)
	}

	merged := tarlayer.Merge(factories, tarlayer.MergeOptions{PathPrefix: pathPrefix})
	defer merged.Close()

	if _, err := io.Copy(out, merged); err != nil {
		return fmt.Errorf("flatten %d layers: %w", len(layers), err)
	}
	return nil
}

func (f *layerFlattener) factoryFor(ctx context.Context, idx int, layer oci.Layer) tarlayer.LayerFactory {
	return func() (io.ReadCloser, error) {
		f.logger.DebugContext(ctx, "opening layer", "index", idx, "digest", layer.Digest(), "mediaType", layer.MediaType())

		compressed, err := layer.Compressed(ctx)
		if err != nil {
			return nil, fmt.Errorf("open layer %d: %w", idx, err)
		}

		if !isGzipMediaType(layer.MediaType()) {
			return compressed, nil
		}

		gz, err := gzip.NewReader(compressed)
		if err != nil {
			compressed.Close()
			return nil, fmt.Errorf("open gzip layer %d: %w", idx, err)
		}
		return &gzipLayerReader{gz: gz, underlying: compressed}, nil
	}
}

func isGzipMediaType(mediaType string) bool {
	return strings.Contains(mediaType, "gzip")
}

// gzipLayerReader presents a decompressed layer as a single io.ReadCloser,
// closing both the gzip reader and the underlying compressed stream.
type gzipLayerReader struct {
	gz         *gzip.Reader
	underlying io.ReadCloser
}

func (r *gzipLayerReader) Read(p []byte) (int, error) {
	return r.gz.Read(p)
}

func (r *gzipLayerReader) Close() error {
	err := r.gz.Close()
	if cerr := r.underlying.Close(); err == nil {
		err = cerr
	}
	return err
}

// noOpFlattener satisfies Flattener for tests that don't want to exercise
// real layer decompression, producing a minimal empty archive.
type noOpFlattener struct{}

// NewNoOpFlattener returns a Flattener that ignores its layers and writes
// an empty, well-formed tar archive.
func NewNoOpFlattener() Flattener {
	return &noOpFlattener{}
}

func (n *noOpFlattener) Flatten(ctx context.Context, layers []oci.Layer, out io.Writer, pathPrefix string) error {
	merged := tarlayer.Merge(nil, tarlayer.MergeOptions{PathPrefix: pathPrefix})
	defer merged.Close()
	_, err := io.Copy(out, merged)
	return err
}
