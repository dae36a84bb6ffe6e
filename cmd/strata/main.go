package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/uuid"

	"github.com/maxdollinger/strata/internal/builder"
	"github.com/maxdollinger/strata/pkg/cache"
	"github.com/maxdollinger/strata/pkg/fs"
	"github.com/maxdollinger/strata/pkg/lock"
	"github.com/maxdollinger/strata/pkg/oci"
)

const (
	STRATA_BASE = "/var/lib/strata/"
	ARCHIVE_DIR = STRATA_BASE + "archives"
	CACHE_DB    = STRATA_BASE + "cache.db"
)

func main() {
	imageRef := flag.String("image", "hello-world:latest", "OCI image reference to flatten")
	outputDir := flag.String("output", ARCHIVE_DIR, "directory the flattened archive is written to")
	prefix := flag.String("prefix", "", "path prefix prepended to every entry in the flattened archive")
	gzipOutput := flag.Bool("gzip", false, "gzip-compress the flattened archive")
	flag.Parse()

	startTime := time.Now()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	runID, err := uuid.NewV7()
	if err != nil {
		fmt.Println("could not create run id: " + err.Error())
		os.Exit(1)
	}
	logger = logger.With("runID", runID.String())

	imageSource, err := oci.NewRegistryProvider(*imageRef, oci.WithKeychain(authn.DefaultKeychain))
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	logger = logger.With("imageSource", imageSource.Info())

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Printf("Error creating output directory: %s\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(STRATA_BASE, 0o755); err != nil {
		fmt.Printf("Error creating strata base directory: %s\n", err)
		os.Exit(1)
	}

	store, err := cache.Open(CACHE_DB)
	if err != nil {
		fmt.Printf("Error opening cache: %s\n", err)
		os.Exit(1)
	}
	defer store.Close()

	b := builder.NewBuilder(
		fs.NewOrchestrator(fs.NewLayerFlattener()),
		lock.NewMemoryLocker(),
		store,
	)

	result, err := b.Build(ctx, imageSource, builder.BuildOptions{
		OutputDir:  *outputDir,
		PathPrefix: *prefix,
		Gzip:       *gzipOutput,
	})
	if err != nil {
		fmt.Printf("Error flattening image: %s\n", err)
		os.Exit(1)
	}

	logger.Info("flatten complete",
		"archivePath", result.ArchivePath,
		"digest", result.SourceDigest.String(),
		"cached", result.Cached,
		"duration", time.Since(startTime).Seconds(),
	)
}
