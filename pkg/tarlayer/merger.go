package tarlayer

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
)

// LayerFactory returns a fresh readable byte stream for one layer's raw
// (already decompressed) archive bytes. The merger invokes each factory at
// most once, reads it to completion (or until a teardown point), and closes
// it before the next layer's factory is invoked.
type LayerFactory func() (io.ReadCloser, error)

// MergeOptions configures a single merge run.
type MergeOptions struct {
	// PathPrefix, if non-empty, must end in "/" and is prepended to every
	// emitted path. It does not affect identity, suppression, or deletion
	// bookkeeping, only the spelling written to the output archive.
	PathPrefix string
}

// mergeState tracks the bookkeeping the whiteout/suppress/rewrite decision
// tree needs across the whole layer stack: which paths have already won a
// layer, and which paths/subtrees a higher layer's whiteout has masked.
type mergeState struct {
	emitted         map[string]bool
	deletedPaths    map[string]bool
	deletedPrefixes map[string]bool
}

func newMergeState() *mergeState {
	return &mergeState{
		emitted:         make(map[string]bool),
		deletedPaths:    make(map[string]bool),
		deletedPrefixes: make(map[string]bool),
	}
}

func (s *mergeState) isSuppressed(cpath string) bool {
	if s.deletedPaths[cpath] {
		return true
	}
	for d := range s.deletedPrefixes {
		if isUnder(d, cpath) {
			return true
		}
	}
	return false
}

// Merge flattens layers (top layer first) into a single tar archive stream,
// honoring shadowing, whiteout deletion, and hardlink rewriting exactly as
// described by the algorithm this package implements. The returned
// io.ReadCloser is pull-driven: bytes are produced on a background
// goroutine only as the caller reads them, so arbitrarily large merges run
// in bounded memory. Closing the reader before it is drained releases the
// in-flight layer stream and stops the producer.
func Merge(layers []LayerFactory, opts MergeOptions) io.ReadCloser {
	return newStreamPipe(func(w io.Writer) error {
		writer := NewWriter(w)
		state := newMergeState()

		for idx, factory := range layers {
			if err := processLayer(idx, factory, state, writer, opts.PathPrefix); err != nil {
				return err
			}
		}

		return writer.Finish()
	})
}

// processLayer opens one layer, spools it into a seekable temp file (so a
// hardlink whose target appears later in the same archive can be resolved
// without re-invoking the factory, which the contract allows at most once),
// and streams its surviving entries into writer.
func processLayer(idx int, factory LayerFactory, state *mergeState, writer *Writer, prefix string) error {
	src, err := factory()
	if err != nil {
		return &FactoryError{Layer: idx, Err: err}
	}
	defer src.Close()

	spoolPath, empty, err := spoolToTemp(src)
	if err != nil {
		return &ArchiveReadError{Layer: idx, Err: err}
	}
	defer os.Remove(spoolPath)

	if empty {
		return nil
	}

	f, err := os.Open(spoolPath)
	if err != nil {
		return fmt.Errorf("reopen spooled layer %d: %w", idx, err)
	}
	defer f.Close()

	reader := NewReader(f, idx)

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if err := handleEntry(entry, idx, spoolPath, state, writer, prefix); err != nil {
			return err
		}
	}

	return nil
}

// handleEntry applies the per-entry whiteout/suppress/rewrite decision tree:
// whiteout recording, suppression, hardlink rewriting, or a plain emit.
func handleEntry(entry *Entry, layerIdx int, spoolPath string, state *mergeState, writer *Writer, prefix string) error {
	cpath := entry.Path

	if isOpaqueMarker(cpath) {
		// Open question per design notes: handling is intentionally left
		// unspecified. We only guarantee it is never emitted as a regular
		// entry.
		return nil
	}

	if isWhiteout(cpath) {
		target := decodeWhiteout(cpath)
		state.deletedPaths[target] = true
		state.deletedPrefixes[target] = true
		return nil
	}

	if state.emitted[cpath] || state.isSuppressed(cpath) {
		return nil
	}

	if entry.Kind == KindHardlink && state.isSuppressed(entry.LinkTarget) {
		return rewriteHardlink(entry, layerIdx, spoolPath, state, writer, prefix)
	}

	return emitEntry(entry, writer, prefix, state)
}

// emitEntry writes entry through to the output archive, prepending prefix
// to its declared (not canonical) path, and marks cpath as claimed.
func emitEntry(entry *Entry, writer *Writer, prefix string, state *mergeState) error {
	hdr := cloneHeader(entry.Header)
	hdr.Name = prefix + entry.Raw

	if err := writer.WriteEntry(hdr, entry.Body); err != nil {
		return err
	}
	state.emitted[entry.Path] = true
	return nil
}

// rewriteHardlink resolves a hardlink entry whose target has been
// suppressed by a higher layer's whiteout. It scans forward through the
// same layer (via a second, independent handle on the spooled temp file) to
// find the target entry's body and emits entry's path as a regular file
// carrying that body. If the target is genuinely absent from this layer,
// the hardlink entry is emitted unchanged (not exercised by tests).
func rewriteHardlink(entry *Entry, layerIdx int, spoolPath string, state *mergeState, writer *Writer, prefix string) error {
	body, found, err := findBodyInLayer(spoolPath, layerIdx, entry.LinkTarget)
	if err != nil {
		return err
	}

	hdr := cloneHeader(entry.Header)
	hdr.Name = prefix + entry.Raw

	if !found {
		return writer.WriteEntry(hdr, entry.Body)
	}

	hdr.Typeflag = tar.TypeReg
	hdr.Linkname = ""
	hdr.Size = int64(len(body))

	if err := writer.WriteEntry(hdr, bytes.NewReader(body)); err != nil {
		return err
	}
	state.emitted[entry.Path] = true
	return nil
}

// findBodyInLayer opens an independent handle on the layer's spooled bytes
// and scans for the first regular-file entry whose canonical path equals
// target, returning its full body. The lookup runs sequentially, after the main
// forward pass has already read this entry; the independent handle exists
// so the scan's own read position doesn't disturb the main Reader's.
func findBodyInLayer(spoolPath string, layerIdx int, target string) (body []byte, found bool, err error) {
	f, err := os.Open(spoolPath)
	if err != nil {
		return nil, false, fmt.Errorf("reopen spooled layer %d for hardlink lookup: %w", layerIdx, err)
	}
	defer f.Close()

	reader := NewReader(f, layerIdx)
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if entry.Kind != KindRegular || entry.Path != target {
			continue
		}
		data, err := io.ReadAll(entry.Body)
		if err != nil {
			return nil, false, &ArchiveReadError{Layer: layerIdx, Err: err}
		}
		return data, true, nil
	}
}

func cloneHeader(h *tar.Header) *tar.Header {
	clone := *h
	return &clone
}

// spoolToTemp copies src into a temporary file so the layer can be scanned
// more than once (needed for hardlink resolution) without asking the
// factory to reopen it. Returns whether the layer was empty, which is a
// valid outcome to pass through, not an error.
func spoolToTemp(src io.Reader) (path string, empty bool, err error) {
	f, err := os.CreateTemp("", "tarlayer-spool-*")
	if err != nil {
		return "", false, fmt.Errorf("create spool file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, src)
	if err != nil {
		os.Remove(f.Name())
		return "", false, fmt.Errorf("spool layer: %w", err)
	}

	return f.Name(), n == 0, nil
}
