package tarlayer

import (
	"archive/tar"
	"errors"
	"io"
)

// Reader stream-parses one layer archive into a sequence of Entry records.
// An empty input stream yields an empty sequence, not an error; a malformed
// header or a body truncated relative to its declared size surfaces as
// ArchiveReadError on the Next call where it's discovered.
type Reader struct {
	tr       *tar.Reader
	layerIdx int
}

// NewReader wraps a raw (already decompressed) layer archive stream.
func NewReader(r io.Reader, layerIdx int) *Reader {
	return &Reader{tr: tar.NewReader(r), layerIdx: layerIdx}
}

// Next returns the next Entry, or io.EOF once the archive is exhausted. The
// previous Entry's Body, if any, no longer needs to be drained by the
// caller: tar.Reader.Next already seeks past an unconsumed body.
func (r *Reader) Next() (*Entry, error) {
	hdr, err := r.tr.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &ArchiveReadError{Layer: r.layerIdx, Err: err}
	}

	e := &Entry{
		Path:        canonicalize(hdr.Name),
		Raw:         hdr.Name,
		Kind:        kindOf(hdr),
		Size:        hdr.Size,
		RawLinkName: hdr.Linkname,
		Header:      hdr,
		Body:        io.LimitReader(r.tr, hdr.Size),
	}
	if e.Kind == KindHardlink || e.Kind == KindSymlink {
		e.LinkTarget = canonicalize(hdr.Linkname)
	}
	return e, nil
}
