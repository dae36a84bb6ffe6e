package tarlayer

import "fmt"

// ArchiveReadError wraps a failure to parse a layer's archive bytes: a
// malformed header or a body that is truncated relative to its declared
// size. It is not retried; the merger stops producing further output.
type ArchiveReadError struct {
	Layer int // index into the factory list, top layer is 0
	Err   error
}

func (e *ArchiveReadError) Error() string {
	return fmt.Sprintf("read layer %d: %v", e.Layer, e.Err)
}

func (e *ArchiveReadError) Unwrap() error { return e.Err }

// FactoryError wraps a failure from a caller-supplied layer factory.
type FactoryError struct {
	Layer int
	Err   error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("open layer %d: %v", e.Layer, e.Err)
}

func (e *FactoryError) Unwrap() error { return e.Err }

// WriterError wraps a failure from the downstream archive writer, which
// usually means the consumer pulling the merged stream rejected or stopped
// accepting bytes.
type WriterError struct {
	Err error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("write merged archive: %v", e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }
