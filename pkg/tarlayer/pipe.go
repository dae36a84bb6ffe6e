package tarlayer

import "io"

// streamPipe bridges the merger, a push-style producer running on its own
// goroutine, to a pull-style consumer reading from the returned
// io.ReadCloser. Backpressure is implicit: io.Pipe blocks the producer's
// Write until the consumer's Read drains it, so a gigabyte-scale merge
// never needs more than one entry's body buffered in memory.
//
// Closing the returned reader before the producer finishes unblocks a
// stalled Write with io.ErrClosedPipe, which is the merger's teardown path
// when a consumer stops pulling mid-stream.
func newStreamPipe(produce func(w io.Writer) error) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		err := produce(pw)
		pw.CloseWithError(err)
	}()
	return pr
}
