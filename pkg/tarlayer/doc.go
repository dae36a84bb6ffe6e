// Package tarlayer flattens an ordered stack of tar-family layer archives
// into a single archive representing the union filesystem view a container
// runtime would construct when mounting those layers, honoring AUFS-style
// whiteout deletion markers.
//
// The merger never materializes a filesystem: it streams each layer's bytes
// through an archive reader, decides per entry whether the top layers have
// already claimed or deleted that path, and streams the surviving entries
// into an archive writer. Callers that need gigabyte-scale layers in bounded
// memory should pull from the io.ReadCloser returned by Merge rather than
// buffering it.
package tarlayer
