package fs

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"

	"github.com/maxdollinger/strata/pkg/oci"
)

// mockLayer builds an in-memory gzip-compressed tar layer for exercising
// the flattening pipeline without hitting a real registry.
type mockLayer struct {
	digest    digest.Digest
	mediaType string
	data      []byte
}

func newMockLayer(files map[string]string) *mockLayer {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Size: int64(len(content)), Mode: 0o644}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}

	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	if _, err := gz.Write(buf.Bytes()); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}

	return &mockLayer{
		digest:    digest.FromBytes(gzBuf.Bytes()),
		mediaType: "application/vnd.oci.image.layer.v1.tar+gzip",
		data:      gzBuf.Bytes(),
	}
}

func (l *mockLayer) Digest() digest.Digest    { return l.digest }
func (l *mockLayer) Size() int64              { return int64(len(l.data)) }
func (l *mockLayer) MediaType() string        { return l.mediaType }
func (l *mockLayer) Compressed(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.data)), nil
}

func TestLayerFlattenerMergesLayers(t *testing.T) {
	layers := []oci.Layer{
		newMockLayer(map[string]string{"top": "1"}),
		newMockLayer(map[string]string{"bottom": "2"}),
	}

	var out bytes.Buffer
	f := NewLayerFlattener()
	if err := f.Flatten(context.Background(), layers, &out, ""); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	tr := tar.NewReader(&out)
	found := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading flattened archive: %v", err)
		}
		body, _ := io.ReadAll(tr)
		found[hdr.Name] = string(body)
	}

	if found["top"] != "1" || found["bottom"] != "2" {
		t.Errorf("unexpected flattened content: %+v", found)
	}
}

func TestLayerFlattenerAppliesPathPrefix(t *testing.T) {
	layers := []oci.Layer{newMockLayer(map[string]string{"file": "x"})}

	var out bytes.Buffer
	f := NewLayerFlattener()
	if err := f.Flatten(context.Background(), layers, &out, "rootfs/"); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	tr := tar.NewReader(&out)
	hdr, err := tr.Next()
	if err != nil {
		t.Fatalf("reading flattened archive: %v", err)
	}
	if hdr.Name != "rootfs/file" {
		t.Errorf("entry name = %q, want %q", hdr.Name, "rootfs/file")
	}
}

func TestNoOpFlattenerProducesValidEmptyArchive(t *testing.T) {
	var out bytes.Buffer
	f := NewNoOpFlattener()
	if err := f.Flatten(context.Background(), nil, &out, ""); err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	tr := tar.NewReader(&out)
	if _, err := tr.Next(); err != io.EOF {
		t.Errorf("expected an empty archive, got err=%v", err)
	}
}
