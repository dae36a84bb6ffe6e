package tarlayer

import "testing"

func TestIsWhiteout(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"foo/.wh.bar", true},
		{".wh.bar", true},
		{"foo/bar", false},
		{".wh..wh..opq", true},
	}

	for _, tt := range tests {
		if got := isWhiteout(tt.in); got != tt.want {
			t.Errorf("isWhiteout(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeWhiteout(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo/.wh.bar", "foo/bar"},
		{".wh.bar", "bar"},
		{"a/b/.wh.c", "a/b/c"},
	}

	for _, tt := range tests {
		if got := decodeWhiteout(tt.in); got != tt.want {
			t.Errorf("decodeWhiteout(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsOpaqueMarker(t *testing.T) {
	if !isOpaqueMarker(".wh..wh..opq") {
		t.Error("expected opaque marker to be recognized")
	}
	if !isOpaqueMarker("foo/.wh..wh..opq") {
		t.Error("expected opaque marker nested in a directory to be recognized")
	}
	if isOpaqueMarker("foo/.wh.bar") {
		t.Error("plain whiteout must not be mistaken for an opaque marker")
	}
}
