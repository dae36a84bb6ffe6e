package tarlayer

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"./foo", "foo"},
		{"./foo/bar", "foo/bar"},
		{"foo/./bar", "foo/./bar"}, // only a single leading "./" is stripped
		{"", ""},
	}

	for _, tt := range tests {
		if got := canonicalize(tt.in); got != tt.want {
			t.Errorf("canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsUnder(t *testing.T) {
	tests := []struct {
		dir, candidate string
		want           bool
	}{
		{"foo", "foo", true},
		{"foo", "foo/bar", true},
		{"foo", "foo/bar/baz", true},
		{"foo", "foobar", false},
		{"foo", "foobar/baz", false},
		{"foo", "bar", false},
	}

	for _, tt := range tests {
		if got := isUnder(tt.dir, tt.candidate); got != tt.want {
			t.Errorf("isUnder(%q, %q) = %v, want %v", tt.dir, tt.candidate, got, tt.want)
		}
	}
}
