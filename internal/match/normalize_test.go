package match_test

import (
	"testing"

	"github.com/AugmentOS-Community/convoscope/internal/match"
)

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Fedora Tips and Tricks", "fedora tips and tricks"},
		{"FedoraTips: Tricks", "fedora tips tricks"},
		{"XMLParser", "xml parser"},
		{"getHTTPResponse", "get http response"},
		{"Don't Panic!", "don't panic"},
		{"Area 51", "area 51"},
		{"  spaced   out  ", "spaced out"},
		{"SPECTROSCOPY", "spectroscopy"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := match.NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
