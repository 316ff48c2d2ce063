package match_test

import (
	"strings"
	"testing"

	"github.com/AugmentOS-Community/convoscope/internal/match"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()
	if err := match.DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*match.Config)
		wantErr []string
	}{
		{
			name:    "window too small",
			mutate:  func(c *match.Config) { c.MaxWindowSize = 1 },
			wantErr: []string{"max window size"},
		},
		{
			name:    "ratio out of range",
			mutate:  func(c *match.Config) { c.MaxStopWordRatio = 1.5 },
			wantErr: []string{"stop word ratio"},
		},
		{
			name:    "negative bound",
			mutate:  func(c *match.Config) { c.Bounds.MaxInsertions = -1 },
			wantErr: []string{"max insertions"},
		},
		{
			name: "every error reported",
			mutate: func(c *match.Config) {
				c.MaxResults = 0
				c.Workers = 0
				c.MaxLengthDelta = 0
			},
			wantErr: []string{"max results", "workers", "max length delta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := match.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}
