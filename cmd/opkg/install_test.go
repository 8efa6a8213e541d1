package main

import "testing"

func TestSplitPkgRange(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name     string
		arg      string
		wantName string
		wantRng  string
	}{
		{name: "bare name", arg: "style-guide", wantName: "style-guide", wantRng: ""},
		{name: "name and range", arg: "style-guide@^1.2.0", wantName: "style-guide", wantRng: "^1.2.0"},
		{name: "scoped name without range", arg: "@acme/style-guide", wantName: "@acme/style-guide", wantRng: ""},
		{name: "scoped name with range", arg: "@acme/style-guide@^1.2.0", wantName: "@acme/style-guide", wantRng: "^1.2.0"},
		{name: "exact version", arg: "style-guide@1.2.0", wantName: "style-guide", wantRng: "1.2.0"},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, rng := splitPkgRange(tt.arg)
			if name != tt.wantName || rng != tt.wantRng {
				t.Fatalf("splitPkgRange(%q) = (%q, %q), want (%q, %q)", tt.arg, name, rng, tt.wantName, tt.wantRng)
			}
		})
	}
}
