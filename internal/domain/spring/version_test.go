package spring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParse verifies decomposition into numeric parts and commit count.
func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   Version
		wantOK bool
	}{
		{
			name:   "plain major",
			input:  "95",
			want:   Version{Parts: []int{95}},
			wantOK: true,
		},
		{
			name:   "major minor",
			input:  "104.0",
			want:   Version{Parts: []int{104, 0}},
			wantOK: true,
		},
		{
			name:   "development build",
			input:  "104.0.1-1058-g7d1c23e",
			want:   Version{Parts: []int{104, 0, 1}, CommitCount: 1058},
			wantOK: true,
		},
		{
			name:   "suffix without commit pattern",
			input:  "104.0.1-rc1",
			want:   Version{Parts: []int{104, 0, 1}},
			wantOK: true,
		},
		{
			name:   "branch alias",
			input:  "{develop}105.1.1",
			wantOK: false,
		},
		{
			name:   "empty",
			input:  "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Parse(tt.input)
			require.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

// TestCompareVersions exercises the documented ordering rules.
func TestCompareVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		left   string
		right  string
		want   int
		wantOK bool
	}{
		{name: "shorter orders first", left: "95", right: "95.1", want: -1, wantOK: true},
		{name: "missing component is zero", left: "95", right: "95.0", want: 0, wantOK: true},
		{name: "major decides", left: "96", right: "104.0", want: -1, wantOK: true},
		{name: "commit count breaks ties", left: "104.0.1-1058-g7d1c23e", right: "104.0.1-1059-gabc1234", want: -1, wantOK: true},
		{name: "commit count beats absence", left: "104.0.1", right: "104.0.1-1-gabc1234", want: -1, wantOK: true},
		{name: "identical up to commit count", left: "104.0.1-1058-g1", right: "104.0.1-1058-g2", want: 0, wantOK: true},
		{name: "numeric not lexicographic", left: "99", right: "104", want: -1, wantOK: true},
		{name: "left unparseable", left: "stable", right: "104.0", wantOK: false},
		{name: "right unparseable", left: "104.0", right: "{develop}105", wantOK: false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := CompareVersions(tt.left, tt.right)
			require.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

// TestCompareVersions_Antisymmetry checks ordering consistency over a ladder
// of known-ordered versions.
func TestCompareVersions_Antisymmetry(t *testing.T) {
	t.Parallel()

	// Strictly ascending.
	ladder := []string{
		"91.0",
		"94.1.1",
		"95",
		"95.0.1",
		"96.0",
		"104.0",
		"104.0.1-1058-g7d1c23e",
		"104.0.1-2141-gdeadbee",
		"105.1.1-1544-g1234567",
	}

	for i, older := range ladder {
		for _, newer := range ladder[i+1:] {
			forward, ok := CompareVersions(older, newer)
			require.True(t, ok)
			require.Negative(t, forward, "%s vs %s", older, newer)

			backward, ok := CompareVersions(newer, older)
			require.True(t, ok)
			require.Positive(t, backward, "%s vs %s", newer, older)
		}

		same, ok := CompareVersions(older, older)
		require.True(t, ok)
		require.Zero(t, same)
	}
}
