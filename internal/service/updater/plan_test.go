package updater

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/autohost-updater/internal/repository/manifest"
)

func TestComputePlan(t *testing.T) {
	t.Parallel()

	installed := manifest.NewState()
	installed.Packages["pkgA"] = "1.0"

	channel := map[string]string{
		"pkgA": "1.0",
		"pkgB": "2.0.zip",
	}

	plan, err := computePlan(context.Background(), installed, channel,
		[]string{"pkgA", "pkgB"}, false)
	require.NoError(t, err)

	require.Equal(t, []planItem{{
		name:       "pkgB",
		version:    "2.0",
		remoteName: "pkgB_2.0.zip",
		isArchive:  true,
	}}, plan)
	require.Equal(t, "pkgB_2.0", plan[0].localName())
}

func TestComputePlan_SkipsAbsentPackage(t *testing.T) {
	t.Parallel()

	channel := map[string]string{
		"present": "1.1",
	}

	plan, err := computePlan(context.Background(), manifest.NewState(), channel,
		[]string{"absent", "present"}, false)
	require.NoError(t, err)

	// Absent from the channel is a warning and a skip, never an error.
	require.Len(t, plan, 1)
	require.Equal(t, "present", plan[0].name)
	require.False(t, plan[0].isArchive)
	require.Equal(t, "present_1.1", plan[0].remoteName)
}

func TestComputePlan_KeepsRequestOrder(t *testing.T) {
	t.Parallel()

	channel := map[string]string{
		"first":  "1.0",
		"second": "2.0",
		"third":  "3.0",
	}

	plan, err := computePlan(context.Background(), manifest.NewState(), channel,
		[]string{"third", "first", "second"}, false)
	require.NoError(t, err)

	names := make([]string, 0, len(plan))
	for _, item := range plan {
		names = append(names, item.name)
	}

	require.Equal(t, []string{"third", "first", "second"}, names)
}

func TestComputePlan_MajorJumpGuard(t *testing.T) {
	t.Parallel()

	installed := manifest.NewState()
	installed.Packages["foo"] = "1.0.linux64"

	channel := map[string]string{
		"foo": "2.0.linux64.zip",
	}

	_, err := computePlan(context.Background(), installed, channel,
		[]string{"foo"}, false)
	require.ErrorIs(t, err, ErrManualUpdateRequired)

	// Force overrides the guard.
	plan, err := computePlan(context.Background(), installed, channel,
		[]string{"foo"}, true)
	require.NoError(t, err)
	require.Len(t, plan, 1)
}

func TestGuardMajorJump(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		installed string
		available string
		wantErr   bool
	}{
		{name: "same major", installed: "1.0.linux64", available: "1.4.linux64", wantErr: false},
		{name: "major changed", installed: "1.4.linux64", available: "2.0.linux64", wantErr: true},
		{name: "three numeric components", installed: "0.12.29", available: "1.0.0", wantErr: true},
		{name: "nothing installed", installed: "", available: "2.0.linux64", wantErr: false},
		{name: "installed has no tag", installed: "0.5", available: "2.0.linux64", wantErr: false},
		{name: "available has no tag", installed: "1.0.linux64", available: "2.1", wantErr: false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := guardMajorJump("pkg", tt.installed, tt.available)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrManualUpdateRequired)
				return
			}

			require.NoError(t, err)
		})
	}
}
