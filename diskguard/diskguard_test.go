package diskguard

import (
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// usageAt builds a Usage with no reserved blocks at the given used percentage.
func usageAt(percent uint64) Usage {
	return Usage{Mountpoint: "/mnt", Total: 1000, Free: 1000 - percent*10, Available: 1000 - percent*10}
}

func fixed(u Usage) Prober {
	return ProberFunc(func(string) (Usage, error) { return u, nil })
}

func TestCheckClassifiesUsage(t *testing.T) {
	tests := []struct {
		name    string
		percent uint64
		want    Verdict
		code    int
		message string
	}{
		{"low space at 90%", 90, VerdictLowSpace, http.StatusBadRequest, "Low Disk Space:  90.00 used%"},
		{"ok at 80%", 80, VerdictOK, http.StatusOK, "Disk Space used:  80.00%"},
		{"ok at threshold", 85, VerdictOK, http.StatusOK, "Disk Space used:  85.00%"},
		{"empty disk", 0, VerdictOK, http.StatusOK, "Disk Space used:  0.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(WithProber(fixed(usageAt(tt.percent))))
			s, err := g.Check(t.TempDir())
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Verdict)
			assert.InDelta(t, float64(tt.percent), s.UsedPercent, 1e-9)
			assert.Equal(t, tt.code, s.Code())
			assert.Equal(t, tt.message, s.Message())
			assert.Equal(t, "/mnt", s.Mountpoint)
		})
	}
}

func TestClassifyBoundary(t *testing.T) {
	assert.Equal(t, VerdictOK, Classify(85))
	assert.Equal(t, VerdictLowSpace, Classify(85.01))
}

func TestUsedPercentExcludesReservedBlocks(t *testing.T) {
	// 100 blocks total, 30 free of which 10 are reserved for root.
	u := Usage{Total: 100, Free: 30, Available: 20}
	assert.InDelta(t, 70.0/90.0*100, u.UsedPercent(), 1e-9)
	assert.Equal(t, 0.0, Usage{}.UsedPercent())
}

func TestCheckInspectionFailure(t *testing.T) {
	cause := errors.New("permission denied")
	g := New(WithProber(ProberFunc(func(string) (Usage, error) { return Usage{}, cause })))

	s, err := g.Check("/somewhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInspection)
	assert.ErrorIs(t, err, cause)

	var ierr *InspectionError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "/somewhere", ierr.Path)

	assert.Equal(t, VerdictUnknown, s.Verdict)
	assert.Equal(t, http.StatusBadRequest, s.Code())
	assert.Equal(t, "Error: inspect disk for /somewhere: permission denied", s.Message())
}

func TestCheckProbesAbsolutePath(t *testing.T) {
	var probed string
	g := New(WithProber(ProberFunc(func(p string) (Usage, error) {
		probed = p
		return usageAt(10), nil
	})))

	_, err := g.CheckWorkingDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(probed), "got %q", probed)
}

func TestVerdictText(t *testing.T) {
	for v, want := range map[Verdict]string{
		VerdictOK:       "ok",
		VerdictLowSpace: "low_space",
		VerdictUnknown:  "unknown",
	} {
		text, err := v.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(text))

		var back Verdict
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, v, back)
	}

	var bad Verdict
	assert.Error(t, bad.UnmarshalText([]byte("full")))
}
