package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in  string
		out string
		err bool
	}{
		{in: "0.9.2-26-g6146437", out: "0.9.2.26"},
		{in: "v0.9.2-26-g6146437", out: "0.9.2.26"},
		{in: "0.9.3-44", out: "0.9.3.44"},
		{in: "0.9.5", out: "0.9.5.0"},
		{in: "1.0.0-beta", out: "1.0.0.0"},
		{in: "1.2", out: "1.2.0.0"},
		{in: "one", err: true},
	}

	for _, tt := range tests {
		version, err := FormatVersion(tt.in)
		if tt.err {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.out, version, tt.in)
	}
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	c, err := CompareVersions("1.0.0", "1.2.0")
	require.NoError(t, err)
	require.Equal(t, -1, c)

	c, err = CompareVersions("v1.2.0", "1.2.0")
	require.NoError(t, err)
	require.Equal(t, 0, c)

	_, err = CompareVersions("x", "1.0.0")
	require.Error(t, err)
}
