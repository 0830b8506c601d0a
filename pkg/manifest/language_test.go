package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLanguage(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		in       string
		inno     string
		culture  string
		hasError bool
	}{
		{in: "en", inno: "english", culture: "en-US"},
		{in: "en-GB", inno: "english", culture: "en-US"},
		{in: "ja", inno: "japanese", culture: "ja-JP"},
		{in: "ja-JP", inno: "japanese", culture: "ja-JP"},
		{in: "pt-BR", inno: "brazilianportuguese", culture: "pt-BR"},
		{in: "de-AT", inno: "german", culture: "de-DE"},
		{in: "not a tag", hasError: true},
		{in: "tlh", hasError: true},
		{in: "zu", hasError: true},
		{in: "ko", hasError: true},
	}

	for _, tt := range tests {
		c, err := ResolveLanguage(tt.in)
		if tt.hasError {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.inno, c.InnoName, tt.in)
		require.Equal(t, tt.culture, c.WixCulture, tt.in)
	}

	c, ok := CatalogByInnoName("japanese")
	require.True(t, ok)
	require.Equal(t, 1041, c.LCID)
}
