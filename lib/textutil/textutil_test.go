package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	require.Equal(t, []string{"d10", "0", "560"}, Tokens("D10, 0.560"))
	require.Equal(t, []string{"고장력철근", "d10"}, Tokens("고장력철근 - D10"))
	require.Empty(t, Tokens("  \t\n"))
	require.Empty(t, Tokens("-,./"))
}

func TestJaccard(t *testing.T) {
	require.Equal(t, float64(1), Jaccard("D10, 0.560", "d10 0 560"))
	require.Equal(t, float64(0), Jaccard("", ""))
	require.Equal(t, float64(0), Jaccard("철근", ""))
	require.Equal(t, float64(0), Jaccard("철근", "시멘트"))

	// one of two tokens shared
	require.InDelta(t, 1.0/3.0, Jaccard("철근 d10", "철근 d13"), 1e-9)
}

func TestJaccardSupersetMonotonic(t *testing.T) {
	base := Jaccard("고장력철근 d10", "고장력철근 d13")
	// adding a token shared by both sides cannot decrease similarity
	grown := Jaccard("고장력철근 d10 kg", "고장력철근 d13 kg")
	require.GreaterOrEqual(t, grown, base)
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "고장력 철근", NormalizeName("  고장력 \t 철근 \n"))
	require.Equal(t, "rebar d10", NormalizeName("Rebar  D10"))
}
