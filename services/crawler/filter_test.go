package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFilterFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.json5")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFilterMissingFileYieldsEmptyFilter(t *testing.T) {
	f, err := LoadFilter(filepath.Join(t.TempDir(), "nope.json5"))
	require.Error(t, err)
	require.True(t, f.Empty())
}

func TestFilterRestrictsToDeclaredTree(t *testing.T) {
	path := writeFilterFile(t, `{
		"공통자재": {
			"봉강": {
				"철근": ["고장력철근"],
				"형강": [],
			},
		},
	}`)
	f, err := LoadFilter(path)
	require.NoError(t, err)

	require.False(t, f.Empty())
	require.True(t, f.HasMajor("공통자재"))
	require.False(t, f.HasMajor("토목자재"))
	require.True(t, f.HasMiddle("공통자재", "봉강"))
	require.False(t, f.HasMiddle("공통자재", "강판"))
	require.True(t, f.HasSub("공통자재", "봉강", "철근"))
	require.False(t, f.HasSub("공통자재", "봉강", "선재"))
}

func TestAllowsSpecEmptyListAllowsEverything(t *testing.T) {
	path := writeFilterFile(t, `{
		"공통자재": {
			"봉강": {
				"철근": ["고장력철근"],
				"형강": [],
			},
		},
	}`)
	f, err := LoadFilter(path)
	require.NoError(t, err)

	require.True(t, f.AllowsSpec("공통자재", "봉강", "철근", "고장력철근"))
	require.False(t, f.AllowsSpec("공통자재", "봉강", "철근", "이형철근"))

	// no allowed list declared: everything under the sub passes
	require.Empty(t, f.AllowedSpecs("공통자재", "봉강", "형강"))
	require.True(t, f.AllowsSpec("공통자재", "봉강", "형강", "ㄱ형강"))
}

func TestCommentMarkerPrunesWholeSubtree(t *testing.T) {
	path := writeFilterFile(t, `{
		"공통자재": {
			"봉강": {
				"철근": ["고장력철근", "#이형철근"],
				"#형강": ["ㄱ형강"],
			},
			"#강판": {
				"후판": [],
			},
		},
		"#토목자재": {
			"시멘트": {
				"포틀랜드": [],
			},
		},
	}`)
	f, err := LoadFilter(path)
	require.NoError(t, err)

	require.False(t, f.HasMajor("#토목자재"))
	require.False(t, f.HasMajor("토목자재"))
	require.False(t, f.HasMiddle("공통자재", "강판"))
	require.False(t, f.HasSub("공통자재", "봉강", "형강"))
	require.Equal(t, []string{"고장력철근"}, f.AllowedSpecs("공통자재", "봉강", "철근"))
}
