package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestString_Defaults(t *testing.T) {
	withBuildInfo(t, nil)
	assert.Equal(t, "assetflow unknown (commit unknown, built unknown)", String())
}

func TestString_FromBuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})
	assert.Equal(t, "assetflow v0.3.1 (commit 0123456789ab, built 2026-01-02T03:04:05Z)", String())
}

func TestString_LdflagsWin(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	orig := Version
	Version = "v9.9.9"
	t.Cleanup(func() { Version = orig })
	assert.Contains(t, String(), "assetflow v9.9.9 ")
}
