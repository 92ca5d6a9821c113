package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfo(t *testing.T) {
	saved := Version
	defer func() { Version = saved }()

	Version = "v1.2.3"
	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, GoVersion, info.GoVersion)
	assert.NotEmpty(t, info.Program)
	assert.Contains(t, BuildInfo(), "v1.2.3")
	assert.Equal(t, "usbboot v1 (abc 2025-01-01) go1.23", Info{
		Program:   "usbboot",
		Version:   "v1",
		Commit:    "abc",
		Date:      "2025-01-01",
		GoVersion: "go1.23",
	}.String())
}
