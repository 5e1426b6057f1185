package launchd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlist(t *testing.T) {
	data, err := BuildPlist(InstallOptions{
		ProgramPath: "/opt/bin/notifeeder",
		Interval:    30 * time.Minute,
		LogPath:     "/tmp/logs & more/daemon.log",
	})
	require.NoError(t, err)
	s := string(data)

	assert.Contains(t, s, "<string>"+DefaultLabel+"</string>")
	assert.Contains(t, s, "<string>/opt/bin/notifeeder</string>\n      <string>daemon</string>\n      <string>--once</string>")
	assert.Contains(t, s, "<integer>1800</integer>")
	assert.Contains(t, s, "/tmp/logs &amp; more/daemon.log")
	assert.NotContains(t, s, "KeepAlive")

	got, err := ExtractStartInterval(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, got)
}

func TestBuildPlistDefaults(t *testing.T) {
	_, err := BuildPlist(InstallOptions{})
	assert.Error(t, err)

	data, err := BuildPlist(InstallOptions{ProgramPath: "/bin/n", Interval: time.Second, LogPath: "/tmp/x.log"})
	require.NoError(t, err)
	got, err := ExtractStartInterval(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, got, "sub-minute intervals fall back to the default")
}

func TestExtractStartIntervalMissing(t *testing.T) {
	_, err := ExtractStartInterval(strings.NewReader(`<plist><dict><key>Label</key><string>x</string></dict></plist>`))
	assert.Error(t, err)

	_, err = ExtractStartInterval(strings.NewReader(`<plist><dict><key>StartInterval</key><integer>soon</integer></dict></plist>`))
	assert.Error(t, err)
}
