package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QianrenLi/stream-replay/internal/config"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseManifestAcceptsValidManifest(t *testing.T) {
	path := writeManifest(t, `{
		"streams": [{"name": "cam0", "links": [{"tx_ipaddr": "10.0.0.1", "rx_ipaddr": "10.0.0.2"}], "source": "stream://cam0", "duration": [0, 10]}],
		"window_size": 8,
		"tx_ipaddrs": ["10.0.0.1"]
	}`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	manifest, err := config.ParseManifest(data)
	require.NoError(t, err)
	require.Len(t, manifest.Streams, 1)
}

func TestParseManifestRejectsMissingSource(t *testing.T) {
	path := writeManifest(t, `{
		"streams": [{"name": "cam0", "links": [{"tx_ipaddr": "10.0.0.1", "rx_ipaddr": "10.0.0.2"}], "duration": [0, 10]}],
		"window_size": 8
	}`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = config.ParseManifest(data)
	require.Error(t, err)
}

func TestOrDefault(t *testing.T) {
	require.Equal(t, "hard_threshold", orDefault("", "hard_threshold"))
	require.Equal(t, "queue_aware", orDefault("queue_aware", "hard_threshold"))
}
