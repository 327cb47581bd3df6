package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoadAvg(t *testing.T) {
	v := parseLoadAvg("0.52 0.58 0.59 1/257 12345\n")
	require.NotNil(t, v)
	assert.Equal(t, 0.52, *v)

	assert.Nil(t, parseLoadAvg(""))
	assert.Nil(t, parseLoadAvg("garbage"))
}

func TestParseUptime(t *testing.T) {
	v := parseUptime("350735.47 234388.90\n")
	require.NotNil(t, v)
	assert.Equal(t, 350735.47, *v)
}

func TestParseFree(t *testing.T) {
	out := `              total        used        free      shared  buff/cache   available
Mem:           7961        3180         512         101        4268        4397
Swap:          2047           0        2047
`
	total, used, usage := parseFree(out)
	require.NotNil(t, total)
	require.NotNil(t, used)
	require.NotNil(t, usage)
	assert.Equal(t, 7961.0, *total)
	assert.Equal(t, 3180.0, *used)
	assert.InDelta(t, 39.94, *usage, 0.01)

	total, used, usage = parseFree("no mem row here")
	assert.Nil(t, total)
	assert.Nil(t, used)
	assert.Nil(t, usage)
}

func TestParseDiskUsage(t *testing.T) {
	out := `Filesystem     1024-blocks      Used Available Capacity Mounted on
/dev/sda2        479079112 123456789 331234567      28% /
`
	v := parseDiskUsage(out)
	require.NotNil(t, v)
	assert.Equal(t, 28.0, *v)

	assert.Nil(t, parseDiskUsage("header only"))
}

func TestParseDockerPS(t *testing.T) {
	out := "frr-router\tabc123\tUp 3 hours\nclient\tdef456\tExited (0) 2 hours ago\n\n"
	containers := parseDockerPS(out)
	require.Len(t, containers, 2)
	assert.Equal(t, "frr-router", containers[0].Name)
	assert.Equal(t, "abc123", containers[0].ContainerID)
	assert.Equal(t, "Up 3 hours", containers[0].Status)
	assert.Equal(t, "Exited (0) 2 hours ago", containers[1].Status)

	assert.Empty(t, parseDockerPS(""))
	assert.Empty(t, parseDockerPS("malformed line without tabs"))
}

func TestSSHRequiresConfig(t *testing.T) {
	_, err := NewSSH(SSHOptions{}).FetchMetrics(context.Background())
	require.Error(t, err, "no hosts configured")

	_, err = NewSSH(SSHOptions{Hosts: []string{"10.0.0.1"}}).FetchMetrics(context.Background())
	require.Error(t, err, "no user configured")

	_, err = NewSSH(SSHOptions{Hosts: []string{"10.0.0.1"}, User: "probe"}).FetchMetrics(context.Background())
	require.Error(t, err, "no credentials configured")
}
