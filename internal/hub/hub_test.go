package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netviz/internal/domain"
)

// fakeChannel records envelopes and can be flipped to failing
type fakeChannel struct {
	sent []map[string]any
	fail bool
}

func (c *fakeChannel) Send(v any) error {
	if c.fail {
		return errors.New("connection closed")
	}
	c.sent = append(c.sent, v.(map[string]any))
	return nil
}

func TestConnectSendsConfirmation(t *testing.T) {
	h := New()
	ch := &fakeChannel{}

	h.Connect("s1", ch)

	require.Len(t, ch.sent, 1)
	assert.Equal(t, "connection_established", ch.sent[0]["type"])
	assert.Equal(t, "s1", ch.sent[0]["session_id"])
	assert.Equal(t, 1, h.SessionCount())
	assert.Equal(t, 1, h.ChannelCount())
}

func TestBroadcastReachesAllChannels(t *testing.T) {
	h := New()
	a := &fakeChannel{}
	b := &fakeChannel{}
	h.Connect("s1", a)
	h.Connect("s2", b)

	node := domain.NewNode("n1", "web-01", domain.NodeTypeHost)
	h.BroadcastGraphUpdate(domain.UpdateCreated, domain.EntityNode, node, "api")

	for _, ch := range []*fakeChannel{a, b} {
		require.Len(t, ch.sent, 2)
		env := ch.sent[1]
		assert.Equal(t, "graph_update", env["type"])
		assert.Equal(t, "created", env["update_type"])
		assert.Equal(t, "node", env["entity_type"])
		assert.Equal(t, "api", env["source"])
		assert.Same(t, node, env["entity_data"])
	}
}

func TestBroadcastDropsDeadChannels(t *testing.T) {
	h := New()
	alive := &fakeChannel{}
	dead := &fakeChannel{fail: true}
	h.Connect("s1", alive)
	h.Connect("s1", dead)
	require.Equal(t, 2, h.ChannelCount())

	h.BroadcastGraphUpdate(domain.UpdateUpdated, domain.EntityEdge, nil, "collector")

	assert.Equal(t, 1, h.ChannelCount())
	assert.Equal(t, 1, h.SessionCount(), "session survives while one channel remains")

	// Only the surviving channel gets later events
	h.BroadcastGraphUpdate(domain.UpdateUpdated, domain.EntityEdge, nil, "collector")
	assert.Len(t, alive.sent, 3)
}

func TestSessionGoneWithLastChannel(t *testing.T) {
	h := New()
	ch := &fakeChannel{}
	h.Connect("s1", ch)

	h.Disconnect("s1", ch)

	assert.Equal(t, 0, h.SessionCount())
	assert.Equal(t, 0, h.ChannelCount())
}

func TestPingPrunesFailedChannels(t *testing.T) {
	h := New()
	dead := &fakeChannel{fail: true}
	h.Connect("s1", dead)
	require.Equal(t, 1, h.ChannelCount())

	h.Ping()

	assert.Equal(t, 0, h.ChannelCount())
	assert.Equal(t, 0, h.SessionCount())
}

func TestSendGraphState(t *testing.T) {
	h := New()
	ch := &fakeChannel{}

	graph := domain.NewGraph()
	graph.Nodes["n1"] = domain.NewNode("n1", "web-01", domain.NodeTypeHost)

	require.NoError(t, h.SendGraphState(ch, graph))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "graph_state", ch.sent[0]["type"])
	assert.Same(t, graph, ch.sent[0]["data"])
}
