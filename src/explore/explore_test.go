package explore

import (
	"context"
	"testing"
	"time"

	"github.com/lholznagel/carina/src/common"
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/net"
	"github.com/lholznagel/carina/src/node"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/lholznagel/carina/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNode(t *testing.T, conf *node.Config, keys *crypto.KeyPair, trans *net.InmemTransport) *node.Node {
	n := node.NewNode(conf, keys, peers.NewInmemDirectory(), store.NewInmemStore(), trans)
	require.NoError(t, n.Init())

	ctx, cancel := context.WithCancel(context.Background())
	n.RunAsync(ctx)
	t.Cleanup(func() {
		n.Shutdown()
		cancel()
	})

	return n
}

func TestExplore(t *testing.T) {
	hpKeys, _ := crypto.GenerateKeyPair()
	_, hpTrans := net.NewInmemTransport("")
	_, aTrans := net.NewInmemTransport("")
	_, bTrans := net.NewInmemTransport("")
	_, eTrans := net.NewInmemTransport("")
	net.ConnectMesh(hpTrans, aTrans, bTrans, eTrans)

	hpConf := node.TestConfig(t)
	hpConf.Role = node.RoleHolePuncher
	hpConf.GenesisThreshold = 0
	startNode(t, hpConf, hpKeys, hpTrans)

	peerConf := func() *node.Config {
		conf := node.TestConfig(t)
		conf.HolePuncherAddr = hpTrans.LocalAddr()
		conf.HolePuncherKey = hpKeys.PublicBase64()
		return conf
	}

	aKeys, _ := crypto.GenerateKeyPair()
	a := startNode(t, peerConf(), aKeys, aTrans)

	assert.Eventually(t, func() bool {
		return a.GetStats()["state"] == "Running"
	}, 2*time.Second, 10*time.Millisecond)

	bKeys, _ := crypto.GenerateKeyPair()
	b := startNode(t, peerConf(), bKeys, bTrans)

	assert.Eventually(t, func() bool {
		return len(a.GetPeers()) == 1 && len(b.GetPeers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	explorer := NewExplorer(eTrans, hpTrans.LocalAddr(), protocol.LegacyVersion, common.NewTestEntry(t, "explore"))

	report, err := explorer.Explore(context.Background(), 300*time.Millisecond)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{aTrans.LocalAddr(), bTrans.LocalAddr()}, report.Network)
	require.Len(t, report.Peers, 2)
	for _, p := range report.Peers {
		assert.True(t, p.Answered, p.Addr)
		assert.Empty(t, p.Missing, p.Addr)
	}
	assert.True(t, report.Complete())
}

func TestExploreWithoutHolePuncher(t *testing.T) {
	_, eTrans := net.NewInmemTransport("")
	_, silent := net.NewInmemTransport("")
	net.ConnectMesh(eTrans, silent)

	explorer := NewExplorer(eTrans, silent.LocalAddr(), protocol.LegacyVersion, common.NewTestEntry(t, "explore"))

	_, err := explorer.Explore(context.Background(), 100*time.Millisecond)
	assert.Equal(t, ErrNoAnswer, err)
}

func TestReportMissing(t *testing.T) {
	e := NewExplorer(nil, "hp", protocol.LegacyVersion, common.NewTestEntry(t, "explore"))
	e.views["a"] = []string{"b"}
	e.views["b"] = []string{}

	r := e.report([]string{"a", "b", "c"})

	require.Len(t, r.Peers, 3)
	assert.Equal(t, []string{"c"}, r.Peers[0].Missing)
	assert.Equal(t, []string{"a", "c"}, r.Peers[1].Missing)
	assert.False(t, r.Peers[2].Answered)
	assert.False(t, r.Complete())
}

func TestResolveTarget(t *testing.T) {
	logger := common.NewTestEntry(t, "explore")

	// answers come from the plain IPv4 form
	assert.Equal(t, "127.0.0.1:45000", resolveTarget("[::ffff:127.0.0.1]:45000", logger))
	assert.Equal(t, "127.0.0.1:45000", resolveTarget("127.0.0.1:45000", logger))

	_, inmem := net.NewInmemTransport("")
	assert.Equal(t, inmem.LocalAddr(), resolveTarget(inmem.LocalAddr(), logger))

	e := NewExplorer(inmem, "[::ffff:127.0.0.1]:50000", protocol.LegacyVersion, logger)
	assert.Equal(t, "127.0.0.1:50000", e.holePuncher)
}
