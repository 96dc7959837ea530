package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lholznagel/carina/src/block"
	"github.com/lholznagel/carina/src/common"
	"github.com/lholznagel/carina/src/crypto"
	"github.com/lholznagel/carina/src/net"
	"github.com/lholznagel/carina/src/node"
	"github.com/lholznagel/carina/src/peers"
	"github.com/lholznagel/carina/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	blocks := store.NewInmemStore()
	require.NoError(t, blocks.Persist(block.Genesis()))

	directory := peers.NewInmemDirectory(peers.NewPeer("10.0.0.1:45000", keys.PublicBase64(), "alice"))

	_, trans := net.NewInmemTransport("")

	n := node.NewNode(node.TestConfig(t), keys, directory, blocks, trans)
	require.NoError(t, n.Init())

	return NewService("", n, common.NewTestEntry(t, "service"))
}

func get(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetStats(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	stats := map[string]string{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, "1", stats["num_peers"])
	assert.Equal(t, "1", stats["blocks"])
	assert.Equal(t, "true", stats["finalized"])
}

func TestGetBlock(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/block/0")
	require.Equal(t, http.StatusOK, rec.Code)

	b := block.Block{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.Equal(t, block.Genesis().Hash, b.Hash)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/block/3").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/block/abc").Code)
}

func TestGetPeers(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/peers")
	require.Equal(t, http.StatusOK, rec.Code)

	res := []*peers.Peer{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res, 1)
	assert.Equal(t, "10.0.0.1:45000", res[0].NetAddr)
	assert.Equal(t, "alice", res[0].Moniker)
}

func TestMetrics(t *testing.T) {
	s := newTestService(t)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "carina_known_peers 1"))
}
