package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingServer(t *testing.T, status int) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte("upgrades armed"))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func TestClient_Upgrade(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK)
	c := NewClient(srv.URL+"/", nil)

	require.NoError(t, c.Upgrade(context.Background(), BaseReserve(0)))
	require.NoError(t, c.Upgrade(context.Background(), ProtocolVersion(9)))

	assert.Equal(t, []string{
		"GET /upgrades?mode=set&upgradetime=1970-01-01T00%3A00%3A00Z&basereserve=0",
		"GET /upgrades?mode=set&upgradetime=1970-01-01T00%3A00%3A00Z&protocolversion=9",
	}, seen())
}

func TestClient_UpgradeIgnoresStatus(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusInternalServerError)

	require.NoError(t, NewClient(srv.URL, nil).Upgrade(context.Background(), BaseReserve(0)))
	assert.Len(t, seen(), 1)
}

func TestClient_UpgradeTransportError(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK)
	srv.Close()

	err := NewClient(srv.URL, nil).Upgrade(context.Background(), BaseReserve(0))
	assert.Error(t, err)
}

func TestClient_InvalidUpgrade(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK)
	c := NewClient(srv.URL, nil)

	assert.Error(t, c.Upgrade(context.Background(), Upgrade{}))
	v := 1
	assert.Error(t, c.Upgrade(context.Background(), Upgrade{BaseReserve: &v, ProtocolVersion: &v}))
	assert.Empty(t, seen())
}

func TestUpgradeString(t *testing.T) {
	assert.Equal(t, "basereserve=0", BaseReserve(0).String())
	assert.Equal(t, "protocolversion=9", ProtocolVersion(9).String())
}
