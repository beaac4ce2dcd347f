package loadrun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/users-api/internal/http/api"
	"github.com/aanand-mishra/users-api/internal/storage/memory"
	"github.com/aanand-mishra/users-api/internal/types"
)

func newTestAPI(t *testing.T) (*httptest.Server, *memory.Memory) {
	t.Helper()
	store := memory.New()
	srv := httptest.NewServer(api.NewHandler(store, prometheus.NewRegistry(), ""))
	t.Cleanup(srv.Close)
	return srv, store
}

func TestClient_CRUD(t *testing.T) {
	srv, _ := newTestAPI(t)
	sink := NewSink()
	c := NewClient(srv.URL+"/", time.Second, sink)
	ctx := context.Background()

	users, resp := c.ListUsers(ctx, TagList)
	require.True(t, resp.OK(http.StatusOK), resp.Err)
	assert.Len(t, users, 3)

	u, resp := c.GetUser(ctx, TagGet, 2)
	require.True(t, resp.OK(http.StatusOK))
	assert.Equal(t, memory.Seed[1], u)

	created, resp := c.CreateUser(ctx, TagCreate, "X", "x@y.com")
	require.True(t, resp.OK(http.StatusCreated))
	assert.Equal(t, types.User{ID: 4, Name: "X", Email: "x@y.com"}, created)

	name := "Y"
	updated, resp := c.UpdateUser(ctx, TagUpdate, 4, types.UserPatch{Name: &name})
	require.True(t, resp.OK(http.StatusOK))
	assert.Equal(t, types.User{ID: 4, Name: "Y", Email: "x@y.com"}, updated)

	resp = c.DeleteUser(ctx, TagDelete, 4)
	assert.True(t, resp.OK(http.StatusOK))

	_, resp = c.GetUser(ctx, TagGet, 4)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.NoError(t, resp.Err)

	snap := sink.Snapshot()
	assert.Equal(t, 6, snap.Trends[""].Count)
	assert.Equal(t, 2, snap.Trends[TagGet].Count)
	assert.Equal(t, int64(1), snap.Failed[TagGet].Passes, "404 counts as a failed request")
	assert.Equal(t, int64(0), snap.Failed[TagCreate].Passes)
}

func TestClient_TransportErrorRecorded(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sink := NewSink()
	c := NewClient(url, time.Second, sink)

	_, resp := c.ListUsers(context.Background(), TagList)
	assert.Error(t, resp.Err)
	assert.False(t, resp.OK(http.StatusOK))

	snap := sink.Snapshot()
	assert.Equal(t, RateStats{Passes: 1, Fails: 0, Rate: 1}, snap.Failed[TagList])
}

func TestClient_CanceledNotRecorded(t *testing.T) {
	srv, _ := newTestAPI(t)
	sink := NewSink()
	c := NewClient(srv.URL, time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, resp := c.ListUsers(ctx, TagList)
	assert.ErrorIs(t, resp.Err, context.Canceled)
	assert.Zero(t, sink.Snapshot().Trends[""].Count)
}
