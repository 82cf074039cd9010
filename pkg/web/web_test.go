package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gossipmember"
	"github.com/atlassian/gossipmember/internal/fixtures"
	"github.com/atlassian/gossipmember/pkg/cluster/nodes"
	"github.com/atlassian/gossipmember/pkg/engine"
	"github.com/atlassian/gossipmember/pkg/web"
)

type fakeMember struct {
	state   engine.State
	members []gossipmember.Entry
}

func (fm *fakeMember) Self() gossipmember.Address    { return gossipmember.Address{ID: 1} }
func (fm *fakeMember) State() engine.State           { return fm.state }
func (fm *fakeMember) Heartbeat() int64              { return 12 }
func (fm *fakeMember) Members() []gossipmember.Entry { return fm.members }

func serve(t *testing.T, hs *web.HttpServer, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	hs.Router.ServeHTTP(rec, req)
	return rec
}

func TestMembership(t *testing.T) {
	t.Parallel()
	member := &fakeMember{
		state: engine.Active,
		members: []gossipmember.Entry{
			{Address: gossipmember.Address{ID: 2, Port: 7}, Heartbeat: 4, LastRefreshed: 9},
		},
	}
	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), member, nil, nil, "127.0.0.1:0")
	require.NoError(t, err)

	rec := serve(t, hs, "/membership")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("content-type"))

	var body map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1:0", body["self"])
	assert.Equal(t, "ACTIVE", body["state"])
	assert.EqualValues(t, 12, body["heartbeat"])
	require.Len(t, body["members"], 1)
	assert.Equal(t, map[string]interface{}{
		"id":             float64(2),
		"port":           float64(7),
		"heartbeat":      float64(4),
		"last_refreshed": float64(9),
	}, body["members"].([]interface{})[0])
}

func TestMembershipEmptyRendersArray(t *testing.T) {
	t.Parallel()
	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &fakeMember{state: engine.Joining}, nil, nil, "127.0.0.1:0")
	require.NoError(t, err)

	rec := serve(t, hs, "/membership")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"members":[]`)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state    engine.State
		expected int
	}{
		{engine.Created, http.StatusServiceUnavailable},
		{engine.Joining, http.StatusServiceUnavailable},
		{engine.Active, http.StatusOK},
		{engine.Stopped, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.state.String(), func(t *testing.T) {
			t.Parallel()
			hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &fakeMember{state: tt.state}, nil, nil, "127.0.0.1:0")
			require.NoError(t, err)

			rec := serve(t, hs, "/healthcheck")
			require.Equal(t, tt.expected, rec.Code)
			assert.JSONEq(t, `{"state":"`+tt.state.String()+`"}`, rec.Body.String())
		})
	}
}

func TestOwner(t *testing.T) {
	t.Parallel()
	picker := nodes.NewConsistentNodePicker("1:0", nodes.DefaultReplicas)
	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &fakeMember{state: engine.Active}, picker, nil, "127.0.0.1:0")
	require.NoError(t, err)

	rec := serve(t, hs, "/owner/abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"abc","node":"1:0","self":true}`, rec.Body.String())

	picker.Remove("1:0")
	rec = serve(t, hs, "/owner/abc")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOptionalRoutes(t *testing.T) {
	t.Parallel()
	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &fakeMember{}, nil, nil, "127.0.0.1:0")
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, serve(t, hs, "/owner/abc").Code)
	require.Equal(t, http.StatusNotFound, serve(t, hs, "/metrics").Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "Test counter."})
	reg.MustRegister(c)
	c.Inc()

	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &fakeMember{}, nil, reg, "127.0.0.1:0")
	require.NoError(t, err)

	rec := serve(t, hs, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

func TestNewHttpServerFromViperDisabled(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set(gossipmember.ParamWebAddr, "")
	hs, err := web.NewHttpServerFromViper(v, fixtures.NewTestLogger(t), &fakeMember{}, nil, nil)
	require.NoError(t, err)
	require.Nil(t, hs)
}

func TestHttpServerShutsdown(t *testing.T) {
	t.Parallel()
	testCtx, completed := context.WithTimeout(context.Background(), 10*time.Second)
	defer completed()

	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &fakeMember{}, nil, nil, "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testCtx)
	chDone := make(chan struct{}, 1)
	go func() {
		hs.Run(ctx)
		chDone <- struct{}{}
	}()

	cancel()
	select {
	case <-testCtx.Done():
		require.Fail(t, "server did not stop")
	case <-chDone:
	}
}
