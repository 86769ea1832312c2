package eureka

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEureka struct {
	mu            sync.Mutex
	registrations []Instance
	heartbeats    int
	deletes       []string
	registerCodes []int
	heartbeatCode int
}

func (f *fakeEureka) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var env instanceEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.registrations = append(f.registrations, env.Instance)
		code := http.StatusNoContent
		if len(f.registerCodes) > 0 {
			code, f.registerCodes = f.registerCodes[0], f.registerCodes[1:]
		}
		w.WriteHeader(code)
	case http.MethodPut:
		f.heartbeats++
		code := http.StatusOK
		if f.heartbeatCode != 0 {
			code, f.heartbeatCode = f.heartbeatCode, 0
		}
		w.WriteHeader(code)
	case http.MethodDelete:
		f.deletes = append(f.deletes, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeEureka) Registrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registrations)
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

func testDescriptor() *domain.InstanceDescriptor {
	d := domain.NewInstanceDescriptor("microscope", "node-1", "10.0.0.5")
	d.Port = 8080
	d.PreferIPAddress = true
	d.StatusPageURL = "http://10.0.0.5:8080/info"
	d.HealthCheckURL = "http://10.0.0.5:8080/health"
	d.Metadata["management.port"] = "8080"
	return d
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBackOff(zeroBackOff)}, opts...)
	c, err := NewClient(url, http.DefaultClient, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Register(t *testing.T) {
	fake := &fakeEureka{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/eureka/")
	require.NoError(t, c.Register(context.Background(), testDescriptor()))
	defer c.Shutdown(context.Background())

	require.Equal(t, 1, fake.Registrations())
	got := fake.registrations[0]
	assert.Equal(t, "MICROSCOPE", got.App)
	assert.Equal(t, "10.0.0.5", got.HostName)
	assert.Equal(t, "node-1:microscope:8080", got.InstanceID)
	assert.Equal(t, Port{Port: 8080, Enabled: "true"}, got.Port)
	assert.Equal(t, defaultDataCenterClass, got.DataCenterInfo.Class)
	assert.Equal(t, "8080", got.Metadata["management.port"])
	assert.Equal(t, "node-1:microscope:8080", c.InstanceID())
}

func TestClient_RegisterRetriesServerErrors(t *testing.T) {
	fake := &fakeEureka{registerCodes: []int{http.StatusServiceUnavailable, http.StatusNoContent}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Register(context.Background(), testDescriptor()))
	defer c.Shutdown(context.Background())

	assert.Equal(t, 2, fake.Registrations())
}

func TestClient_RegisterClientErrorIsPermanent(t *testing.T) {
	fake := &fakeEureka{registerCodes: []int{http.StatusBadRequest}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	err := newTestClient(t, srv.URL).Register(context.Background(), testDescriptor())

	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, 1, fake.Registrations())
}

func TestClient_RegisterFailsOver(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	fake := &fakeEureka{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, downURL+","+srv.URL)
	require.NoError(t, c.Register(context.Background(), testDescriptor()))
	defer c.Shutdown(context.Background())

	assert.Equal(t, 1, fake.Registrations())
}

func TestClient_HeartbeatNotFoundReregisters(t *testing.T) {
	fake := &fakeEureka{heartbeatCode: http.StatusNotFound}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithRenewalInterval(10*time.Millisecond))
	require.NoError(t, c.Register(context.Background(), testDescriptor()))
	defer c.Shutdown(context.Background())

	assert.Eventually(t, func() bool {
		return fake.Registrations() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestClient_ShutdownDeregisters(t *testing.T) {
	fake := &fakeEureka{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Register(context.Background(), testDescriptor()))

	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))

	require.Len(t, fake.deletes, 1)
	assert.Equal(t, "/apps/MICROSCOPE/node-1:microscope:8080", fake.deletes[0])
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(" , ", nil)

	assert.Error(t, err)
}

func TestClient_RegisterTwice(t *testing.T) {
	srv := httptest.NewServer(&fakeEureka{})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Register(context.Background(), testDescriptor()))
	defer c.Shutdown(context.Background())

	err := c.Register(context.Background(), testDescriptor())
	assert.True(t, strings.Contains(err.Error(), "already registered"))
}
