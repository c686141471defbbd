package discovery

import (
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/config"
)

type fakeAgent struct {
	registered map[string]*api.AgentServiceRegistration
}

func (f *fakeAgent) ServiceRegister(s *api.AgentServiceRegistration) error {
	f.registered[s.ID] = s
	return nil
}

func (f *fakeAgent) ServiceDeregister(id string) error {
	delete(f.registered, id)
	return nil
}

var server = config.ServerConfig{Port: "3000", ServiceName: "staff-service", ServiceAddress: "staff", Hostname: "a1"}

func TestServiceRegistry_RegisterDeregister(t *testing.T) {
	agent := &fakeAgent{registered: map[string]*api.AgentServiceRegistration{}}
	sr := newRegistry(agent, server, zap.NewNop())

	require.NoError(t, sr.Register())
	reg, ok := agent.registered["staff-service-a1-http"]
	require.True(t, ok)
	assert.Equal(t, 3000, reg.Port)
	assert.Equal(t, "http://staff:3000/health", reg.Check.HTTP)

	require.NoError(t, sr.Deregister())
	assert.Empty(t, agent.registered)
}

func TestServiceRegistry_BadPort(t *testing.T) {
	bad := server
	bad.Port = "http"
	sr := newRegistry(&fakeAgent{registered: map[string]*api.AgentServiceRegistration{}}, bad, zap.NewNop())
	assert.Error(t, sr.Register())
}
