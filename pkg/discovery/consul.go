package discovery

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/config"
)

// Agent is the part of the Consul agent API the registry uses.
type Agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

type ServiceRegistry struct {
	agent  Agent
	server config.ServerConfig
	log    *zap.Logger
}

func NewServiceRegistry(cfg config.ConsulConfig, server config.ServerConfig, log *zap.Logger) (*ServiceRegistry, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Address

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}
	return newRegistry(client.Agent(), server, log), nil
}

func newRegistry(agent Agent, server config.ServerConfig, log *zap.Logger) *ServiceRegistry {
	return &ServiceRegistry{agent: agent, server: server, log: log}
}

// Registration describes this instance with an HTTP health check.
func (sr *ServiceRegistry) Registration() (*api.AgentServiceRegistration, error) {
	httpPort, err := strconv.Atoi(sr.server.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", sr.server.Port, err)
	}
	return &api.AgentServiceRegistration{
		ID:      sr.server.ServiceID() + "-http",
		Name:    sr.server.ServiceName,
		Port:    httpPort,
		Address: sr.server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.server.ServiceAddress, sr.server.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"staff", "http"},
		Meta: map[string]string{
			"protocol": "http",
		},
	}, nil
}

func (sr *ServiceRegistry) Register() error {
	registration, err := sr.Registration()
	if err != nil {
		return err
	}
	if err := sr.agent.ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register HTTP service with Consul: %w", err)
	}
	sr.log.Info("Registered service with Consul", zap.String("id", registration.ID))
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.agent.ServiceDeregister(sr.server.ServiceID() + "-http"); err != nil {
		return fmt.Errorf("failed to deregister HTTP service: %w", err)
	}
	return nil
}
