package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Consul    ConsulConfig
	MinIO     MinIOConfig
	Google    GoogleConfig
	Auth      AuthConfig
	Jira      JiraConfig
	Log       LogConfig
	Company   CompanyConfig
	SkillTree SkillTreeConfig
	DbProcess DbProcessConfig
	Socket    SocketConfig
}

type ServerConfig struct {
	Port           string        `env:"PORT" env-default:"3000"`
	Host           string        `env:"HOST" env-default:"0.0.0.0"`
	ServiceName    string        `env:"STAFF_SERVICE_NAME" env-default:"staff-service"`
	ServiceAddress string        `env:"STAFF_SERVICE_ADDRESS" env-default:"staff-service"`
	Hostname       string        `env:"HOSTNAME" env-default:"staff"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" env-default:"15s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" env-default:"15s"`
}

// ServiceID identifies this instance in service discovery.
func (s ServerConfig) ServiceID() string {
	return s.ServiceName + "-" + s.Hostname
}

type MongoDBConfig struct {
	URI            string        `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database       string        `env:"STAFF_SERVICE_MONGO_DB" env-default:"staff"`
	MaxPoolSize    uint64        `env:"MONGO_MAX_POOL_SIZE" env-default:"100"`
	MinPoolSize    uint64        `env:"MONGO_MIN_POOL_SIZE" env-default:"10"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" env-default:"30s"`
}

type RedisConfig struct {
	Address           string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password          string        `env:"REDIS_PWD"`
	DB                int           `env:"REDIS_DB" env-default:"0"`
	SessionTTL        time.Duration `env:"SESSION_TTL" env-default:"720h"`
	ConstantsCacheTTL time.Duration `env:"CONSTANTS_CACHE_TTL" env-default:"5m"`
}

type RabbitMQConfig struct {
	URI      string `env:"RABBITMQ_URI"`
	Exchange string `env:"RABBITMQ_EXCHANGE" env-default:"staff.events"`
}

type ConsulConfig struct {
	Address string `env:"CONSUL_ADDRESS" env-default:"consul:8500"`
	Enabled bool   `env:"CONSUL_ENABLED" env-default:"false"`
}

type MinIOConfig struct {
	Endpoint        string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `env:"MINIO_ACCESS_KEY"`
	SecretAccessKey string `env:"MINIO_SECRET_KEY"`
	Bucket          string `env:"MINIO_BUCKET" env-default:"staff"`
	Region          string `env:"MINIO_REGION" env-default:"us-east-1"`
	UseSSL          bool   `env:"MINIO_USE_SSL" env-default:"false"`
	// PublicURL prefixes object names in returned file URLs.
	PublicURL string `env:"MINIO_PUBLIC_URL" env-default:"http://localhost:9000"`
}

type GoogleConfig struct {
	ClientID         string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret     string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL      string `env:"GOOGLE_REDIRECT_URL"`
	LocalRedirectURL string `env:"GOOGLE_LOCAL_REDIRECT_URL" env-default:"http://localhost:4200/auth/callback"`
}

type AuthConfig struct {
	JWTSecret  string `env:"JWT_SECRET" env-default:"change-me"`
	CookieName string `env:"AUTH_COOKIE_NAME" env-default:"staff_session"`
	// ServiceOriginsRaw has the form "name=url,name=url".
	ServiceOriginsRaw string `env:"SERVICE_ORIGINS" env-default:"staffPortal=http://localhost:4200,my=http://localhost:4300"`

	ServiceOrigins map[string]string
}

type JiraConfig struct {
	Host     string `env:"JIRA_HOST"`
	Username string `env:"JIRA_USERNAME"`
	Password string `env:"JIRA_PASSWORD"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
	Dir   string `env:"LOG_DIR"`
	Env   string `env:"APP_ENV" env-default:"production"`
}

type CompanyConfig struct {
	EmailDomain string `env:"COMPANY_EMAIL_DOMAIN" env-default:"itrexgroup.com"`
}

type SkillTreeConfig struct {
	DedupeRootsByName  bool `env:"SKILLTREE_DEDUPE_ROOTS_BY_NAME" env-default:"true"`
	MergeParentsByName bool `env:"SKILLTREE_MERGE_PARENTS_BY_NAME" env-default:"true"`
	RateRoots          bool `env:"SKILLTREE_RATE_ROOTS" env-default:"false"`
}

type DbProcessConfig struct {
	RunOnStart bool `env:"DB_PROCESS_RUN_ON_START" env-default:"true"`
}

type SocketConfig struct {
	Enabled bool   `env:"SOCKETS_ENABLED" env-default:"false"`
	REST    bool   `env:"SOCKETS_REST" env-default:"false"`
	Port    string `env:"SOCKETS_PORT" env-default:"3001"`
	Path    string `env:"SOCKETS_PATH" env-default:"/socket"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.Auth.ServiceOrigins = ParseServiceOrigins(cfg.Auth.ServiceOriginsRaw)
	return cfg, nil
}

// ParseServiceOrigins parses "name=url,name=url" into a map keyed by name.
func ParseServiceOrigins(value string) map[string]string {
	out := make(map[string]string)
	if value == "" {
		return out
	}
	for _, pair := range strings.Split(value, ",") {
		name, origin, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimRight(strings.TrimSpace(origin), "/")
	}
	return out
}

// ServiceForOrigin returns the service name registered for origin.
func (a AuthConfig) ServiceForOrigin(origin string) (string, bool) {
	origin = strings.TrimRight(origin, "/")
	for name, o := range a.ServiceOrigins {
		if o == origin {
			return name, true
		}
	}
	return "", false
}
