// Package config loads workshop configuration from defaults, an optional YAML
// file, an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Sales tool modes for the sales analyst agent.
const (
	SalesToolOpenAPI  = "openapi"
	SalesToolFunction = "function"
)

// Config is the complete workshop configuration.
type Config struct {
	Project     ProjectConfig     `koanf:"project"`
	FunctionApp FunctionAppConfig `koanf:"function_app"`
	Bing        BingConfig        `koanf:"bing"`
	Database    DatabaseConfig    `koanf:"database"`
	Server      ServerConfig      `koanf:"server"`
	Agents      AgentsConfig      `koanf:"agents"`
	Log         LogConfig         `koanf:"log"`
}

// ProjectConfig locates the hosted agent project.
type ProjectConfig struct {
	Endpoint            string        `koanf:"endpoint"`
	APIKey              string        `koanf:"api_key"`
	APIVersion          string        `koanf:"api_version"`
	ModelDeploymentName string        `koanf:"model_deployment_name"`
	MaxRetries          int           `koanf:"max_retries"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
}

// FunctionAppConfig points at the deployed sales query API.
type FunctionAppConfig struct {
	Endpoint string `koanf:"endpoint"`
}

// BingConfig holds the optional Bing grounding connection.
type BingConfig struct {
	ConnectionID string `koanf:"connection_id"`
}

// DatabaseConfig locates the sales database.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	SampleDir string `koanf:"sample_dir"`
	ReadOnly  bool   `koanf:"read_only"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host         string   `koanf:"host"`
	Port         int      `koanf:"port"`
	PublicURL    string   `koanf:"public_url"`
	AllowOrigins []string `koanf:"allow_origins"`
	// APIPort is where the orchestrator API listens.
	APIPort    int           `koanf:"api_port"`
	SessionTTL time.Duration `koanf:"session_ttl"`
}

// AgentsConfig tunes agent provisioning and task execution.
type AgentsConfig struct {
	InstructionsDir string        `koanf:"instructions_dir"`
	DatasheetPath   string        `koanf:"datasheet_path"`
	SalesTool       string        `koanf:"sales_tool"`
	TaskTimeout     time.Duration `koanf:"task_timeout"`
	PollInterval    time.Duration `koanf:"poll_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// ErrMissingEndpoint is returned when a required endpoint is not configured.
var ErrMissingEndpoint = errors.New("endpoint is not configured")

// envKeys maps the workshop environment variable names onto config keys.
var envKeys = map[string]string{
	"PROJECT_ENDPOINT":         "project.endpoint",
	"PROJECT_API_KEY":          "project.api_key",
	"PROJECT_API_VERSION":      "project.api_version",
	"MODEL_DEPLOYMENT_NAME":    "project.model_deployment_name",
	"FUNCTION_APP_ENDPOINT":    "function_app.endpoint",
	"AZURE_BING_CONNECTION_ID": "bing.connection_id",
	"SALES_DB_PATH":            "database.path",
	"SALES_DB_READ_ONLY":       "database.read_only",
	"INSTRUCTIONS_DIR":         "agents.instructions_dir",
	"DATASHEET_PATH":           "agents.datasheet_path",
	"SALES_TOOL":               "agents.sales_tool",
	"PUBLIC_URL":               "server.public_url",
	"API_PORT":                 "server.api_port",
	"LOG_LEVEL":                "log.level",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"project.api_version":     "v1",
		"project.max_retries":     2,
		"project.request_timeout": "60s",
		"database.path":           "contoso-sales.db",
		"database.sample_dir":     os.TempDir(),
		"database.read_only":      false,
		"server.host":             "127.0.0.1",
		"server.port":             7071,
		"server.api_port":         8000,
		"server.session_ttl":      "1h",
		"agents.datasheet_path":   "datasheet/contoso-tents-datasheet.pdf",
		"agents.sales_tool":       SalesToolOpenAPI,
		"agents.task_timeout":     "5m",
		"agents.poll_interval":    "1s",
		"log.level":               "info",
	}
}

// Options selects the optional configuration sources.
type Options struct {
	// File is an optional YAML file. Missing files are an error.
	File string
	// DotEnv is an optional .env file. Missing files are ignored.
	DotEnv string
}

// Load builds the configuration from all sources.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", opts.File, err)
		}
	}

	if opts.DotEnv != "" {
		if err := loadDotEnv(k, opts.DotEnv); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// envKey maps an environment variable to its config key. Unknown variables
// map to the empty string, which the env provider skips.
func envKey(name string) string {
	return envKeys[name]
}

func loadDotEnv(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	ek := koanf.New(".")
	if err := ek.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return fmt.Errorf("failed to load .env from %q: %w", path, err)
	}

	values := make(map[string]interface{})
	for name, value := range ek.All() {
		if key := envKey(strings.ToUpper(name)); key != "" {
			values[key] = value
		}
	}
	if len(values) == 0 {
		return nil
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("failed to apply .env from %q: %w", path, err)
	}
	return nil
}

// Address returns host:port for the HTTP listeners.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns the public URL of the server, falling back to the listen
// address.
func (c ServerConfig) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	return "http://" + c.Address()
}

// ValidateAgents checks the settings needed to provision hosted agents.
func (c *Config) ValidateAgents() error {
	var errs []error
	if c.Project.Endpoint == "" {
		errs = append(errs, fmt.Errorf("project %w (set PROJECT_ENDPOINT)", ErrMissingEndpoint))
	}
	if c.Project.ModelDeploymentName == "" {
		errs = append(errs, errors.New("model deployment name is not configured (set MODEL_DEPLOYMENT_NAME)"))
	}
	switch c.Agents.SalesTool {
	case SalesToolOpenAPI:
		if c.FunctionApp.Endpoint == "" {
			errs = append(errs, fmt.Errorf("function app %w (set FUNCTION_APP_ENDPOINT)", ErrMissingEndpoint))
		}
	case SalesToolFunction:
	default:
		errs = append(errs, fmt.Errorf("unknown sales tool mode %q", c.Agents.SalesTool))
	}
	if c.Agents.TaskTimeout <= 0 {
		errs = append(errs, errors.New("task timeout must be positive"))
	}
	if c.Agents.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the HTTP listener settings.
func (c *Config) ValidateServer() error {
	for _, port := range []int{c.Server.Port, c.Server.APIPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %d", port)
		}
	}
	return nil
}
