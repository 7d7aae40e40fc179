package reachctl

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the orchestrator settings. Values come from Default, then an
// optional YAML file, then REACH_* environment overrides.
type Config struct {
	ContainerName string `yaml:"container_name"`
	Image         string `yaml:"image"`
	UnitName      string `yaml:"unit_name"`

	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	ContainerPort int    `yaml:"container_port"`
	HealthPath    string `yaml:"health_path"`

	DataDir   string `yaml:"data_dir"`
	DataMount string `yaml:"data_mount"`

	BuildContext string `yaml:"build_context"`
	Dockerfile   string `yaml:"dockerfile"`

	SettingsFile string   `yaml:"settings_file"`
	ForwardEnv   []string `yaml:"forward_env"`
	DockerHost   string   `yaml:"docker_host"`

	// ContainerHealthCheck declares a runtime health check on the container,
	// which also enables the readiness poll after start
	ContainerHealthCheck bool `yaml:"container_healthcheck"`

	Native  NativeConfig  `yaml:"native"`
	Timings TimingsConfig `yaml:"timings"`
}

// NativeConfig describes the systemd unit of the native backend
type NativeConfig struct {
	ExecStart        string `yaml:"exec_start"`
	WorkingDirectory string `yaml:"working_directory"`
	User             string `yaml:"user"`
	UnitDir          string `yaml:"unit_dir"`
	UseSudo          *bool  `yaml:"use_sudo"`
}

// TimingsConfig holds every wait and poll budget
type TimingsConfig struct {
	NativeStopSettle  time.Duration `yaml:"native_stop_settle"`
	NativeStartSettle time.Duration `yaml:"native_start_settle"`
	ContainerStop     time.Duration `yaml:"container_stop"`
	PostStartAttempts int           `yaml:"post_start_attempts"`
	PostStartInterval time.Duration `yaml:"post_start_interval"`
	ReadinessAttempts int           `yaml:"readiness_attempts"`
	ReadinessInterval time.Duration `yaml:"readiness_interval"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		ContainerName:        DefaultContainerName,
		Image:                DefaultImage,
		UnitName:             DefaultUnitName,
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		HealthPath:           DefaultHealthPath,
		DataDir:              DefaultDataDir,
		DataMount:            DefaultDataMount,
		BuildContext:         DefaultBuildContext,
		Dockerfile:           DefaultDockerfile,
		SettingsFile:         DefaultSettingsFile,
		ForwardEnv:           append([]string(nil), DefaultForwardEnv...),
		ContainerHealthCheck: true,
		Native: NativeConfig{
			ExecStart: "/usr/local/bin/reach-server",
			UnitDir:   DefaultSystemdUnitDir,
		},
		Timings: TimingsConfig{
			NativeStopSettle:  DefaultNativeStopSettle,
			NativeStartSettle: DefaultNativeStartSettle,
			ContainerStop:     DefaultContainerStopTimeout,
			PostStartAttempts: PostStartPlan.Attempts,
			PostStartInterval: PostStartPlan.Interval,
			ReadinessAttempts: ReadinessPlan.Attempts,
			ReadinessInterval: ReadinessPlan.Interval,
		},
	}
}

// LoadConfig loads the YAML file at path over the defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays REACH_* environment variables. Invalid numbers are
// logged and ignored.
func (c *Config) ApplyEnv(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.ContainerName = envString("REACH_CONTAINER_NAME", c.ContainerName)
	c.Image = envString("REACH_IMAGE", c.Image)
	c.UnitName = envString("REACH_UNIT_NAME", c.UnitName)
	c.Host = envString("REACH_HOST", c.Host)
	c.Port = envInt(logger, "REACH_PORT", envInt(logger, "PORT", c.Port))
	c.DataDir = envString("REACH_DATA_DIR", c.DataDir)
	c.DataDir = c.dataDir()
	c.BuildContext = envString("REACH_BUILD_CONTEXT", c.BuildContext)
	c.DockerHost = envString("DOCKER_HOST", c.DockerHost)
}

// Validate checks the values the orchestrator cannot run without
func (c *Config) Validate() error {
	switch {
	case c.ContainerName == "":
		return fmt.Errorf("container_name is required")
	case c.Image == "":
		return fmt.Errorf("image is required")
	case c.UnitName == "":
		return fmt.Errorf("unit_name is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.ContainerPort < 0 || c.ContainerPort > 65535:
		return fmt.Errorf("container_port %d out of range", c.ContainerPort)
	}
	return c.Timings.validate()
}

func (t TimingsConfig) validate() error {
	switch {
	case t.NativeStopSettle <= 0:
		return fmt.Errorf("timings.native_stop_settle must be positive, got %s", t.NativeStopSettle)
	case t.NativeStartSettle <= 0:
		return fmt.Errorf("timings.native_start_settle must be positive, got %s", t.NativeStartSettle)
	case t.ContainerStop < 0:
		return fmt.Errorf("timings.container_stop must not be negative, got %s", t.ContainerStop)
	case t.PostStartAttempts < 1:
		return fmt.Errorf("timings.post_start_attempts must be at least 1, got %d", t.PostStartAttempts)
	case t.PostStartInterval <= 0:
		return fmt.Errorf("timings.post_start_interval must be positive, got %s", t.PostStartInterval)
	case t.ReadinessAttempts < 1:
		return fmt.Errorf("timings.readiness_attempts must be at least 1, got %d", t.ReadinessAttempts)
	case t.ReadinessInterval <= 0:
		return fmt.Errorf("timings.readiness_interval must be positive, got %s", t.ReadinessInterval)
	}
	return nil
}

// Endpoint returns where health checks are sent
func (c *Config) Endpoint() ServiceEndpoint {
	return ServiceEndpoint{Host: c.Host, Port: c.Port, HealthPath: c.HealthPath}
}

// dataDir returns DataDir as an absolute path. Docker bind sources and
// systemd working directories must be absolute.
func (c *Config) dataDir() string {
	if c.DataDir == "" || filepath.IsAbs(c.DataDir) {
		return c.DataDir
	}
	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return abs
}

// containerPort is the in-container listen port, defaulting to the host port
func (c *Config) containerPort() int {
	if c.ContainerPort > 0 {
		return c.ContainerPort
	}
	return c.Port
}

// ContainerEnv returns the KEY=VALUE list forwarded to the container. It is
// read from the current process environment, so the settings file must be
// loaded first. PORT always carries the in-container port.
func (c *Config) ContainerEnv() []string {
	env := make([]string, 0, len(c.ForwardEnv)+1)
	for _, key := range c.ForwardEnv {
		if key == "PORT" {
			continue
		}
		env = append(env, key+"="+os.Getenv(key))
	}
	return append(env, "PORT="+strconv.Itoa(c.containerPort()))
}

// ContainerSpec returns the container to create
func (c *Config) ContainerSpec() ContainerSpec {
	spec := ContainerSpec{
		Name:          c.ContainerName,
		Image:         c.Image,
		HostPort:      c.Port,
		ContainerPort: c.containerPort(),
		DataDir:       c.dataDir(),
		DataMount:     c.DataMount,
		Env:           c.ContainerEnv(),
	}
	if c.ContainerHealthCheck {
		spec.HealthCheck = &HealthCheckSpec{
			Test: []string{"CMD-SHELL", fmt.Sprintf("wget -qO- http://127.0.0.1:%d%s || exit 1",
				c.containerPort(), c.HealthPath)},
			Interval:    10 * time.Second,
			Timeout:     5 * time.Second,
			StartPeriod: 10 * time.Second,
			Retries:     3,
		}
	}
	return spec
}

// BuildSpec returns how the image is built
func (c *Config) BuildSpec() BuildSpec {
	return BuildSpec{Tag: c.Image, ContextDir: c.BuildContext, Dockerfile: c.Dockerfile}
}

// PollPlans returns the post-start and readiness budgets
func (c *Config) PollPlans() (PollPlan, PollPlan) {
	return PollPlan{Attempts: c.Timings.PostStartAttempts, Interval: c.Timings.PostStartInterval},
		PollPlan{Attempts: c.Timings.ReadinessAttempts, Interval: c.Timings.ReadinessInterval}
}

func envString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func envInt(logger *slog.Logger, key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn("ignoring invalid integer", "key", key, "value", value, "error", err)
		return fallback
	}
	return parsed
}
