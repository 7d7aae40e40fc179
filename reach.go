package reachctl

import "time"

// Reserved names and default locations
const (
	// DefaultContainerName is the reserved name of the service container
	DefaultContainerName = "reach-server"

	// DefaultImage is the repository:tag the container runs
	DefaultImage = "reach-server:latest"

	// DefaultUnitName is the systemd unit of the native service (without .service)
	DefaultUnitName = "reach-server"

	// DefaultPort is the single externally visible service port
	DefaultPort = 8765

	// DefaultHost is the address health checks are sent to
	DefaultHost = "127.0.0.1"

	// DefaultHealthPath is the liveness endpoint of the service
	DefaultHealthPath = "/health"

	// DefaultDataDir is the host directory holding durable service data
	DefaultDataDir = "/var/lib/reach"

	// DefaultDataMount is where DefaultDataDir is mounted inside the container
	DefaultDataMount = "/data"

	// DefaultBuildContext is the image build context directory
	DefaultBuildContext = "."

	// DefaultDockerfile is the Dockerfile path relative to the build context
	DefaultDockerfile = "docker/Dockerfile"

	// DefaultSettingsFile is the KEY=VALUE settings file loaded before every command
	DefaultSettingsFile = "/etc/reach/reach.env"

	// DefaultConfigFile is the optional YAML overlay for orchestrator settings
	DefaultConfigFile = "/etc/reach/reachctl.yaml"

	// DefaultSystemdUnitDir is where install-unit writes the unit file
	DefaultSystemdUnitDir = "/etc/systemd/system"
)

// Timing defaults
const (
	// DefaultNativeStopSettle bounds the wait for the native unit to report inactive
	DefaultNativeStopSettle = 2 * time.Second

	// DefaultNativeStartSettle bounds the wait for the native unit to report active
	DefaultNativeStartSettle = 3 * time.Second

	// DefaultSettleTick is the interval between settle re-probes
	DefaultSettleTick = 200 * time.Millisecond

	// DefaultContainerStopTimeout is the grace period given to the container on stop
	DefaultContainerStopTimeout = 10 * time.Second

	// DefaultHealthRequestTimeout caps a single health request
	DefaultHealthRequestTimeout = 2 * time.Second

	// DefaultDialTimeout is the timeout of the port-listening check
	DefaultDialTimeout = 1 * time.Second

	// DefaultLogTail is the number of log lines surfaced after a failed start
	DefaultLogTail = "50"

	// DefaultWatchDebounce coalesces bursts of file events in watch mode
	DefaultWatchDebounce = 100 * time.Millisecond

	// DefaultWatchInterval is the re-probe interval in watch mode
	DefaultWatchInterval = 5 * time.Second
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// DefaultForwardEnv lists the settings forwarded into the container.
// Unset keys are forwarded with an empty value.
var DefaultForwardEnv = []string{
	"API_KEY",
	"LOG_LEVEL",
	"WEBHOOK_URL",
	"S3_ACCOUNT_ID",
	"S3_ACCESS_KEY_ID",
	"S3_SECRET_ACCESS_KEY",
	"S3_BUCKET",
	"S3_REGION",
}
