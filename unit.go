package reachctl

import (
	"fmt"
	"sort"
	"strings"
)

// UnitBuilder generates and installs the systemd unit of the native backend.
// The unit reads the same settings file the container is fed from, so both
// backends see identical configuration.
type UnitBuilder struct {
	// Name is the unit name without the .service suffix
	Name string
	// Description is the unit description
	Description string
	// ExecStart is the service command line
	ExecStart []string
	// EnvironmentFile is the KEY=VALUE settings file, loaded if present
	EnvironmentFile string
	// Env holds extra variables set on the unit
	Env map[string]string
	// WorkingDirectory is the service working directory
	WorkingDirectory string
	// User runs the service as this user when set
	User string
	// UseSudo indicates whether to use sudo for privileged operations
	UseSudo bool
	// SudoCommand is the sudo command to use (default: "sudo")
	SudoCommand string
	// UnitDir is the directory where unit files are written
	UnitDir string
	// SystemctlPath is the path to systemctl binary
	SystemctlPath string
}

// NewUnitBuilder creates a UnitBuilder from the configuration
func NewUnitBuilder(cfg *Config) *UnitBuilder {
	b := &UnitBuilder{
		Name:             cfg.UnitName,
		Description:      "Reach server (native)",
		ExecStart:        strings.Fields(cfg.Native.ExecStart),
		EnvironmentFile:  cfg.SettingsFile,
		Env:              map[string]string{"PORT": fmt.Sprint(cfg.Port)},
		WorkingDirectory: cfg.Native.WorkingDirectory,
		User:             cfg.Native.User,
		UseSudo:          needsSudo(),
		SudoCommand:      "sudo",
		UnitDir:          cfg.Native.UnitDir,
		SystemctlPath:    "systemctl",
	}
	if dir := cfg.dataDir(); dir != "" {
		b.Env["REACH_DATA_DIR"] = dir
	}
	if b.WorkingDirectory == "" {
		b.WorkingDirectory = cfg.dataDir()
	}
	if cfg.Native.UseSudo != nil {
		b.UseSudo = *cfg.Native.UseSudo
	}
	if b.UnitDir == "" {
		b.UnitDir = DefaultSystemdUnitDir
	}
	return b
}

// WithSudo configures sudo usage
func (b *UnitBuilder) WithSudo(use bool, command string) *UnitBuilder {
	b.UseSudo = use
	if command != "" {
		b.SudoCommand = command
	}
	return b
}

// WithUnitDir sets the systemd unit directory
func (b *UnitBuilder) WithUnitDir(dir string) *UnitBuilder {
	b.UnitDir = dir
	return b
}

// Render generates the unit file content
func (b *UnitBuilder) Render() (string, error) {
	if b.Name == "" {
		return "", fmt.Errorf("unit name not specified")
	}
	if len(b.ExecStart) == 0 {
		return "", fmt.Errorf("command not specified")
	}

	var unit strings.Builder

	unit.WriteString("[Unit]\n")
	fmt.Fprintf(&unit, "Description=%s\n", b.Description)
	unit.WriteString("After=network-online.target docker.service\n")
	unit.WriteString("Wants=network-online.target\n")
	unit.WriteString("# Managed by reachctl install-unit\n")
	unit.WriteString("\n")

	unit.WriteString("[Service]\n")
	unit.WriteString("Type=simple\n")
	unit.WriteString("Restart=always\n")
	unit.WriteString("RestartSec=2\n")
	unit.WriteString("KillMode=mixed\n")
	unit.WriteString("KillSignal=SIGTERM\n")
	unit.WriteString("TimeoutStopSec=10\n")

	if b.User != "" {
		fmt.Fprintf(&unit, "User=%s\n", b.User)
	}
	if b.WorkingDirectory != "" {
		fmt.Fprintf(&unit, "WorkingDirectory=%s\n", b.WorkingDirectory)
	}
	if b.EnvironmentFile != "" {
		// The leading dash makes a missing file non-fatal
		fmt.Fprintf(&unit, "EnvironmentFile=-%s\n", b.EnvironmentFile)
	}

	keys := make([]string, 0, len(b.Env))
	for k := range b.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		escapedValue := strings.ReplaceAll(b.Env[key], `"`, `\"`)
		fmt.Fprintf(&unit, "Environment=\"%s=%s\"\n", key, escapedValue)
	}

	fmt.Fprintf(&unit, "ExecStart=%s\n", quoteArgs(b.ExecStart))
	unit.WriteString("StandardOutput=journal\n")
	unit.WriteString("StandardError=journal\n")
	fmt.Fprintf(&unit, "SyslogIdentifier=%s\n", b.Name)

	unit.WriteString("\n")
	unit.WriteString("[Install]\n")
	unit.WriteString("WantedBy=multi-user.target\n")

	return unit.String(), nil
}

// UnitFileName returns the unit file name with its .service suffix
func (b *UnitBuilder) UnitFileName() string {
	return b.Name + ".service"
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if i > 0 && strings.ContainsAny(arg, " \t\n\"'\\$") {
			arg = fmt.Sprintf("%q", arg)
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}
