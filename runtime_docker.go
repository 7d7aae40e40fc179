package reachctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// DockerRuntime implements ContainerRuntime against the Docker Engine API
type DockerRuntime struct {
	inner *client.Client
}

// NewDockerRuntime creates a Docker client using environment defaults.
// A non-empty host overrides DOCKER_HOST.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerRuntime{inner: inner}, nil
}

// Ping validates connectivity to the Docker daemon
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if d == nil || d.inner == nil {
		return fmt.Errorf("docker client not initialized")
	}
	ping, err := d.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("docker ping returned empty API version")
	}
	return nil
}

// Close releases resources held by the Docker client
func (d *DockerRuntime) Close() error {
	if d == nil || d.inner == nil {
		return nil
	}
	return d.inner.Close()
}

// Inspect implements ContainerRuntime
func (d *DockerRuntime) Inspect(ctx context.Context, name string) (ContainerStatus, error) {
	info, err := d.inner.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerStatus{}, nil
		}
		return ContainerStatus{}, fmt.Errorf("container inspect: %w", err)
	}
	status := ContainerStatus{Exists: true}
	if info.State != nil {
		status.Running = info.State.Running
		status.State = info.State.Status
		if info.State.Health != nil {
			status.Health = info.State.Health.Status
		}
	}
	return status, nil
}

// ImageExists implements ContainerRuntime
func (d *DockerRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	if _, _, err := d.inner.ImageInspectWithRaw(ctx, ref); err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("image inspect: %w", err)
	}
	return true, nil
}

// BuildImage implements ContainerRuntime
func (d *DockerRuntime) BuildImage(ctx context.Context, spec BuildSpec, out io.Writer) error {
	if spec.ContextDir == "" {
		return fmt.Errorf("build directory cannot be empty")
	}
	if spec.Tag == "" {
		return fmt.Errorf("image tag cannot be empty")
	}
	buildCtx, err := archive.TarWithOptions(spec.ContextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer buildCtx.Close()

	opts := types.ImageBuildOptions{
		Tags:        []string{spec.Tag},
		Dockerfile:  filepath.ToSlash(spec.Dockerfile),
		Remove:      true,
		ForceRemove: true,
		NoCache:     spec.NoCache,
	}
	resp, err := d.inner.ImageBuild(ctx, buildCtx, opts)
	if err != nil {
		return fmt.Errorf("docker image build: %w", err)
	}
	defer resp.Body.Close()

	return decodeBuildStream(resp.Body, out)
}

// decodeBuildStream relays the daemon's JSON build messages as plain lines
// and turns an embedded error message into a returned error
func decodeBuildStream(r io.Reader, out io.Writer) error {
	decoder := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode build output: %w", err)
		}
		if errMsg := msg.errorMessage(); errMsg != "" {
			return fmt.Errorf("docker image build: %s", errMsg)
		}
		if line := msg.render(); line != "" && out != nil {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			_, _ = io.WriteString(out, line)
		}
	}
}

type buildMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	ID          string `json:"id"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func (m buildMessage) errorMessage() string {
	if msg := strings.TrimSpace(m.Error); msg != "" {
		return msg
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

func (m buildMessage) render() string {
	if m.Stream != "" {
		return m.Stream
	}
	if m.Status == "" {
		return ""
	}
	if id := strings.TrimSpace(m.ID); id != "" {
		return id + " " + strings.TrimSpace(m.Status)
	}
	return strings.TrimSpace(m.Status)
}

// Run implements ContainerRuntime
func (d *DockerRuntime) Run(ctx context.Context, spec ContainerSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(spec.Image) == "" {
		return fmt.Errorf("image name cannot be empty")
	}

	config, hostCfg, err := containerConfigs(spec)
	if err != nil {
		return err
	}

	r, err := d.inner.ContainerCreate(ctx, config, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("container create: %w", err)
	}
	if err := d.inner.ContainerStart(ctx, r.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("container start: %w", err)
	}
	return nil
}

// containerConfigs translates a ContainerSpec into Docker create arguments
func containerConfigs(spec ContainerSpec) (*container.Config, *container.HostConfig, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return nil, nil, fmt.Errorf("container port: %w", err)
	}

	config := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	if hc := spec.HealthCheck; hc != nil {
		config.Healthcheck = &container.HealthConfig{
			Test:        hc.Test,
			Interval:    hc.Interval,
			Timeout:     hc.Timeout,
			StartPeriod: hc.StartPeriod,
			Retries:     hc.Retries,
		}
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostPort: strconv.Itoa(spec.HostPort)}},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}
	if spec.DataDir != "" && spec.DataMount != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: spec.DataDir,
			Target: spec.DataMount,
		}}
	}
	return config, hostCfg, nil
}

// StopContainer implements ContainerRuntime
func (d *DockerRuntime) StopContainer(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := d.inner.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("container stop: %w", err)
	}
	return nil
}

// RemoveContainer implements ContainerRuntime
func (d *DockerRuntime) RemoveContainer(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := d.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Logs implements ContainerRuntime
func (d *DockerRuntime) Logs(ctx context.Context, name string, opts LogOptions, stdout, stderr io.Writer) error {
	rc, err := d.inner.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Tail:       opts.Tail,
		Timestamps: opts.Timestamps,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return ErrTargetNotFound
		}
		return fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	// Containers are created without a TTY, so the stream is multiplexed
	if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("copy container logs: %w", err)
	}
	return nil
}

// Ensure DockerRuntime implements ContainerRuntime
var _ ContainerRuntime = (*DockerRuntime)(nil)
