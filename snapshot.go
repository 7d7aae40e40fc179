package reachctl

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// DeploymentSnapshot is a read-only view of both backends taken at one moment.
// It is rebuilt on every query and never cached.
type DeploymentSnapshot struct {
	Owner           OwnerState      `json:"owner"`
	NativeState     SupervisorState `json:"native_state"`
	NativeDetail    string          `json:"native_detail,omitempty"`
	ContainerState  SupervisorState `json:"container_state"`
	ContainerHealth string          `json:"container_health,omitempty"`
	ImagePresent    bool            `json:"image_present"`
	PortListening   bool            `json:"port_listening"`
	Health          HealthVerdict   `json:"health"`
	HealthDetail    string          `json:"health_detail,omitempty"`
	Endpoint        string          `json:"endpoint"`
	ObservedAt      time.Time       `json:"observed_at"`
}

// describer is implemented by supervisors that can summarize their unit
type describer interface {
	Describe(ctx context.Context) string
}

// StatusReporter composes DeploymentSnapshots from live probes
type StatusReporter struct {
	native      Supervisor
	container   *ContainerSupervisor
	poller      *HealthPoller
	endpoint    ServiceEndpoint
	DialTimeout time.Duration
}

// NewStatusReporter creates a StatusReporter
func NewStatusReporter(native Supervisor, container *ContainerSupervisor, poller *HealthPoller, ep ServiceEndpoint) *StatusReporter {
	return &StatusReporter{
		native:      native,
		container:   container,
		poller:      poller,
		endpoint:    ep,
		DialTimeout: DefaultDialTimeout,
	}
}

// Snapshot probes both backends, the port and the health endpoint once
func (r *StatusReporter) Snapshot(ctx context.Context) DeploymentSnapshot {
	nativeActive := r.native.IsActive(ctx)
	cs := r.container.Status(ctx)
	image := r.container.ImageExists(ctx)

	snap := DeploymentSnapshot{
		Owner:           DeriveState(ProbeResult{NativeActive: nativeActive, ContainerActive: cs.Running}),
		NativeState:     StateInactive,
		ContainerState:  containerState(cs, image),
		ContainerHealth: cs.Health,
		ImagePresent:    image,
		PortListening:   r.portListening(),
		Endpoint:        r.endpoint.URL(),
	}
	if nativeActive {
		snap.NativeState = StateActive
	}
	if d, ok := r.native.(describer); ok {
		snap.NativeDetail = d.Describe(ctx)
	}

	res := r.poller.Check(ctx, r.endpoint, DefaultHealthRequestTimeout)
	snap.Health = res.Verdict
	switch {
	case res.Verdict == HealthHealthy:
		snap.HealthDetail = res.Body
	case res.StatusCode != 0:
		snap.HealthDetail = fmt.Sprintf("HTTP %d", res.StatusCode)
	case res.Err != nil:
		snap.HealthDetail = "unreachable"
	}

	snap.ObservedAt = time.Now().UTC()
	return snap
}

// containerState reports NotProvisioned only when neither a container nor an image exists
func containerState(cs ContainerStatus, imagePresent bool) SupervisorState {
	switch {
	case cs.Running:
		return StateActive
	case cs.Exists || imagePresent:
		return StateInactive
	default:
		return StateNotProvisioned
	}
}

func (r *StatusReporter) portListening() bool {
	conn, err := net.DialTimeout("tcp", r.endpoint.Address(), r.DialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Painter colors a status word; the identity painter disables color
type Painter func(word string, good bool) string

// PlainPainter leaves words uncolored
func PlainPainter(word string, _ bool) string { return word }

// ANSIPainter colors good words green and bad words red
func ANSIPainter(word string, good bool) string {
	if good {
		return "\x1b[32m" + word + "\x1b[0m"
	}
	return "\x1b[31m" + word + "\x1b[0m"
}

// Render writes the human-readable status report
func (s DeploymentSnapshot) Render(w io.Writer, paint Painter) error {
	if paint == nil {
		paint = PlainPainter
	}
	var b strings.Builder

	fmt.Fprintf(&b, "Owner:      %s\n", paint(s.Owner.String(), s.Owner == NativeOwns || s.Owner == ContainerOwns))

	native := paint(s.NativeState.String(), s.NativeState == StateActive)
	if s.NativeDetail != "" {
		native += " (" + s.NativeDetail + ")"
	}
	fmt.Fprintf(&b, "Native:     %s\n", native)

	ctr := paint(s.ContainerState.String(), s.ContainerState == StateActive)
	if s.ContainerHealth != "" {
		ctr += " [" + s.ContainerHealth + "]"
	}
	fmt.Fprintf(&b, "Container:  %s\n", ctr)
	fmt.Fprintf(&b, "Image:      %s\n", paint(presence(s.ImagePresent), s.ImagePresent))
	fmt.Fprintf(&b, "Port:       %s\n", paint(listening(s.PortListening), s.PortListening))

	health := paint(s.Health.String(), s.Health == HealthHealthy)
	if s.HealthDetail != "" {
		health += " " + s.HealthDetail
	}
	fmt.Fprintf(&b, "Health:     %s\n", health)
	fmt.Fprintf(&b, "Endpoint:   %s\n", s.Endpoint)

	_, err := io.WriteString(w, b.String())
	return err
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

func listening(ok bool) string {
	if ok {
		return "listening"
	}
	return "closed"
}
