package reachctl

import "context"

// Probe answers read-only questions about both backends.
// Every query treats an unreachable backend as "absent" rather than failing.
type Probe struct {
	native    Supervisor
	container *ContainerSupervisor
}

// NewProbe creates a Probe over the two backends
func NewProbe(native Supervisor, container *ContainerSupervisor) *Probe {
	return &Probe{native: native, container: container}
}

// IsNativeActive reports whether the native supervisor runs the service
func (p *Probe) IsNativeActive(ctx context.Context) bool {
	return p.native.IsActive(ctx)
}

// IsContainerActive reports whether the reserved container is running
func (p *Probe) IsContainerActive(ctx context.Context) bool {
	return p.container.IsActive(ctx)
}

// ContainerExists reports whether the reserved container exists in any state
func (p *Probe) ContainerExists(ctx context.Context) bool {
	return p.container.Exists(ctx)
}

// ImageExists reports whether the image ref exists locally
func (p *Probe) ImageExists(ctx context.Context, ref string) bool {
	ok, err := p.container.Runtime.ImageExists(ctx, ref)
	return err == nil && ok
}

// Observe probes both backends once
func (p *Probe) Observe(ctx context.Context) ProbeResult {
	return ProbeResult{
		NativeActive:    p.IsNativeActive(ctx),
		ContainerActive: p.IsContainerActive(ctx),
	}
}
