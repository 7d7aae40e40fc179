package reachctl

// Backend identifies which supervisor runs the service
type Backend int

const (
	// BackendNative is the host service manager (systemd) running a plain process
	BackendNative Backend = iota
	// BackendContainer is the container runtime running the service image
	BackendContainer
)

// Backend string constants
const (
	backendNativeStr    = "native"
	backendContainerStr = "container"
)

// String returns the string representation of a Backend
func (b Backend) String() string {
	switch b {
	case BackendNative:
		return backendNativeStr
	case BackendContainer:
		return backendContainerStr
	default:
		return "unknown"
	}
}

// Other returns the backend that is mutually exclusive with b
func (b Backend) Other() Backend {
	if b == BackendNative {
		return BackendContainer
	}
	return BackendNative
}

// SupervisorState is the observed state of one backend
type SupervisorState int

const (
	// StateInactive means the backend exists but is not running the service
	StateInactive SupervisorState = iota
	// StateActive means the backend is currently running the service
	StateActive
	// StateNotProvisioned means neither a container nor an image exists yet.
	// Only the container backend reports it.
	StateNotProvisioned
)

// SupervisorState string constants
const (
	stateInactiveStr       = "inactive"
	stateActiveStr         = "active"
	stateNotProvisionedStr = "not-provisioned"
)

// String returns the string representation of a SupervisorState
func (s SupervisorState) String() string {
	switch s {
	case StateActive:
		return stateActiveStr
	case StateNotProvisioned:
		return stateNotProvisionedStr
	default:
		return stateInactiveStr
	}
}

// MarshalText implements encoding.TextMarshaler
func (s SupervisorState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OwnerState describes which backend owns the service
type OwnerState int

const (
	// NoneOwns means neither backend is active
	NoneOwns OwnerState = iota
	// NativeOwns means only the native supervisor is active
	NativeOwns
	// ContainerOwns means only the container is active
	ContainerOwns
	// Conflicting means both backends report active at the same time
	Conflicting
	// SwitchingToContainer is the transient state of the start command
	SwitchingToContainer
	// SwitchingToNative is the transient state of the stop command
	SwitchingToNative
)

// OwnerState string constants
const (
	noneOwnsStr             = "none"
	nativeOwnsStr           = "native"
	containerOwnsStr        = "container"
	conflictingStr          = "conflicting"
	switchingToContainerStr = "switching-to-container"
	switchingToNativeStr    = "switching-to-native"
)

// String returns the string representation of an OwnerState
func (o OwnerState) String() string {
	switch o {
	case NativeOwns:
		return nativeOwnsStr
	case ContainerOwns:
		return containerOwnsStr
	case Conflicting:
		return conflictingStr
	case SwitchingToContainer:
		return switchingToContainerStr
	case SwitchingToNative:
		return switchingToNativeStr
	default:
		return noneOwnsStr
	}
}

// MarshalText implements encoding.TextMarshaler
func (o OwnerState) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ProbeResult is the raw observation that ownership is derived from
type ProbeResult struct {
	NativeActive    bool
	ContainerActive bool
}

// DeriveState maps a probe observation to the owner of the service.
// It is a pure function; ownership is never stored between invocations.
func DeriveState(p ProbeResult) OwnerState {
	switch {
	case p.NativeActive && p.ContainerActive:
		return Conflicting
	case p.NativeActive:
		return NativeOwns
	case p.ContainerActive:
		return ContainerOwns
	default:
		return NoneOwns
	}
}

// HealthVerdict classifies the liveness of the service
type HealthVerdict int

const (
	// HealthUnknown means the probe budget ran out without a definitive answer
	HealthUnknown HealthVerdict = iota
	// HealthHealthy means a 2xx response was observed
	HealthHealthy
	// HealthUnhealthy means the container runtime reported the service unhealthy
	HealthUnhealthy
)

// HealthVerdict string constants
const (
	healthUnknownStr   = "unknown"
	healthHealthyStr   = "healthy"
	healthUnhealthyStr = "unhealthy"
)

// String returns the string representation of a HealthVerdict
func (h HealthVerdict) String() string {
	switch h {
	case HealthHealthy:
		return healthHealthyStr
	case HealthUnhealthy:
		return healthUnhealthyStr
	default:
		return healthUnknownStr
	}
}

// MarshalText implements encoding.TextMarshaler
func (h HealthVerdict) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// ServiceEndpoint identifies where liveness of the running service is checked.
// Port is the single externally visible port; only one backend may bind it.
type ServiceEndpoint struct {
	Host       string
	Port       int
	HealthPath string
}

// TransitionRequest names the backend to hand the service to and the one to take it from
type TransitionRequest struct {
	Target Backend
	Source Backend
}

// RequestFor returns the transition that makes target the owner
func RequestFor(target Backend) TransitionRequest {
	return TransitionRequest{Target: target, Source: target.Other()}
}
