package reachctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxHealthBody bounds how much of a health response is kept for display
const maxHealthBody = 4 << 10

// PollPlan is the probe budget of one health poll: at most Attempts
// requests, the i-th starting Interval*i after the poll begins. A poll
// never runs longer than Attempts*Interval.
type PollPlan struct {
	Attempts int
	Interval time.Duration
}

// Default poll plans
var (
	// PostStartPlan is the short poll run right after a start
	PostStartPlan = PollPlan{Attempts: 10, Interval: time.Second}

	// ReadinessPlan is the longer poll used when the image declares its own health check
	ReadinessPlan = PollPlan{Attempts: 12, Interval: 5 * time.Second}
)

// Budget returns the upper bound on the poll's wall time
func (p PollPlan) Budget() time.Duration {
	return time.Duration(p.Attempts) * p.Interval
}

// URL returns the health URL of the endpoint
func (e ServiceEndpoint) URL() string {
	path := e.HealthPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + e.Address() + path
}

// Address returns host:port of the endpoint
func (e ServiceEndpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ReadinessFunc returns the container runtime's own health status
// (starting, healthy, unhealthy) or "" when none is declared
type ReadinessFunc func(ctx context.Context) string

// PollResult is the outcome of one health poll
type PollResult struct {
	// Verdict is the final classification
	Verdict HealthVerdict
	// Attempts is the number of requests sent
	Attempts int
	// StatusCode is the last HTTP status seen, 0 if no response arrived
	StatusCode int
	// Body is the (truncated) body of the last response
	Body string
	// ContainerHealth is the last runtime health status seen
	ContainerHealth string
	// Err is the last transport error
	Err error
}

// HealthPoller issues liveness requests against a ServiceEndpoint
type HealthPoller struct {
	client  *http.Client
	logger  *slog.Logger
	observe func(plan string, ok bool)
}

// NewHealthPoller creates a HealthPoller. A nil client uses one with
// DefaultHealthRequestTimeout.
func NewHealthPoller(client *http.Client) *HealthPoller {
	if client == nil {
		client = &http.Client{Timeout: DefaultHealthRequestTimeout}
	}
	return &HealthPoller{client: client, logger: slog.Default()}
}

// WithLogger sets the logger
func (p *HealthPoller) WithLogger(l *slog.Logger) *HealthPoller {
	if l != nil {
		p.logger = l
	}
	return p
}

// OnAttempt registers a callback invoked after every request
func (p *HealthPoller) OnAttempt(fn func(plan string, ok bool)) *HealthPoller {
	p.observe = fn
	return p
}

// Poll requests the endpoint until the first 2xx or until the plan is
// exhausted. Connection errors and non-2xx responses are not terminal.
func (p *HealthPoller) Poll(ctx context.Context, ep ServiceEndpoint, plan PollPlan) PollResult {
	return p.poll(ctx, "post-start", ep, plan, nil)
}

// PollReadiness is Poll that also consults the runtime's health status
// before every request; an "unhealthy" status ends the poll immediately.
func (p *HealthPoller) PollReadiness(ctx context.Context, ep ServiceEndpoint, plan PollPlan, readiness ReadinessFunc) PollResult {
	return p.poll(ctx, "readiness", ep, plan, readiness)
}

// Check sends a single request with the given timeout
func (p *HealthPoller) Check(ctx context.Context, ep ServiceEndpoint, timeout time.Duration) PollResult {
	return p.poll(ctx, "status", ep, PollPlan{Attempts: 1, Interval: timeout}, nil)
}

func (p *HealthPoller) poll(ctx context.Context, name string, ep ServiceEndpoint, plan PollPlan, readiness ReadinessFunc) PollResult {
	url := ep.URL()
	session := newPollSession(plan, time.Now())
	var result PollResult

	for session.next() {
		if wait := time.Until(session.slotStart()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				result.Err = ctx.Err()
				return result
			case <-timer.C:
			}
		}

		if readiness != nil {
			result.ContainerHealth = readiness(ctx)
			if result.ContainerHealth == ContainerHealthUnhealthy {
				p.logger.Warn("container reports unhealthy", "attempt", session.attempt, "url", url)
				result.Verdict = HealthUnhealthy
				return result
			}
		}

		attemptCtx, cancel := session.attemptContext(ctx)
		result.Attempts++
		ok := p.request(attemptCtx, url, &result)
		cancel()

		if p.observe != nil {
			p.observe(name, ok)
		}
		if ok {
			p.logger.Debug("health check passed", "attempt", session.attempt, "url", url, "status", result.StatusCode)
			result.Verdict = HealthHealthy
			result.Err = nil
			return result
		}
		p.logger.Debug("health check not ready", "attempt", session.attempt, "max", plan.Attempts, "url", url, "status", result.StatusCode, "error", result.Err)
	}

	result.Verdict = HealthUnknown
	return result
}

// request performs one GET and records the response in result.
// It reports whether the response was 2xx.
func (p *HealthPoller) request(ctx context.Context, url string, result *PollResult) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Err = err
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		result.StatusCode = 0
		result.Body = ""
		result.Err = err
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	result.StatusCode = resp.StatusCode
	result.Body = strings.TrimSpace(string(body))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true
	}
	result.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	return false
}

// pollSession tracks the schedule of a single poll so that the i-th
// attempt starts at start+i*interval and finishes before the next slot
type pollSession struct {
	plan    PollPlan
	start   time.Time
	attempt int
}

func newPollSession(plan PollPlan, start time.Time) *pollSession {
	return &pollSession{plan: plan, start: start}
}

// next advances to the next attempt and reports whether one remains
func (s *pollSession) next() bool {
	if s.attempt >= s.plan.Attempts {
		return false
	}
	s.attempt++
	return true
}

func (s *pollSession) slotStart() time.Time {
	return s.start.Add(time.Duration(s.attempt-1) * s.plan.Interval)
}

func (s *pollSession) slotEnd() time.Time {
	return s.start.Add(time.Duration(s.attempt) * s.plan.Interval)
}

// attemptContext bounds a request to the end of its slot
func (s *pollSession) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.plan.Interval <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, s.slotEnd())
}
