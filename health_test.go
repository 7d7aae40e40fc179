package reachctl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceEndpointURL(t *testing.T) {
	tests := []struct {
		ep   ServiceEndpoint
		want string
	}{
		{ServiceEndpoint{Host: "127.0.0.1", Port: 8765, HealthPath: "/health"}, "http://127.0.0.1:8765/health"},
		{ServiceEndpoint{Host: "localhost", Port: 80, HealthPath: "healthz"}, "http://localhost:80/healthz"},
		{ServiceEndpoint{Host: "::1", Port: 9000, HealthPath: "/health"}, "http://[::1]:9000/health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ep.URL())
	}
}

func TestPollPlanBudget(t *testing.T) {
	assert.Equal(t, 10*time.Second, PostStartPlan.Budget())
	assert.Equal(t, time.Minute, ReadinessPlan.Budget())
}

func TestPollHealthyImmediately(t *testing.T) {
	_, ep := healthServer(t, http.StatusOK)

	res := NewHealthPoller(nil).Poll(context.Background(), ep, PollPlan{Attempts: 5, Interval: 50 * time.Millisecond})

	assert.Equal(t, HealthHealthy, res.Verdict)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, res.Body)
	assert.NoError(t, res.Err)
}

func TestPollBecomesHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := NewHealthPoller(nil).Poll(context.Background(), endpointOf(t, srv.URL), PollPlan{Attempts: 10, Interval: 20 * time.Millisecond})

	assert.Equal(t, HealthHealthy, res.Verdict)
	assert.Equal(t, 3, res.Attempts)
}

func TestPollExhaustsBudget(t *testing.T) {
	_, ep := healthServer(t, http.StatusInternalServerError)
	plan := PollPlan{Attempts: 4, Interval: 25 * time.Millisecond}

	start := time.Now()
	res := NewHealthPoller(nil).Poll(context.Background(), ep, plan)
	elapsed := time.Since(start)

	assert.Equal(t, HealthUnknown, res.Verdict)
	assert.Equal(t, plan.Attempts, res.Attempts)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Error(t, res.Err)
	assert.LessOrEqual(t, elapsed, plan.Budget()+100*time.Millisecond)
}

func TestPollConnectionRefused(t *testing.T) {
	ep := closedEndpoint(t)

	res := NewHealthPoller(nil).Poll(context.Background(), ep, PollPlan{Attempts: 3, Interval: 10 * time.Millisecond})

	assert.Equal(t, HealthUnknown, res.Verdict)
	assert.Equal(t, 3, res.Attempts)
	assert.Zero(t, res.StatusCode)
	assert.Error(t, res.Err)
}

func TestPollBoundedBySlowEndpoint(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	plan := PollPlan{Attempts: 3, Interval: 50 * time.Millisecond}
	start := time.Now()
	res := NewHealthPoller(&http.Client{}).Poll(context.Background(), endpointOf(t, srv.URL), plan)
	elapsed := time.Since(start)

	assert.Equal(t, HealthUnknown, res.Verdict)
	assert.LessOrEqual(t, elapsed, plan.Budget()+100*time.Millisecond)
}

func TestPollReadinessUnhealthyShortCircuits(t *testing.T) {
	_, ep := healthServer(t, http.StatusServiceUnavailable)
	plan := PollPlan{Attempts: 20, Interval: 100 * time.Millisecond}

	var checks atomic.Int32
	readiness := func(context.Context) string {
		if checks.Add(1) >= 2 {
			return ContainerHealthUnhealthy
		}
		return ContainerHealthStarting
	}

	start := time.Now()
	res := NewHealthPoller(nil).PollReadiness(context.Background(), ep, plan, readiness)

	assert.Equal(t, HealthUnhealthy, res.Verdict)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, ContainerHealthUnhealthy, res.ContainerHealth)
	assert.Less(t, time.Since(start), plan.Budget()/2)
}

func TestPollReadinessHealthy(t *testing.T) {
	_, ep := healthServer(t, http.StatusOK)

	res := NewHealthPoller(nil).PollReadiness(context.Background(), ep, PollPlan{Attempts: 3, Interval: 10 * time.Millisecond},
		func(context.Context) string { return ContainerHealthStarting })

	assert.Equal(t, HealthHealthy, res.Verdict)
	assert.Equal(t, ContainerHealthStarting, res.ContainerHealth)
}

func TestPollContextCanceled(t *testing.T) {
	_, ep := healthServer(t, http.StatusServiceUnavailable)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := NewHealthPoller(nil).Poll(ctx, ep, PollPlan{Attempts: 100, Interval: 50 * time.Millisecond})

	assert.Equal(t, HealthUnknown, res.Verdict)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollObserver(t *testing.T) {
	_, ep := healthServer(t, http.StatusBadGateway)
	var fails int
	p := NewHealthPoller(nil).OnAttempt(func(plan string, ok bool) {
		assert.Equal(t, "post-start", plan)
		if !ok {
			fails++
		}
	})

	p.Poll(context.Background(), ep, PollPlan{Attempts: 2, Interval: 5 * time.Millisecond})
	assert.Equal(t, 2, fails)
}

func TestPollTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, string(make([]byte, 2*maxHealthBody)))
	}))
	defer srv.Close()

	res := NewHealthPoller(nil).Check(context.Background(), endpointOf(t, srv.URL), time.Second)
	require.Equal(t, HealthHealthy, res.Verdict)
	assert.LessOrEqual(t, len(res.Body), maxHealthBody)
}

func TestPollSessionSchedule(t *testing.T) {
	start := time.Unix(1000, 0)
	s := newPollSession(PollPlan{Attempts: 2, Interval: time.Second}, start)

	require.True(t, s.next())
	assert.Equal(t, start, s.slotStart())
	assert.Equal(t, start.Add(time.Second), s.slotEnd())

	require.True(t, s.next())
	assert.Equal(t, start.Add(time.Second), s.slotStart())
	assert.Equal(t, start.Add(2*time.Second), s.slotEnd())

	assert.False(t, s.next())
}
