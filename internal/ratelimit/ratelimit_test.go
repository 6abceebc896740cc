package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	l := New(types.RateLimiting{Enabled: false})
	assert.Nil(t, l)
}

func TestNew_EnabledBuildsGlobalLimiterByDefault(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 5})
	require.NotNil(t, l)
	assert.False(t, l.perHost)
	assert.NotNil(t, l.global)
}

func TestNew_PerHostModeSkipsGlobalLimiter(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, PerHost: true, DefaultReqsPerS: 5})
	require.NotNil(t, l)
	assert.Nil(t, l.global)
}

func TestNew_ClampsBelowMinimumDefaultRate(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 0})
	require.NotNil(t, l)
	assert.Equal(t, 0.1, l.defaultRate)
}

func TestEffectiveRate_StepOverridesDefault(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 2})
	got := l.EffectiveRate(types.TestStep{ReqsPerSec: 50})
	assert.Equal(t, 50.0, got)
}

func TestEffectiveRate_FallsBackToDefaultWhenStepUnset(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 2})
	got := l.EffectiveRate(types.TestStep{})
	assert.Equal(t, 2.0, got)
}

func TestBucketFor_PerHostCreatesDistinctBucketsPerHost(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, PerHost: true, DefaultReqsPerS: 5})
	a := l.bucketFor("host-a")
	b := l.bucketFor("host-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, l.bucketFor("host-a"))
}

func TestBucketFor_GlobalModeReturnsSameBucketForAnyHost(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 5})
	assert.Same(t, l.bucketFor("host-a"), l.bucketFor("host-b"))
}

func TestWait_AllowsImmediatelyWithinBurst(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 1000, BurstSize: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := l.Wait(ctx, "host-a", types.TestStep{})
	assert.NoError(t, err)
}

func TestWait_CanceledContextReturnsError(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 0.1, BurstSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// drain the single burst token first so the next wait must block.
	_ = l.Wait(context.Background(), "host-a", types.TestStep{})
	err := l.Wait(ctx, "host-a", types.TestStep{})
	assert.Error(t, err)
}

func TestSetRate_UpdatesDefaultRateForGlobalBucket(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 1})
	l.SetRate(25, "")
	assert.Equal(t, 25.0, l.defaultRate)
}

func TestSetRate_ClampsBelowMinimum(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 1})
	l.SetRate(0, "")
	assert.Equal(t, 0.1, l.defaultRate)
}

func TestReset_GlobalModeRebuildsGlobalBucket(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, DefaultReqsPerS: 1})
	before := l.global
	l.Reset("")
	assert.NotSame(t, before, l.global)
}

func TestReset_PerHostModeDropsOnlyNamedHost(t *testing.T) {
	l := New(types.RateLimiting{Enabled: true, PerHost: true, DefaultReqsPerS: 1})
	l.bucketFor("host-a")
	l.Reset("host-a")
	_, ok := l.buckets["host-a"]
	assert.False(t, ok)
}
