package bulk

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ident(s string) string { return s }

func TestExecuteEmptySetIsVacuouslyOK(t *testing.T) {
	outcome := Execute(context.Background(), nil, ident, func(context.Context, string) error {
		t.Fatal("action must not run for empty target set")
		return nil
	}, zap.NewNop())

	assert.True(t, outcome.OK)
	assert.Empty(t, outcome.Results)
}

func TestExecuteAggregatesWithAnd(t *testing.T) {
	targets := []string{"a", "b", "c"}
	outcome := Execute(context.Background(), targets, ident, func(_ context.Context, target string) error {
		if target == "b" {
			return errors.New("rejected")
		}
		return nil
	}, zap.NewNop())

	require.Len(t, outcome.Results, 3)
	assert.False(t, outcome.OK)

	byTarget := make(map[string]Result, len(outcome.Results))
	for _, result := range outcome.Results {
		byTarget[result.TargetID] = result
	}
	assert.True(t, byTarget["a"].OK)
	assert.False(t, byTarget["b"].OK)
	assert.True(t, byTarget["c"].OK)
}

func TestExecuteAllSucceed(t *testing.T) {
	var calls atomic.Int32
	targets := []string{"a", "b", "c", "d"}
	outcome := Execute(context.Background(), targets, ident, func(context.Context, string) error {
		calls.Add(1)
		return nil
	}, zap.NewNop())

	assert.True(t, outcome.OK)
	assert.Equal(t, int32(4), calls.Load())
	require.Len(t, outcome.Results, 4)
	for _, result := range outcome.Results {
		assert.True(t, result.OK)
	}
}

func TestExecuteRunsAllDespiteFailures(t *testing.T) {
	var calls atomic.Int32
	targets := []string{"a", "b", "c"}
	outcome := Execute(context.Background(), targets, ident, func(context.Context, string) error {
		calls.Add(1)
		return errors.New("always fails")
	}, zap.NewNop())

	assert.False(t, outcome.OK)
	assert.Equal(t, int32(3), calls.Load())
}
