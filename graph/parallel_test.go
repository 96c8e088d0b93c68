package graph_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/turnflow/graph"
)

func TestFanOutOrderPreserved(t *testing.T) {
	t.Parallel()

	inputs := []string{"alpha", "beta", "gamma"}
	results, err := graph.FanOut(context.Background(), inputs, func(ctx context.Context, in string) (string, error) {
		return strings.ToUpper(in), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ALPHA", "BETA", "GAMMA"}, results)
}

func TestFanOutError(t *testing.T) {
	t.Parallel()

	inputs := []int{1, 2, 3}
	_, err := graph.FanOut(context.Background(), inputs, func(ctx context.Context, in int) (int, error) {
		if in == 2 {
			return 0, errors.New("branch failed")
		}
		return in * 10, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch failed")
}

func TestFanOutPanicRecovered(t *testing.T) {
	t.Parallel()

	inputs := []int{1}
	_, err := graph.FanOut(context.Background(), inputs, func(ctx context.Context, in int) (int, error) {
		panic("bad branch")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestFanOutEmptyInput(t *testing.T) {
	t.Parallel()

	results, err := graph.FanOut(context.Background(), nil, func(ctx context.Context, in string) (string, error) {
		return in, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
