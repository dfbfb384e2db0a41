package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func TestWrapCachesPerText(t *testing.T) {
	next := &countingEmbedder{}
	e := Wrap(next, "fake", 16, time.Minute)
	ctx := context.Background()

	got, err := e.Embed(ctx, []string{"go", "kafka"}, "query")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{2}, {5}}, got)

	got, err = e.Embed(ctx, []string{"kafka", "postgres", "go"}, "query")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{5}, {8}, {2}}, got)
	require.Equal(t, [][]string{{"go", "kafka"}, {"postgres"}}, next.calls)

	// task type is part of the key
	_, err = e.Embed(ctx, []string{"go"}, "document")
	require.NoError(t, err)
	require.Len(t, next.calls, 3)

	got[0][0] = 99
	again, err := e.Embed(ctx, []string{"kafka"}, "query")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{5}}, again)
	require.Len(t, next.calls, 3)
}

func TestWrapDisabledAndErrors(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, Wrap(next, "fake", 0, time.Minute))

	next.err = errors.New("quota")
	_, err := Wrap(next, "fake", 4, time.Minute).Embed(context.Background(), []string{"go"}, "query")
	require.EqualError(t, err, "quota")
}
