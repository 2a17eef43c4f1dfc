package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	attrs := map[string]string{"outcome": "failed"}
	id, err := p.Publish(context.Background(), map[string]int{"n": 1}, attrs)
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)
	attrs["outcome"] = "mutated"

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Data))
	assert.Equal(t, "failed", msgs[0].Attributes["outcome"])
	assert.NoError(t, p.Close())
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	p := New()
	boom := errors.New("boom")
	p.FailWith(boom)
	_, err := p.Publish(context.Background(), "x", nil)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, p.Messages())

	_, err = p.Publish(context.Background(), func() {}, nil)
	assert.Error(t, err)
}
