package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memories/internal/config"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherKeysByPost(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	require.NoError(t, p.Publish(context.Background(), New(PostLiked, "p1", "u1")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "p1", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "post.liked", got["type"])
	assert.Equal(t, "p1", got["postId"])
	assert.Equal(t, "u1", got["userId"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherOmitsAnonymousUser(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaPublisher(w).Publish(context.Background(), New(PostDeleted, "p2", "")))
	assert.NotContains(t, string(w.msgs[0].Value), "userId")
}

func TestKafkaPublisherError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	assert.Error(t, NewKafkaPublisher(w).Publish(context.Background(), New(PostCreated, "p3", "u1")))
}

func TestNewPublisherWithoutBrokers(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{Topic: "posts.events"})
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), New(PostCreated, "p", "u")))
	assert.NoError(t, p.Close())
}
