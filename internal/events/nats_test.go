package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs    []published
	err     error
	drained bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisherEnvelope(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn)

	sessionID := uuid.New()
	err := p.Publish(context.Background(), RaceFinishedEvent{
		SessionID:  sessionID,
		TrackWidth: 300,
		Ticks:      60,
		Placings:   []Placing{{Place: 1, HorseID: 2, Name: "Blaze", FinishSeconds: "3.00"}},
	})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "minigames.race.finished", conn.msgs[0].subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &env))
	assert.Equal(t, RaceFinished, env.EventType)
	assert.Equal(t, "minigames", env.SourceService)
	_, err = uuid.Parse(env.EventID)
	assert.NoError(t, err)

	var payload RaceFinishedEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, sessionID, payload.SessionID)
	assert.Equal(t, "Blaze", payload.Placings[0].Name)
}

func TestNATSPublisherSubjects(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn)

	require.NoError(t, p.Publish(context.Background(), LotteryCompletedEvent{TotalCards: 10, WinningCards: 3, Reveals: 5}))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "minigames.lottery.completed", conn.msgs[0].subject)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestNATSPublisherErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("connection closed")}
	p := NewNATSPublisher(conn)
	err := p.Publish(context.Background(), LotteryCompletedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewNATSPublisher(&fakeConn{}).Publish(ctx, LotteryCompletedEvent{}), context.Canceled)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NewNoopPublisher().Publish(context.Background(), RaceFinishedEvent{}))
}
