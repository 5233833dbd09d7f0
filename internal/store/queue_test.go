package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/model"
)

func TestEnqueueDedupesContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, `{"S3_KEY":"a.pdf"}`)
	require.NoError(t, err)
	dup, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, `{"S3_KEY":"a.pdf"}`)
	require.NoError(t, err)
	assert.Equal(t, first, dup, "identical pending content collapses")

	other, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, `{"S3_KEY":"b.pdf"}`)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestEnqueueDedupWindowExpires(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, `{"S3_KEY":"a.pdf"}`)
	require.NoError(t, err)

	// Age the message past the dedup window while it stays live.
	_, err = s.db.ExecContext(ctx,
		`UPDATE queue_messages SET enqueued_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-DedupWindow-time.Minute), first)
	require.NoError(t, err)

	again, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, `{"S3_KEY":"a.pdf"}`)
	require.NoError(t, err)
	assert.NotEqual(t, first, again, "re-queueing after the window delivers a fresh message")
}

func TestReceiveFIFOAndAck(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enqueue(ctx, NewsQueue, "", "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = s.Enqueue(ctx, NewsQueue, "", "second")
	require.NoError(t, err)

	msg, err := s.Receive(ctx, NewsQueue, time.Minute, 5)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "first", msg.Body)
	assert.Equal(t, 1, msg.ReceiveCount)

	// Ungrouped messages deliver concurrently.
	msg2, err := s.Receive(ctx, NewsQueue, time.Minute, 5)
	require.NoError(t, err)
	require.NotNil(t, msg2)
	assert.Equal(t, "second", msg2.Body)

	require.NoError(t, s.DeleteMessage(ctx, NewsQueue, msg.ReceiptHandle))
	require.NoError(t, s.DeleteMessage(ctx, NewsQueue, msg2.ReceiptHandle))

	empty, err := s.Receive(ctx, NewsQueue, time.Minute, 5)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestReceiveSerializesGroup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, "doc1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, "doc2")
	require.NoError(t, err)

	msg, err := s.Receive(ctx, DocumentQueue, time.Minute, 5)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "doc1", msg.Body)

	blocked, err := s.Receive(ctx, DocumentQueue, time.Minute, 5)
	require.NoError(t, err)
	assert.Nil(t, blocked, "same-group message stays hidden while doc1 is in flight")

	require.NoError(t, s.DeleteMessage(ctx, DocumentQueue, msg.ReceiptHandle))

	next, err := s.Receive(ctx, DocumentQueue, time.Minute, 5)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "doc2", next.Body)
}

func TestReturnMessageMakesVisible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enqueue(ctx, DocumentQueue, model.IngestionGroup, "doc1")
	require.NoError(t, err)

	msg, err := s.Receive(ctx, DocumentQueue, time.Hour, 5)
	require.NoError(t, err)
	require.NotNil(t, msg)

	require.NoError(t, s.ReturnMessage(ctx, DocumentQueue, msg.ReceiptHandle))

	again, err := s.Receive(ctx, DocumentQueue, time.Hour, 5)
	require.NoError(t, err)
	require.NotNil(t, again, "returned message is immediately visible")
	assert.Equal(t, msg.ID, again.ID)
	assert.Equal(t, 2, again.ReceiveCount)
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enqueue(ctx, DocumentQueue, "", "doc1")
	require.NoError(t, err)

	msg, err := s.Receive(ctx, DocumentQueue, 10*time.Millisecond, 5)
	require.NoError(t, err)
	require.NotNil(t, msg)

	time.Sleep(20 * time.Millisecond)

	again, err := s.Receive(ctx, DocumentQueue, time.Minute, 5)
	require.NoError(t, err)
	require.NotNil(t, again, "expired claim redelivers the message")
	assert.Equal(t, msg.ID, again.ID)
}

func TestDeadLetterAfterMaxReceives(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Enqueue(ctx, DocumentQueue, "", "poison")
	require.NoError(t, err)

	// Two receive-and-return cycles exhaust the budget.
	for i := 0; i < 2; i++ {
		msg, err := s.Receive(ctx, DocumentQueue, time.Minute, 2)
		require.NoError(t, err)
		require.NotNil(t, msg)
		require.NoError(t, s.ReturnMessage(ctx, DocumentQueue, msg.ReceiptHandle))
	}

	dead, err := s.Receive(ctx, DocumentQueue, time.Minute, 2)
	require.NoError(t, err)
	assert.Nil(t, dead, "third receive dead-letters instead of delivering")

	letters, err := s.ListDeadLetters(ctx, DocumentQueue)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "poison", letters[0].Body)
	assert.Equal(t, 2, letters[0].ReceiveCount)
}
