package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"flowdesk/config"
	"flowdesk/crm"
	"flowdesk/email"
	"flowdesk/models"
	"flowdesk/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeTransport struct {
	Sent []email.OutboundEmail
	seq  int
}

func (f *fakeTransport) Send(ctx context.Context, m email.OutboundEmail) (string, error) {
	f.Sent = append(f.Sent, m)
	f.seq++
	return fmt.Sprintf("<fake-%d@provider.test>", f.seq), nil
}

func newPipeline(t *testing.T) (*Pipeline, *queue.MemoryQueue, *fakeTransport, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))

	require.NoError(t, db.Create(&models.Mailbox{
		WorkspaceID: "ws_1",
		FromEmail:   "agent@acme.test",
		FromName:    "Acme Realty",
	}).Error)

	transport := &fakeTransport{}
	emailSvc := email.NewService(db, transport, crm.NewService(db))
	q := queue.NewMemoryQueue()
	return NewPipeline(q, q, emailSvc), q, transport, db
}

func enqueueWebhook(t *testing.T, q *queue.MemoryQueue, providerID string) {
	t.Helper()
	require.NoError(t, q.Enqueue(context.Background(), queue.QueueInbound, email.InboundWebhook{
		MessageID: providerID,
		From:      "Jane Smith <jane@example.com>",
		To:        "agent@acme.test",
		Subject:   "Interested in the listing",
		TextBody:  "Is it still available?",
	}))
}

func runStage(t *testing.T, p *Pipeline, q *queue.MemoryQueue, queueName string,
	handler func(context.Context, *queue.Job) handlerResult) handlerResult {
	t.Helper()
	job, err := q.Dequeue(context.Background(), queueName, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job, "expected a job on %s", queueName)
	return handler(context.Background(), job)
}

func TestPipelineEndToEnd(t *testing.T) {
	p, q, transport, db := newPipeline(t)
	ctx := context.Background()

	enqueueWebhook(t, q, "<m1@provider.test>")

	// Stage 1: ingest.
	res := runStage(t, p, q, queue.QueueInbound, p.HandleInbound)
	assert.Equal(t, resultOK, res)
	require.Equal(t, 1, q.Len(queue.QueueDraft), "ingest feeds the draft stage")

	// Stage 2: draft.
	res = runStage(t, p, q, queue.QueueDraft, p.HandleDraft)
	assert.Equal(t, resultOK, res)

	var draft models.Message
	require.NoError(t, db.Where("direction = ? AND status = ?",
		models.DirectionOutbound, models.MessageDraft).First(&draft).Error)

	// A human approves; the API layer then queues the send stage.
	require.NoError(t, p.Email.Approve(ctx, "ws_1", draft.ID))
	require.NoError(t, q.Enqueue(ctx, queue.QueueSend, SendJob{MessageID: draft.ID}))

	// Stage 3: send.
	res = runStage(t, p, q, queue.QueueSend, p.HandleSend)
	assert.Equal(t, resultOK, res)

	require.Len(t, transport.Sent, 1)
	assert.Equal(t, "jane@example.com", transport.Sent[0].To)

	var sent models.Message
	require.NoError(t, db.First(&sent, draft.ID).Error)
	assert.Equal(t, models.MessageSent, sent.Status)
}

func TestPipelineUnroutableMailStopsQuietly(t *testing.T) {
	p, q, _, _ := newPipeline(t)

	require.NoError(t, q.Enqueue(context.Background(), queue.QueueInbound, email.InboundWebhook{
		MessageID: "<m1@provider.test>",
		From:      "jane@example.com",
		To:        "nobody@unknown.test",
		TextBody:  "hello?",
	}))

	res := runStage(t, p, q, queue.QueueInbound, p.HandleInbound)
	assert.Equal(t, resultOK, res, "unroutable mail is dropped, not retried")
	assert.Zero(t, q.Len(queue.QueueDraft))
}

func TestPipelineCorruptPayloadFails(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	ctx := context.Background()

	job := &queue.Job{ID: "job_x", Payload: json.RawMessage(`{"thread_id": "not a number"}`)}
	res := p.HandleDraft(ctx, job)
	assert.Equal(t, resultFailed, res)
}

func TestPipelineSendUnapprovedFails(t *testing.T) {
	p, q, transport, _ := newPipeline(t)
	ctx := context.Background()

	enqueueWebhook(t, q, "<m1@provider.test>")
	require.Equal(t, resultOK, runStage(t, p, q, queue.QueueInbound, p.HandleInbound))
	require.Equal(t, resultOK, runStage(t, p, q, queue.QueueDraft, p.HandleDraft))

	var draft models.Message
	require.NoError(t, p.Email.DB.Where("status = ?", models.MessageDraft).First(&draft).Error)

	// Send queued without approval: the job fails and nothing is sent.
	require.NoError(t, q.Enqueue(ctx, queue.QueueSend, SendJob{MessageID: draft.ID}))
	res := runStage(t, p, q, queue.QueueSend, p.HandleSend)
	assert.Equal(t, resultFailed, res)
	assert.Empty(t, transport.Sent)
}

func TestPipelineHeldThreadLockDefersJob(t *testing.T) {
	p, q, _, _ := newPipeline(t)
	ctx := context.Background()

	enqueueWebhook(t, q, "<m1@provider.test>")
	require.Equal(t, resultOK, runStage(t, p, q, queue.QueueInbound, p.HandleInbound))

	// Simulate another worker holding the thread lock.
	var thread models.Thread
	require.NoError(t, p.Email.DB.First(&thread).Error)
	held, err := q.Acquire(ctx, threadLockKey(thread.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	res := runStage(t, p, q, queue.QueueDraft, p.HandleDraft)
	assert.Equal(t, resultLocked, res)

	// After release the job runs normally.
	require.NoError(t, q.Release(ctx, threadLockKey(thread.ID)))
	job, err := queue.NewJob(DraftJob{ThreadID: thread.ID, Workspace: "ws_1"})
	require.NoError(t, err)
	assert.Equal(t, resultOK, p.HandleDraft(ctx, job))
}

func TestPipelineRetriesThenDeadLetters(t *testing.T) {
	p, q, _, _ := newPipeline(t)
	ctx := context.Background()

	// Draft job for a thread that does not exist keeps failing.
	require.NoError(t, q.Enqueue(ctx, queue.QueueDraft, DraftJob{ThreadID: 999, Workspace: "ws_1"}))

	for i := 0; i < queue.MaxAttempts; i++ {
		job, err := q.Dequeue(ctx, queue.QueueDraft, time.Second)
		require.NoError(t, err)
		require.NotNil(t, job)
		require.Equal(t, resultFailed, p.HandleDraft(ctx, job))
		require.NoError(t, q.Fail(ctx, queue.QueueDraft, job))
	}

	assert.Zero(t, q.Len(queue.QueueDraft))
	assert.Equal(t, 1, q.Len(queue.QueueDraft+":dead"))
}
