// Package worker runs the message pipeline: inbound webhooks become
// contacts and threads, threads get reply drafts, and approved drafts get
// sent. Each stage is its own queue so a crash mid-pipeline resumes where it
// left off.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flowdesk/email"
	"flowdesk/queue"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const (
	dequeueTimeout = 5 * time.Second
	threadLockTTL  = 30 * time.Second
	lockRetryDelay = 500 * time.Millisecond
)

// DraftJob moves a freshly ingested message to the drafting stage.
type DraftJob struct {
	ThreadID  uint   `json:"thread_id"`
	MessageID uint   `json:"message_id"`
	ContactID uint   `json:"contact_id"`
	Workspace string `json:"workspace_id"`
}

// SendJob moves an approved draft to the send stage.
type SendJob struct {
	MessageID uint `json:"message_id"`
}

// Pipeline consumes the three stage queues. Work on a single thread is
// serialized through the Locker so two workers never race on one
// conversation.
type Pipeline struct {
	Queue  queue.Queue
	Locks  queue.Locker
	Email  *email.Service
	Logger *logrus.Logger
}

func NewPipeline(q queue.Queue, locks queue.Locker, emailSvc *email.Service) *Pipeline {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Pipeline{
		Queue:  q,
		Locks:  locks,
		Email:  emailSvc,
		Logger: logger,
	}
}

// Start runs all three stage consumers until ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	p.Logger.Info("Starting message pipeline workers...")
	go p.consume(ctx, queue.QueueInbound, p.HandleInbound)
	go p.consume(ctx, queue.QueueDraft, p.HandleDraft)
	go p.consume(ctx, queue.QueueSend, p.HandleSend)
}

// handlerResult distinguishes "failed" from "not runnable yet".
type handlerResult int

const (
	resultOK handlerResult = iota
	resultFailed
	resultLocked
)

func (p *Pipeline) consume(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) handlerResult) {
	for {
		select {
		case <-ctx.Done():
			p.Logger.WithField("queue", queueName).Info("Stopping pipeline worker")
			return
		default:
		}

		job, err := p.Queue.Dequeue(ctx, queueName, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("queue", queueName).Error("Dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		switch handler(ctx, job) {
		case resultOK:
		case resultLocked:
			// Another worker owns the thread; put the job back untouched.
			if err := p.Queue.Requeue(ctx, queueName, job); err != nil {
				p.Logger.WithError(err).WithField("job_id", job.ID).Error("Requeue failed")
			}
			time.Sleep(lockRetryDelay)
		case resultFailed:
			if err := p.Queue.Fail(ctx, queueName, job); err != nil {
				p.Logger.WithError(err).WithField("job_id", job.ID).Error("Could not record job failure")
			}
		}
	}
}

// HandleInbound ingests a provider webhook payload and, when it produced a
// message, queues the drafting stage.
func (p *Pipeline) HandleInbound(ctx context.Context, job *queue.Job) handlerResult {
	var hook email.InboundWebhook
	if err := json.Unmarshal(job.Payload, &hook); err != nil {
		p.reportFailure(job, queue.QueueInbound, fmt.Errorf("corrupt payload: %w", err))
		return resultFailed
	}

	result, err := p.Email.ProcessInbound(ctx, hook)
	if err != nil {
		p.reportFailure(job, queue.QueueInbound, err)
		return resultFailed
	}
	if result == nil {
		// Unroutable mail was dropped on purpose; nothing to draft.
		return resultOK
	}

	if err := p.Queue.Enqueue(ctx, queue.QueueDraft, DraftJob{
		ThreadID:  result.ThreadID,
		MessageID: result.MessageID,
		ContactID: result.ContactID,
		Workspace: result.WorkspaceID,
	}); err != nil {
		p.reportFailure(job, queue.QueueInbound, err)
		return resultFailed
	}

	p.Logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"thread_id": result.ThreadID,
	}).Info("Inbound message ingested")
	return resultOK
}

// HandleDraft generates the reply draft for a thread, holding the thread
// lock for the duration.
func (p *Pipeline) HandleDraft(ctx context.Context, job *queue.Job) handlerResult {
	var payload DraftJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.reportFailure(job, queue.QueueDraft, fmt.Errorf("corrupt payload: %w", err))
		return resultFailed
	}

	lockKey := threadLockKey(payload.ThreadID)
	ok, err := p.Locks.Acquire(ctx, lockKey, threadLockTTL)
	if err != nil {
		p.reportFailure(job, queue.QueueDraft, err)
		return resultFailed
	}
	if !ok {
		return resultLocked
	}
	defer p.Locks.Release(ctx, lockKey)

	draftID, err := p.Email.GenerateDraft(ctx, payload.Workspace, payload.ThreadID, payload.ContactID)
	if err != nil {
		p.reportFailure(job, queue.QueueDraft, err)
		return resultFailed
	}

	p.Logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"thread_id": payload.ThreadID,
		"draft_id":  draftID,
	}).Info("Reply draft ready for review")
	return resultOK
}

// HandleSend delivers an approved draft, serialized per thread.
func (p *Pipeline) HandleSend(ctx context.Context, job *queue.Job) handlerResult {
	var payload SendJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.reportFailure(job, queue.QueueSend, fmt.Errorf("corrupt payload: %w", err))
		return resultFailed
	}

	threadID, err := p.Email.ThreadIDForMessage(ctx, payload.MessageID)
	if err != nil {
		p.reportFailure(job, queue.QueueSend, err)
		return resultFailed
	}

	lockKey := threadLockKey(threadID)
	ok, err := p.Locks.Acquire(ctx, lockKey, threadLockTTL)
	if err != nil {
		p.reportFailure(job, queue.QueueSend, err)
		return resultFailed
	}
	if !ok {
		return resultLocked
	}
	defer p.Locks.Release(ctx, lockKey)

	result, err := p.Email.SendApproved(ctx, payload.MessageID)
	if err != nil {
		p.reportFailure(job, queue.QueueSend, err)
		return resultFailed
	}

	p.Logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"message_id": result.MessageID,
		"thread_id":  result.ThreadID,
	}).Info("Approved message sent")
	return resultOK
}

func (p *Pipeline) reportFailure(job *queue.Job, queueName string, err error) {
	p.Logger.WithError(err).WithFields(logrus.Fields{
		"queue":    queueName,
		"job_id":   job.ID,
		"attempts": job.Attempts,
	}).Error("Pipeline job failed")
	sentry.CaptureException(err)
}

func threadLockKey(threadID uint) string {
	return fmt.Sprintf("thread:%d", threadID)
}
