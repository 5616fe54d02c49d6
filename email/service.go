// Package email implements the message pipeline's domain logic: ingesting
// inbound mail, drafting replies, and sending only what a human approved.
package email

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"flowdesk/apperr"
	"flowdesk/crm"
	"flowdesk/models"
	"flowdesk/utils"

	"gorm.io/gorm"
)

// ContactUpserter is the slice of the CRM service this package needs.
type ContactUpserter interface {
	UpsertContact(ctx context.Context, workspaceID string, params crm.UpsertParams) (*models.Contact, bool, error)
}

type Service struct {
	DB        *gorm.DB
	Transport Transport
	Contacts  ContactUpserter
	Composer  Composer
	Logger    *log.Logger
}

func NewService(db *gorm.DB, transport Transport, contacts ContactUpserter) *Service {
	return &Service{
		DB:        db,
		Transport: transport,
		Contacts:  contacts,
		Composer:  AckComposer{},
		Logger:    log.New(os.Stdout, "EMAIL: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// InboundWebhook is the provider's inbound-mail payload. Field names follow
// the provider's JSON casing.
type InboundWebhook struct {
	MessageID   string                   `json:"MessageID" validate:"required"`
	From        string                   `json:"From" validate:"required"`
	To          string                   `json:"To" validate:"required"`
	Subject     string                   `json:"Subject"`
	TextBody    string                   `json:"TextBody"`
	HtmlBody    string                   `json:"HtmlBody"`
	Headers     []models.MessageHeader   `json:"Headers"`
	Attachments []map[string]interface{} `json:"Attachments"`
}

// InboundResult identifies what an inbound webhook produced.
type InboundResult struct {
	WorkspaceID string `json:"workspace_id"`
	MessageID   uint   `json:"message_id"`
	ThreadID    uint   `json:"thread_id"`
	ContactID   uint   `json:"contact_id"`
}

// SendResult identifies a sent message.
type SendResult struct {
	MessageID         uint   `json:"message_id"`
	ThreadID          uint   `json:"thread_id"`
	ProviderMessageID string `json:"provider_message_id"`
}

// SendParams is a direct outbound send. ThreadID continues an existing
// conversation; nil starts a new one.
type SendParams struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	ThreadID *uint
}

// Send delivers mail immediately, bypassing the draft/approval stages. The
// message row is only written after the transport accepted the mail, so a
// transport failure leaves no phantom "sent" record.
func (s *Service) Send(ctx context.Context, workspaceID string, params SendParams) (*SendResult, error) {
	to := utils.ExtractEmail(params.To)
	if to == "" {
		return nil, apperr.Validation("recipient is required")
	}

	mailbox, err := s.workspaceMailbox(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	var thread *models.Thread
	var inReplyTo string
	if params.ThreadID != nil {
		thread, err = s.getThread(ctx, workspaceID, *params.ThreadID)
		if err != nil {
			return nil, err
		}
		if last := s.latestMessage(thread.ID); last != nil {
			inReplyTo = last.ProviderMessageID
		}
	} else {
		thread = &models.Thread{
			WorkspaceID: workspaceID,
			MailboxID:   mailbox.ID,
			Subject:     params.Subject,
			Status:      models.ThreadOpen,
		}
		if err := s.DB.Create(thread).Error; err != nil {
			return nil, err
		}
	}

	providerID, err := s.Transport.Send(ctx, OutboundEmail{
		From:      mailbox.FromEmail,
		FromName:  mailbox.FromName,
		To:        to,
		Subject:   params.Subject,
		Text:      params.Text,
		HTML:      params.HTML,
		InReplyTo: inReplyTo,
	})
	if err != nil {
		return nil, err
	}

	message := models.Message{
		WorkspaceID:       workspaceID,
		ThreadID:          thread.ID,
		Direction:         models.DirectionOutbound,
		Status:            models.MessageSent,
		ProviderMessageID: providerID,
		InReplyTo:         inReplyTo,
		Subject:           params.Subject,
		Text:              params.Text,
		HTML:              params.HTML,
	}
	if err := s.DB.Create(&message).Error; err != nil {
		return nil, err
	}
	if err := s.touchThread(thread); err != nil {
		return nil, err
	}
	return &SendResult{
		MessageID:         message.ID,
		ThreadID:          thread.ID,
		ProviderMessageID: providerID,
	}, nil
}

// ProcessInbound ingests one provider webhook: resolve the mailbox, upsert
// the sender as a contact, attach the message to its thread. Mail for an
// unknown mailbox is dropped with a warning, not an error, so one stray
// message cannot wedge the queue. Re-delivery of an already-ingested
// provider message ID is a no-op returning the original result.
func (s *Service) ProcessInbound(ctx context.Context, hook InboundWebhook) (*InboundResult, error) {
	to := utils.ExtractEmail(hook.To)

	var mailbox models.Mailbox
	err := s.DB.WithContext(ctx).Where("from_email = ?", to).First(&mailbox).Error
	if err == gorm.ErrRecordNotFound {
		s.Logger.Printf("⚠️  Dropping inbound mail for unknown mailbox %s (provider id %s)", to, hook.MessageID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	workspaceID := mailbox.WorkspaceID

	// Idempotency: the provider retries webhooks.
	var existing models.Message
	err = s.DB.Where("workspace_id = ? AND provider_message_id = ? AND direction = ?",
		workspaceID, hook.MessageID, models.DirectionInbound).First(&existing).Error
	if err == nil {
		var thread models.Thread
		if err := s.DB.First(&thread, existing.ThreadID).Error; err != nil {
			return nil, err
		}
		result := &InboundResult{
			WorkspaceID: workspaceID,
			MessageID:   existing.ID,
			ThreadID:    existing.ThreadID,
		}
		if thread.ContactID != nil {
			result.ContactID = *thread.ContactID
		}
		return result, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	contact, _, err := s.Contacts.UpsertContact(ctx, workspaceID, crm.UpsertParams{
		Email: utils.ExtractEmail(hook.From),
		Name:  utils.ExtractName(hook.From),
	})
	if err != nil {
		return nil, err
	}

	thread, err := s.resolveThread(ctx, workspaceID, &mailbox, hook)
	if err != nil {
		return nil, err
	}
	if thread.ContactID == nil {
		thread.ContactID = &contact.ID
	}

	text := hook.TextBody
	if text == "" && hook.HtmlBody != "" {
		text = utils.StripHTML(hook.HtmlBody)
	}
	message := models.Message{
		WorkspaceID:       workspaceID,
		ThreadID:          thread.ID,
		Direction:         models.DirectionInbound,
		Status:            models.MessageReceived,
		ProviderMessageID: hook.MessageID,
		InReplyTo:         headerValue(hook.Headers, "In-Reply-To"),
		Subject:           hook.Subject,
		Text:              text,
		HTML:              hook.HtmlBody,
		Headers:           hook.Headers,
		Attachments:       hook.Attachments,
	}
	if err := s.DB.Create(&message).Error; err != nil {
		return nil, err
	}
	if err := s.touchThread(thread); err != nil {
		return nil, err
	}

	if err := models.RecordEvent(s.DB, workspaceID, models.EventEmailInbound, map[string]interface{}{
		"message_id": message.ID,
		"thread_id":  thread.ID,
		"contact_id": contact.ID,
		"from":       utils.ExtractEmail(hook.From),
	}); err != nil {
		return nil, err
	}

	return &InboundResult{
		WorkspaceID: workspaceID,
		MessageID:   message.ID,
		ThreadID:    thread.ID,
		ContactID:   contact.ID,
	}, nil
}

// GenerateDraft composes a reply draft for the thread's latest inbound
// message. If the latest message is already an outbound draft the existing
// draft is returned, so retried jobs do not stack up duplicates.
func (s *Service) GenerateDraft(ctx context.Context, workspaceID string, threadID, contactID uint) (uint, error) {
	thread, err := s.getThread(ctx, workspaceID, threadID)
	if err != nil {
		return 0, err
	}

	latest := s.latestMessage(thread.ID)
	if latest == nil {
		return 0, apperr.NotFound("thread %d has no messages", threadID)
	}
	if latest.Direction == models.DirectionOutbound && latest.Status == models.MessageDraft {
		return latest.ID, nil
	}

	var inbound *models.Message
	var m models.Message
	err = s.DB.Where("thread_id = ? AND direction = ?", thread.ID, models.DirectionInbound).
		Order("id DESC").First(&m).Error
	if err == nil {
		inbound = &m
	} else if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	var contact *models.Contact
	if contactID != 0 {
		var c models.Contact
		if err := s.DB.Where("id = ? AND workspace_id = ?", contactID, workspaceID).
			First(&c).Error; err == nil {
			contact = &c
		}
	}

	subject, text, html := s.Composer.Compose(thread, inbound, contact)
	draft := models.Message{
		WorkspaceID: workspaceID,
		ThreadID:    thread.ID,
		Direction:   models.DirectionOutbound,
		Status:      models.MessageDraft,
		Subject:     subject,
		Text:        text,
		HTML:        html,
	}
	if inbound != nil {
		draft.InReplyTo = inbound.ProviderMessageID
	}
	if err := s.DB.Create(&draft).Error; err != nil {
		return 0, err
	}

	if err := models.RecordEvent(s.DB, workspaceID, models.EventDraftCreated, map[string]interface{}{
		"message_id": draft.ID,
		"thread_id":  thread.ID,
	}); err != nil {
		return 0, err
	}
	return draft.ID, nil
}

// Approve marks a draft ready to send. Approving an already-approved message
// is a no-op; any other state is a conflict.
func (s *Service) Approve(ctx context.Context, workspaceID string, messageID uint) error {
	message, err := s.getMessage(ctx, workspaceID, messageID)
	if err != nil {
		return err
	}

	switch message.Status {
	case models.MessageApproved:
		return nil
	case models.MessageDraft:
		message.Status = models.MessageApproved
		return s.DB.Save(message).Error
	default:
		return apperr.NotApproved("message %d is %s, only drafts can be approved", messageID, message.Status)
	}
}

// SendApproved delivers an approved draft. The status check happens before
// any transport work: a message that is not approved is never handed to the
// transport. An already-sent message short-circuits so retried jobs do not
// double-send.
func (s *Service) SendApproved(ctx context.Context, messageID uint) (*SendResult, error) {
	var message models.Message
	err := s.DB.WithContext(ctx).First(&message, messageID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("message %d not found", messageID)
	}
	if err != nil {
		return nil, err
	}

	if message.Status == models.MessageSent {
		return &SendResult{
			MessageID:         message.ID,
			ThreadID:          message.ThreadID,
			ProviderMessageID: message.ProviderMessageID,
		}, nil
	}
	if message.Status != models.MessageApproved {
		return nil, apperr.NotApproved("message %d is %s, not approved", messageID, message.Status)
	}

	var thread models.Thread
	if err := s.DB.First(&thread, message.ThreadID).Error; err != nil {
		return nil, err
	}
	var mailbox models.Mailbox
	if err := s.DB.First(&mailbox, thread.MailboxID).Error; err != nil {
		return nil, err
	}
	if thread.ContactID == nil {
		return nil, apperr.NotFound("thread %d has no contact to reply to", thread.ID)
	}
	var contact models.Contact
	if err := s.DB.First(&contact, *thread.ContactID).Error; err != nil {
		return nil, err
	}

	providerID, err := s.Transport.Send(ctx, OutboundEmail{
		From:      mailbox.FromEmail,
		FromName:  mailbox.FromName,
		To:        contact.Email,
		Subject:   message.Subject,
		Text:      message.Text,
		HTML:      message.HTML,
		InReplyTo: message.InReplyTo,
	})
	if err != nil {
		message.Status = models.MessageFailed
		message.FailureReason = err.Error()
		if saveErr := s.DB.Save(&message).Error; saveErr != nil {
			return nil, saveErr
		}
		return nil, fmt.Errorf("send message %d: %w", messageID, err)
	}

	message.Status = models.MessageSent
	message.ProviderMessageID = providerID
	if err := s.DB.Save(&message).Error; err != nil {
		return nil, err
	}
	if err := s.touchThread(&thread); err != nil {
		return nil, err
	}
	return &SendResult{
		MessageID:         message.ID,
		ThreadID:          message.ThreadID,
		ProviderMessageID: providerID,
	}, nil
}

// SequenceStepInput is one step of a new sequence.
type SequenceStepInput struct {
	Subject   string `json:"subject" validate:"required"`
	Body      string `json:"body" validate:"required"`
	DelayDays int    `json:"delayDays" validate:"gte=0"`
}

// CreateSequence persists an outreach sequence with its steps.
func (s *Service) CreateSequence(ctx context.Context, workspaceID, name string, steps []SequenceStepInput) (uint, error) {
	if name == "" {
		return 0, apperr.Validation("sequence name is required")
	}
	if len(steps) == 0 {
		return 0, apperr.Validation("sequence needs at least one step")
	}

	sequence := models.Sequence{
		WorkspaceID: workspaceID,
		Name:        name,
		Status:      "draft",
	}
	for i, step := range steps {
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			StepNumber: i + 1,
			DelayDays:  step.DelayDays,
			Subject:    step.Subject,
			Body:       step.Body,
		})
	}
	if err := s.DB.WithContext(ctx).Create(&sequence).Error; err != nil {
		return 0, err
	}

	if err := models.RecordEvent(s.DB, workspaceID, models.EventSequenceCreated, map[string]interface{}{
		"sequence_id": sequence.ID,
		"name":        name,
		"steps":       len(steps),
	}); err != nil {
		return 0, err
	}
	return sequence.ID, nil
}

// ThreadIDForMessage resolves which thread a message belongs to.
func (s *Service) ThreadIDForMessage(ctx context.Context, messageID uint) (uint, error) {
	var message models.Message
	err := s.DB.WithContext(ctx).Select("id", "thread_id").First(&message, messageID).Error
	if err == gorm.ErrRecordNotFound {
		return 0, apperr.NotFound("message %d not found", messageID)
	}
	if err != nil {
		return 0, err
	}
	return message.ThreadID, nil
}

// ListThreadMessages returns a thread's messages in arrival order.
func (s *Service) ListThreadMessages(ctx context.Context, workspaceID string, threadID uint) ([]models.Message, error) {
	if _, err := s.getThread(ctx, workspaceID, threadID); err != nil {
		return nil, err
	}
	var messages []models.Message
	err := s.DB.Where("thread_id = ?", threadID).Order("id ASC").Find(&messages).Error
	return messages, err
}

func (s *Service) workspaceMailbox(ctx context.Context, workspaceID string) (*models.Mailbox, error) {
	var mailbox models.Mailbox
	err := s.DB.WithContext(ctx).Where("workspace_id = ?", workspaceID).
		Order("id ASC").First(&mailbox).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("workspace %s has no mailbox configured", workspaceID)
	}
	if err != nil {
		return nil, err
	}
	return &mailbox, nil
}

func (s *Service) getThread(ctx context.Context, workspaceID string, threadID uint) (*models.Thread, error) {
	var thread models.Thread
	err := s.DB.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", threadID, workspaceID).
		First(&thread).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("thread %d not found", threadID)
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (s *Service) getMessage(ctx context.Context, workspaceID string, messageID uint) (*models.Message, error) {
	var message models.Message
	err := s.DB.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", messageID, workspaceID).
		First(&message).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("message %d not found", messageID)
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *Service) latestMessage(threadID uint) *models.Message {
	var message models.Message
	err := s.DB.Where("thread_id = ?", threadID).Order("id DESC").First(&message).Error
	if err != nil {
		return nil
	}
	return &message
}

// resolveThread finds the conversation a message belongs to by following its
// In-Reply-To header; unmatched messages start a fresh thread.
func (s *Service) resolveThread(ctx context.Context, workspaceID string, mailbox *models.Mailbox, hook InboundWebhook) (*models.Thread, error) {
	if inReplyTo := headerValue(hook.Headers, "In-Reply-To"); inReplyTo != "" {
		var parent models.Message
		err := s.DB.Where("workspace_id = ? AND provider_message_id = ?", workspaceID, inReplyTo).
			First(&parent).Error
		if err == nil {
			var thread models.Thread
			if err := s.DB.First(&thread, parent.ThreadID).Error; err != nil {
				return nil, err
			}
			return &thread, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	thread := models.Thread{
		WorkspaceID: workspaceID,
		MailboxID:   mailbox.ID,
		Subject:     hook.Subject,
		Status:      models.ThreadOpen,
	}
	if err := s.DB.Create(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

// touchThread advances LastMessageAt. It never moves backwards, even if the
// clock or a retried job hands us a stale timestamp.
func (s *Service) touchThread(thread *models.Thread) error {
	now := time.Now()
	if thread.LastMessageAt == nil || now.After(*thread.LastMessageAt) {
		thread.LastMessageAt = &now
	}
	return s.DB.Save(thread).Error
}

func headerValue(headers []models.MessageHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
