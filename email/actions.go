package email

import (
	"context"

	"flowdesk/registry"
)

type SendActionInput struct {
	To       string `json:"to" validate:"required,email"`
	Subject  string `json:"subject" validate:"required"`
	HTML     string `json:"html" validate:"required"`
	Text     string `json:"text"`
	ThreadID *uint  `json:"threadId"`
}

type SendActionOutput struct {
	MessageID         uint   `json:"messageId" validate:"required"`
	ThreadID          uint   `json:"threadId" validate:"required"`
	ProviderMessageID string `json:"providerMessageId"`
}

type CreateSequenceInput struct {
	Name  string              `json:"name" validate:"required"`
	Steps []SequenceStepInput `json:"steps" validate:"required,min=1,dive"`
}

type CreateSequenceOutput struct {
	SequenceID uint `json:"sequenceId" validate:"required"`
	Steps      int  `json:"steps"`
}

// RegisterActions exposes the email service through the action registry.
func RegisterActions(r *registry.Registry, svc *Service) error {
	caps := []registry.Capability{
		{
			Name:        "email.send",
			Description: "Send an email immediately from the workspace mailbox",
			Input:       SendActionInput{},
			Output:      SendActionOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*SendActionInput)
				result, err := svc.Send(ctx, actx.WorkspaceID, SendParams{
					To:       in.To,
					Subject:  in.Subject,
					Text:     in.Text,
					HTML:     in.HTML,
					ThreadID: in.ThreadID,
				})
				if err != nil {
					return nil, err
				}
				return &SendActionOutput{
					MessageID:         result.MessageID,
					ThreadID:          result.ThreadID,
					ProviderMessageID: result.ProviderMessageID,
				}, nil
			},
		},
		{
			Name:        "email.createSequence",
			Description: "Create an outreach sequence with ordered steps",
			Input:       CreateSequenceInput{},
			Output:      CreateSequenceOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*CreateSequenceInput)
				sequenceID, err := svc.CreateSequence(ctx, actx.WorkspaceID, in.Name, in.Steps)
				if err != nil {
					return nil, err
				}
				return &CreateSequenceOutput{SequenceID: sequenceID, Steps: len(in.Steps)}, nil
			},
		},
	}

	for _, cap := range caps {
		if err := r.Register(cap); err != nil {
			return err
		}
	}
	return nil
}
