package crm

import (
	"context"

	"flowdesk/registry"
)

type CreateContactInput struct {
	Email string                 `json:"email" validate:"required,email"`
	Name  string                 `json:"name"`
	Phone string                 `json:"phone"`
	Meta  map[string]interface{} `json:"meta"`
}

type CreateContactOutput struct {
	ContactID uint   `json:"contactId" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Created   bool   `json:"created"`
}

type UpsertCompanyInput struct {
	Name   string                 `json:"name" validate:"required"`
	Domain string                 `json:"domain"`
	Meta   map[string]interface{} `json:"meta"`
}

type UpsertCompanyOutput struct {
	CompanyID string `json:"companyId" validate:"required"`
}

type AddActivityInput struct {
	ContactID   uint                   `json:"contactId" validate:"required"`
	Type        string                 `json:"type" validate:"required"`
	Description string                 `json:"description" validate:"required"`
	Meta        map[string]interface{} `json:"meta"`
}

type AddActivityOutput struct {
	ActivityID string `json:"activityId" validate:"required"`
}

type DedupeInput struct{}

type DedupeOutput struct {
	Deduped   int `json:"deduped"`
	Remaining int `json:"remaining"`
}

// RegisterActions exposes the CRM service through the action registry.
func RegisterActions(r *registry.Registry, svc *Service) error {
	caps := []registry.Capability{
		{
			Name:        "crm.createContact",
			Description: "Create or update a contact by email",
			Input:       CreateContactInput{},
			Output:      CreateContactOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*CreateContactInput)
				contact, created, err := svc.UpsertContact(ctx, actx.WorkspaceID, UpsertParams{
					Email: in.Email,
					Name:  in.Name,
					Phone: in.Phone,
					Meta:  in.Meta,
				})
				if err != nil {
					return nil, err
				}
				return &CreateContactOutput{
					ContactID: contact.ID,
					Email:     contact.Email,
					Created:   created,
				}, nil
			},
		},
		{
			Name:        "crm.upsertCompany",
			Description: "Record a company, addressed by its name slug",
			Input:       UpsertCompanyInput{},
			Output:      UpsertCompanyOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*UpsertCompanyInput)
				companyID, err := svc.UpsertCompany(ctx, actx.WorkspaceID, in.Name, in.Domain, in.Meta)
				if err != nil {
					return nil, err
				}
				return &UpsertCompanyOutput{CompanyID: companyID}, nil
			},
		},
		{
			Name:        "crm.addActivity",
			Description: "Record an interaction on a contact's timeline",
			Input:       AddActivityInput{},
			Output:      AddActivityOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*AddActivityInput)
				activityID, err := svc.AddActivity(ctx, actx.WorkspaceID, in.ContactID, in.Type, in.Description, in.Meta)
				if err != nil {
					return nil, err
				}
				return &AddActivityOutput{ActivityID: activityID}, nil
			},
		},
		{
			Name:        "crm.dedupeContacts",
			Description: "Collapse duplicate contacts, keeping the oldest per email",
			Input:       DedupeInput{},
			Output:      DedupeOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				result, err := svc.DedupeContacts(ctx, actx.WorkspaceID)
				if err != nil {
					return nil, err
				}
				return &DedupeOutput{Deduped: result.Deduped, Remaining: result.Remaining}, nil
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
