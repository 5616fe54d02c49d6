// Package crm owns contacts and their activity history.
package crm

import (
	"context"
	"log"
	"os"
	"regexp"
	"strings"

	"flowdesk/apperr"
	"flowdesk/models"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		DB:     db,
		Logger: log.New(os.Stdout, "CRM: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// UpsertParams carries the fields a contact can be created or updated with.
// Empty fields never clobber existing values; Meta is shallow-merged.
type UpsertParams struct {
	Email string
	Name  string
	Phone string
	Meta  map[string]interface{}
}

// UpsertContact creates or updates the live contact keyed by
// (workspace, email). A tombstoned contact does not block re-creation under
// the same address.
func (s *Service) UpsertContact(ctx context.Context, workspaceID string, params UpsertParams) (*models.Contact, bool, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, false, apperr.Validation("email is required")
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, false, apperr.Validation("invalid email address: %s", email)
	}

	var contact models.Contact
	err := s.DB.WithContext(ctx).
		Where("workspace_id = ? AND email = ?", workspaceID, email).
		First(&contact).Error

	if err == nil {
		if params.Name != "" {
			contact.Name = params.Name
		}
		if params.Phone != "" {
			contact.Phone = params.Phone
		}
		if len(params.Meta) > 0 {
			if contact.Meta == nil {
				contact.Meta = map[string]interface{}{}
			}
			for k, v := range params.Meta {
				contact.Meta[k] = v
			}
		}
		if err := s.DB.Save(&contact).Error; err != nil {
			return nil, false, err
		}
		return &contact, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	contact = models.Contact{
		WorkspaceID: workspaceID,
		Email:       email,
		Name:        params.Name,
		Phone:       params.Phone,
		Meta:        params.Meta,
	}
	if err := s.DB.Create(&contact).Error; err != nil {
		return nil, false, err
	}

	if err := models.RecordEvent(s.DB, workspaceID, models.EventContactCreated, map[string]interface{}{
		"contact_id": contact.ID,
		"email":      contact.Email,
	}); err != nil {
		return nil, false, err
	}
	return &contact, true, nil
}

// DedupeResult reports one dedupe pass.
type DedupeResult struct {
	Deduped   int
	Remaining int
}

// DedupeContacts tombstones duplicate live contacts per email, keeping the
// earliest-created row. Running it twice in a row is a no-op.
func (s *Service) DedupeContacts(ctx context.Context, workspaceID string) (*DedupeResult, error) {
	var contacts []models.Contact
	err := s.DB.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC, id ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(contacts))
	deduped := 0
	for i := range contacts {
		email := contacts[i].Email
		if !seen[email] {
			seen[email] = true
			continue
		}
		if err := s.DB.Delete(&contacts[i]).Error; err != nil {
			return nil, err
		}
		deduped++
	}

	result := &DedupeResult{Deduped: deduped, Remaining: len(contacts) - deduped}
	if deduped > 0 {
		s.Logger.Printf("Deduped %d contacts in workspace %s, %d remaining", deduped, workspaceID, result.Remaining)
	}
	return result, nil
}

// UpsertCompany records a company against the workspace. Companies are
// identified by a slug derived from their name, so repeating the call with
// the same name addresses the same company. Like activities, they live in
// the event log rather than a table of their own.
func (s *Service) UpsertCompany(ctx context.Context, workspaceID, name, domain string, meta map[string]interface{}) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("company name is required")
	}

	companyID := "company_" + whitespaceRe.ReplaceAllString(strings.ToLower(name), "_")
	data := map[string]interface{}{
		"company_id": companyID,
		"name":       name,
	}
	if domain != "" {
		data["domain"] = domain
	}
	if len(meta) > 0 {
		data["meta"] = meta
	}
	if err := models.RecordEvent(s.DB, workspaceID, models.EventCompanyUpserted, data); err != nil {
		return "", err
	}
	return companyID, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// AddActivity records an interaction against a live contact and returns the
// activity's identifier. Activities live in the event log, not a table of
// their own.
func (s *Service) AddActivity(ctx context.Context, workspaceID string, contactID uint, activityType, description string, meta map[string]interface{}) (string, error) {
	var contact models.Contact
	err := s.DB.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", contactID, workspaceID).
		First(&contact).Error
	if err == gorm.ErrRecordNotFound {
		return "", apperr.NotFound("contact %d not found", contactID)
	}
	if err != nil {
		return "", err
	}

	activityID := "act_" + uuid.NewString()
	data := map[string]interface{}{
		"activity_id": activityID,
		"contact_id":  contact.ID,
		"type":        activityType,
		"description": description,
	}
	if len(meta) > 0 {
		data["meta"] = meta
	}
	if err := models.RecordEvent(s.DB, workspaceID, models.EventActivityCreated, data); err != nil {
		return "", err
	}
	return activityID, nil
}

// GetContact fetches one live contact, workspace-scoped.
func (s *Service) GetContact(ctx context.Context, workspaceID string, contactID uint) (*models.Contact, error) {
	var contact models.Contact
	err := s.DB.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", contactID, workspaceID).
		First(&contact).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("contact %d not found", contactID)
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListContacts returns the workspace's live contacts, newest first.
func (s *Service) ListContacts(ctx context.Context, workspaceID string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.DB.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&contacts).Error
	return contacts, err
}
