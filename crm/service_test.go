package crm

import (
	"context"
	"fmt"
	"testing"

	"flowdesk/apperr"
	"flowdesk/config"
	"flowdesk/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func TestUpsertContactCreates(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	contact, created, err := svc.UpsertContact(context.Background(), "ws_1", UpsertParams{
		Email: "Jane@Example.com",
		Name:  "Jane Smith",
		Meta:  map[string]interface{}{"source": "webform"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "jane@example.com", contact.Email, "emails are normalized to lowercase")

	var events []models.Event
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventContactCreated, events[0].Type)
}

func TestUpsertContactMerges(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	first, created, err := svc.UpsertContact(ctx, "ws_1", UpsertParams{
		Email: "jane@example.com",
		Name:  "Jane",
		Meta:  map[string]interface{}{"source": "webform", "city": "Austin"},
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.UpsertContact(ctx, "ws_1", UpsertParams{
		Email: "jane@example.com",
		Phone: "+1 555 0100",
		Meta:  map[string]interface{}{"source": "email"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jane", second.Name, "empty fields must not clobber")
	assert.Equal(t, "+1 555 0100", second.Phone)
	assert.Equal(t, "email", second.Meta["source"], "meta is shallow-merged")
	assert.Equal(t, "Austin", second.Meta["city"])

	// Only the create emitted an event.
	var count int64
	db.Model(&models.Event{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestUpsertContactRejectsBadEmail(t *testing.T) {
	svc := NewService(newTestDB(t))

	_, _, err := svc.UpsertContact(context.Background(), "ws_1", UpsertParams{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, _, err = svc.UpsertContact(context.Background(), "ws_1", UpsertParams{})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestUpsertContactIsWorkspaceScoped(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, created, err := svc.UpsertContact(ctx, "ws_1", UpsertParams{Email: "jane@example.com"})
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = svc.UpsertContact(ctx, "ws_2", UpsertParams{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, created, "same email in another workspace is a different contact")
}

func TestUpsertContactAfterTombstone(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	contact, _, err := svc.UpsertContact(ctx, "ws_1", UpsertParams{Email: "jane@example.com"})
	require.NoError(t, err)
	require.NoError(t, db.Delete(contact).Error)

	again, created, err := svc.UpsertContact(ctx, "ws_1", UpsertParams{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, created, "a tombstoned contact must not block re-creation")
	assert.NotEqual(t, contact.ID, again.ID)
}

func TestDedupeContacts(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	// Duplicates inserted directly, bypassing the upsert path.
	rows := []models.Contact{
		{WorkspaceID: "ws_1", Email: "jane@example.com", Name: "Jane v1"},
		{WorkspaceID: "ws_1", Email: "jane@example.com", Name: "Jane v2"},
		{WorkspaceID: "ws_1", Email: "jane@example.com", Name: "Jane v3"},
		{WorkspaceID: "ws_1", Email: "bob@example.com", Name: "Bob"},
		{WorkspaceID: "ws_2", Email: "jane@example.com", Name: "Other workspace"},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	result, err := svc.DedupeContacts(ctx, "ws_1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deduped)
	assert.Equal(t, 2, result.Remaining)

	var survivors []models.Contact
	require.NoError(t, db.Where("workspace_id = ?", "ws_1").Order("id ASC").Find(&survivors).Error)
	require.Len(t, survivors, 2)
	assert.Equal(t, "Jane v1", survivors[0].Name, "earliest row wins")

	// Other workspace untouched.
	var otherCount int64
	db.Model(&models.Contact{}).Where("workspace_id = ?", "ws_2").Count(&otherCount)
	assert.EqualValues(t, 1, otherCount)

	// Second pass finds nothing.
	result, err = svc.DedupeContacts(ctx, "ws_1")
	require.NoError(t, err)
	assert.Zero(t, result.Deduped)
	assert.Equal(t, 2, result.Remaining)
}

func TestUpsertCompany(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	companyID, err := svc.UpsertCompany(ctx, "ws_1", "Acme Real Estate", "acme.test",
		map[string]interface{}{"size": "small"})
	require.NoError(t, err)
	assert.Equal(t, "company_acme_real_estate", companyID)

	var events []models.Event
	require.NoError(t, db.Where("type = ?", models.EventCompanyUpserted).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, companyID, events[0].Data["company_id"])
	assert.Equal(t, "Acme Real Estate", events[0].Data["name"])
	assert.Equal(t, "acme.test", events[0].Data["domain"])

	// Same name addresses the same company.
	again, err := svc.UpsertCompany(ctx, "ws_1", "acme  real estate", "", nil)
	require.NoError(t, err)
	assert.Equal(t, companyID, again)
}

func TestUpsertCompanyRequiresName(t *testing.T) {
	svc := NewService(newTestDB(t))

	_, err := svc.UpsertCompany(context.Background(), "ws_1", "   ", "", nil)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestAddActivity(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	contact, _, err := svc.UpsertContact(ctx, "ws_1", UpsertParams{Email: "jane@example.com"})
	require.NoError(t, err)

	activityID, err := svc.AddActivity(ctx, "ws_1", contact.ID, "note", "Called about the listing", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, activityID)

	var events []models.Event
	require.NoError(t, db.Where("type = ?", models.EventActivityCreated).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, activityID, events[0].Data["activity_id"])
	assert.Equal(t, "note", events[0].Data["type"])
}

func TestAddActivityUnknownContact(t *testing.T) {
	svc := NewService(newTestDB(t))

	_, err := svc.AddActivity(context.Background(), "ws_1", 999, "note", "nope", nil)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}
