package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
)

const testCentralURL = "https://central.example.com"

type formFixture struct {
	users    *mockUserRepo
	projects *mockProjectRepo
	forms    *mockFormRepo
	gateway  *mockGateway
	svc      FormService
}

func newFormFixture() *formFixture {
	users := newMockUserRepo(&models.User{ID: "actor", Email: "manager@example.com"})
	projects := &mockProjectRepo{projects: []*models.Project{
		{Name: "highlands", CentralID: "7", Users: []string{"actor"}},
	}}
	forms := &mockFormRepo{}
	gateway := &mockGateway{}
	admins := NewAdminService(users, projects, forms, &recordingAudit{}, "", "", zap.NewNop())
	svc := NewFormService(projects, forms, users, gateway, admins, &recordingAudit{}, testCentralURL, zap.NewNop())
	return &formFixture{users: users, projects: projects, forms: forms, gateway: gateway, svc: svc}
}

func strPtr(s string) *string { return &s }

func TestFormService_Create(t *testing.T) {
	f := newFormFixture()

	form, err := f.svc.Create(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx-bytes"))
	require.NoError(t, err)

	assert.True(t, form.Draft)
	assert.False(t, form.Live)
	require.NotNil(t, form.DraftVersion)
	assert.Equal(t, "1", *form.DraftVersion)
	assert.Equal(t, []string{"actor"}, form.Users)

	// Upstream got the full sequence.
	assert.Equal(t, []string{"7/household-survey"}, f.gateway.createdForms)
	assert.Equal(t, []string{"7/data-collector-household-survey"}, f.gateway.createdAppUsers)
	assert.Equal(t, []string{"7/household-survey/2/42"}, f.gateway.assignedRoles)

	// Collect settings point at the app user key and the draft test token.
	require.NotNil(t, form.CollectionDetails)
	assert.Equal(t, testCentralURL+"/v1/key/app-token/projects/7", form.CollectionDetails.General.ServerURL)
	assert.Equal(t, "household-survey", form.CollectionDetails.Project.Name)
	require.NotNil(t, form.DraftCollectionDetails)
	assert.Equal(t, testCentralURL+"/v1/test/draft-token/projects/7/forms/household-survey/draft", form.DraftCollectionDetails.General.ServerURL)
	assert.Equal(t, "[Draft] household-survey", form.DraftCollectionDetails.Project.Name)

	// Local fan-out: project tracks the form, actor gains collector and
	// analyst scopes.
	project, err := f.projects.GetByName(context.Background(), "highlands")
	require.NoError(t, err)
	assert.Contains(t, project.Forms, "household-survey")

	actor, err := f.users.GetByID(context.Background(), "actor")
	require.NoError(t, err)
	assert.Contains(t, actor.Roles.DataCollector, "household-survey")
	assert.Contains(t, actor.Roles.Analyst, "household-survey")
	assert.Contains(t, actor.Forms, "household-survey")
}

func TestFormService_Create_ExplicitVersion(t *testing.T) {
	f := newFormFixture()

	form, err := f.svc.Create(context.Background(), "actor", "highlands", "household-survey", "5", []byte("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "5", *form.DraftVersion)
}

func TestFormService_Create_UnknownProject(t *testing.T) {
	f := newFormFixture()

	_, err := f.svc.Create(context.Background(), "actor", "lowlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFormService_Create_NotAMember(t *testing.T) {
	f := newFormFixture()
	f.users.users["outsider"] = &models.User{ID: "outsider", Email: "out@example.com"}

	_, err := f.svc.Create(context.Background(), "outsider", "highlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestFormService_Create_DuplicateName(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{Name: "household-survey", Project: "highlands"})

	_, err := f.svc.Create(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

// Form names identify forms store-wide, so a name taken in another
// project still collides.
func TestFormService_Create_DuplicateNameInOtherProject(t *testing.T) {
	f := newFormFixture()
	f.projects.projects = append(f.projects.projects, &models.Project{Name: "lowlands", CentralID: "8", Users: []string{"actor"}})
	f.forms.forms = append(f.forms.forms, &models.Form{Name: "household-survey", Project: "lowlands"})

	_, err := f.svc.Create(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Empty(t, f.gateway.createdForms)
}

func TestFormService_Create_UpstreamFailureWritesNothing(t *testing.T) {
	f := newFormFixture()
	f.gateway.createFormErr = apperrors.ErrUpstreamFailure

	_, err := f.svc.Create(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrUpstreamFailure)

	assert.Empty(t, f.forms.forms)
	project, getErr := f.projects.GetByName(context.Background(), "highlands")
	require.NoError(t, getErr)
	assert.Empty(t, project.Forms)
}

func TestFormService_UploadDraft_AutoIncrementsVersion(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("3"),
	})

	version, err := f.svc.UploadDraft(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "4", version)

	form, err := f.forms.Get(context.Background(), "highlands", "household-survey")
	require.NoError(t, err)
	assert.Equal(t, "4", *form.DraftVersion)
	assert.Equal(t, []string{"7/household-survey"}, f.gateway.uploadedDrafts)
}

func TestFormService_UploadDraft_IncrementsFromLiveVersion(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Live: true, LiveVersion: strPtr("2"),
	})

	version, err := f.svc.UploadDraft(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "3", version)
}

func TestFormService_UploadDraft_NonNumericVersion(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("2024-01-beta"),
	})

	_, err := f.svc.UploadDraft(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.Empty(t, f.gateway.uploadedDrafts)
}

func TestFormService_UploadDraft_ExplicitVersionSkipsParsing(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("2024-01-beta"),
	})

	version, err := f.svc.UploadDraft(context.Background(), "actor", "highlands", "household-survey", "2024-02", []byte("xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "2024-02", version)
}

func TestFormService_UploadDraft_LocalRecordVanished(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("3"),
	})
	f.forms.setDraftErr = apperrors.ErrNotFound

	_, err := f.svc.UploadDraft(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.ErrorIs(t, err, apperrors.ErrInconsistentState)

	// The upstream write had already happened when the local record
	// disappeared.
	assert.Len(t, f.gateway.uploadedDrafts, 1)
}

func TestFormService_Publish(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("4"),
		DraftCollectionDetails: &models.CollectSettings{},
	})

	require.NoError(t, f.svc.Publish(context.Background(), "actor", "highlands", "household-survey"))

	assert.Equal(t, []string{"7/household-survey@4"}, f.gateway.publishedCalls)

	form, err := f.forms.Get(context.Background(), "highlands", "household-survey")
	require.NoError(t, err)
	assert.False(t, form.Draft)
	assert.True(t, form.Live)
	require.NotNil(t, form.LiveVersion)
	assert.Equal(t, "4", *form.LiveVersion)
	assert.Nil(t, form.DraftVersion)
	assert.Nil(t, form.DraftCollectionDetails)
}

func TestFormService_Publish_NoDraft(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Live: true, LiveVersion: strPtr("2"),
	})

	err := f.svc.Publish(context.Background(), "actor", "highlands", "household-survey")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Empty(t, f.gateway.publishedCalls)
}

func TestFormService_Publish_UnknownForm(t *testing.T) {
	f := newFormFixture()

	err := f.svc.Publish(context.Background(), "actor", "highlands", "ghost-form")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFormService_Publish_UpstreamFailure(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("4"),
	})
	f.gateway.publishErr = apperrors.ErrUpstreamFailure

	err := f.svc.Publish(context.Background(), "actor", "highlands", "household-survey")
	require.ErrorIs(t, err, apperrors.ErrUpstreamFailure)

	form, getErr := f.forms.Get(context.Background(), "highlands", "household-survey")
	require.NoError(t, getErr)
	assert.True(t, form.Draft)
	assert.False(t, form.Live)
}

func TestFormService_CreateThenPublish(t *testing.T) {
	f := newFormFixture()

	_, err := f.svc.Create(context.Background(), "actor", "highlands", "household-survey", "", []byte("xlsx"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Publish(context.Background(), "actor", "highlands", "household-survey"))

	form, err := f.forms.Get(context.Background(), "highlands", "household-survey")
	require.NoError(t, err)
	assert.True(t, form.Live)
	assert.False(t, form.Draft)
	assert.Equal(t, "1", *form.LiveVersion)
	assert.Nil(t, form.DraftVersion)

	// A second publish has no draft left to promote.
	err = f.svc.Publish(context.Background(), "actor", "highlands", "household-survey")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

// Published upstream but gone locally: the caller must learn the two sides
// disagree, not see a plain not-found.
func TestFormService_Publish_LocalRecordVanished(t *testing.T) {
	f := newFormFixture()
	f.forms.forms = append(f.forms.forms, &models.Form{
		Name: "household-survey", Project: "highlands", CentralID: "household-survey",
		Draft: true, DraftVersion: strPtr("4"),
	})
	f.forms.setLiveErr = apperrors.ErrNotFound

	err := f.svc.Publish(context.Background(), "actor", "highlands", "household-survey")
	require.ErrorIs(t, err, apperrors.ErrInconsistentState)
	assert.Len(t, f.gateway.publishedCalls, 1)
}
