package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

// fakeAuthService implements services.AuthService with canned results.
type fakeAuthService struct {
	registerID  string
	registerErr error
	token       string
	loginErr    error
	profile     *models.User
	profileErr  error
	deleted     *models.User
	deleteErr   error
}

func (f *fakeAuthService) Register(_ context.Context, _ services.RegisterRequest) (string, error) {
	return f.registerID, f.registerErr
}

func (f *fakeAuthService) Login(_ context.Context, _, _ string) (string, error) {
	return f.token, f.loginErr
}

func (f *fakeAuthService) Profile(_ context.Context, _ string) (*models.User, error) {
	return f.profile, f.profileErr
}

func (f *fakeAuthService) DeleteAccount(_ context.Context, _ string) (*models.User, error) {
	return f.deleted, f.deleteErr
}

// fakeRoleService implements services.RoleService, recording the last grant.
type fakeRoleService struct {
	user      *models.User
	err       error
	lastKind  models.RoleKind
	lastScope string
	lastEmail string
}

func (f *fakeRoleService) Grant(_ context.Context, _, targetEmail string, kind models.RoleKind, scope string) (*models.User, error) {
	f.lastEmail = targetEmail
	f.lastKind = kind
	f.lastScope = scope
	return f.user, f.err
}

// fakeAdminService implements services.AdminService.
type fakeAdminService struct {
	user *models.User
	err  error
}

func (f *fakeAdminService) Bootstrap(_ context.Context) error { return nil }
func (f *fakeAdminService) Resync(_ context.Context) error    { return nil }
func (f *fakeAdminService) GrantAdministrator(_ context.Context, _, _ string) (*models.User, error) {
	return f.user, f.err
}

// fakeFormService implements services.FormService, recording call inputs.
type fakeFormService struct {
	form       *models.Form
	createErr  error
	version    string
	draftErr   error
	publishErr error

	lastProject    string
	lastForm       string
	lastVersion    string
	lastDefinition []byte
}

func (f *fakeFormService) Create(_ context.Context, _, projectName, formName, version string, definition []byte) (*models.Form, error) {
	f.lastProject, f.lastForm, f.lastVersion, f.lastDefinition = projectName, formName, version, definition
	return f.form, f.createErr
}

func (f *fakeFormService) UploadDraft(_ context.Context, _, projectName, formName, version string, definition []byte) (string, error) {
	f.lastProject, f.lastForm, f.lastVersion, f.lastDefinition = projectName, formName, version, definition
	return f.version, f.draftErr
}

func (f *fakeFormService) Publish(_ context.Context, _, projectName, formName string) error {
	f.lastProject, f.lastForm = projectName, formName
	return f.publishErr
}

// fakeMetadataService implements services.MetadataService.
type fakeMetadataService struct {
	overview    *services.Overview
	err         error
	lastProject string
}

func (f *fakeMetadataService) Overview(_ context.Context, _ string, projectName string) (*services.Overview, error) {
	f.lastProject = projectName
	return f.overview, f.err
}

// fakeAuditService implements services.AuditService.
type fakeAuditService struct {
	events []*models.AuditEvent
	err    error
}

func (f *fakeAuditService) Record(_ context.Context, _, _ string, _ map[string]interface{}) {}
func (f *fakeAuditService) Recent(_ context.Context, _ int64) ([]*models.AuditEvent, error) {
	return f.events, f.err
}

// testAuth builds a real middleware plus a valid Authorization header value
// for the given user.
func testAuth(t *testing.T, userID string) (*auth.Middleware, string) {
	t.Helper()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	token, err := issuer.Sign(userID, userID+"@example.com")
	require.NoError(t, err)
	return auth.NewMiddleware(issuer, zap.NewNop()), "Bearer " + token
}

// serve runs a request against a mux and returns the recorder.
func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
