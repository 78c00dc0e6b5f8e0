package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/central"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
)

// union adds each item to dst once, preserving order.
func union(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}

// mockUserRepo implements repositories.UserRepository in memory with the
// same set-union and replace semantics as the real collection.
type mockUserRepo struct {
	users     map[string]*models.User
	createErr error
	scopesErr error
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("email already registered: %w", apperrors.ErrConflict)
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) AddRoleScopes(_ context.Context, userID string, kind models.RoleKind, scopes []string) error {
	if m.scopesErr != nil {
		return m.scopesErr
	}
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
	}
	switch kind {
	case models.RoleProjectManager:
		u.Roles.ProjectManager = union(u.Roles.ProjectManager, scopes...)
		u.Projects = union(u.Projects, scopes...)
	case models.RoleDataCollector:
		u.Roles.DataCollector = union(u.Roles.DataCollector, scopes...)
		u.Forms = union(u.Forms, scopes...)
	case models.RoleAnalyst:
		u.Roles.Analyst = union(u.Roles.Analyst, scopes...)
		u.Forms = union(u.Forms, scopes...)
	}
	return nil
}

func (m *mockUserRepo) AppendLog(_ context.Context, userID string, entry models.LogEntry) error {
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
	}
	u.Log = append(u.Log, entry)
	return nil
}

func (m *mockUserRepo) SetAdministrator(_ context.Context, email string) error {
	for _, u := range m.users {
		if u.Email == email {
			u.Roles.Administrator = true
			return nil
		}
	}
	return fmt.Errorf("user not found: %w", apperrors.ErrNotFound)
}

func (m *mockUserRepo) AdministratorIDs(_ context.Context) ([]string, error) {
	var ids []string
	for _, u := range m.users {
		if u.Roles.Administrator {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (m *mockUserRepo) SetAdministratorSets(_ context.Context, projects, forms []string, entry models.LogEntry) error {
	for _, u := range m.users {
		if !u.Roles.Administrator {
			continue
		}
		u.Roles.ProjectManager = slices.Clone(projects)
		u.Roles.DataCollector = slices.Clone(forms)
		u.Roles.Analyst = slices.Clone(forms)
		u.Projects = slices.Clone(projects)
		u.Forms = slices.Clone(forms)
		u.Log = append(u.Log, entry)
	}
	return nil
}

func (m *mockUserRepo) UpsertAdministrator(_ context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			u.Password = user.Password
			u.Roles = user.Roles
			u.Projects = user.Projects
			u.Forms = user.Forms
			u.Log = append(u.Log, user.Log...)
			return nil
		}
	}
	m.users[user.ID] = user
	return nil
}

// mockProjectRepo implements repositories.ProjectRepository in memory.
type mockProjectRepo struct {
	projects []*models.Project
}

func (m *mockProjectRepo) GetByName(_ context.Context, name string) (*models.Project, error) {
	for _, p := range m.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project not found: %w", apperrors.ErrNotFound)
}

func (m *mockProjectRepo) Names(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.projects))
	for _, p := range m.projects {
		names = append(names, p.Name)
	}
	return names, nil
}

func (m *mockProjectRepo) ByMember(_ context.Context, userID string) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range m.projects {
		if slices.Contains(p.Users, userID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjectRepo) AddMember(_ context.Context, name, userID string) error {
	for _, p := range m.projects {
		if p.Name == name {
			p.Users = union(p.Users, userID)
			return nil
		}
	}
	return fmt.Errorf("project not found: %w", apperrors.ErrNotFound)
}

func (m *mockProjectRepo) AddMembersAll(_ context.Context, userIDs []string) error {
	for _, p := range m.projects {
		p.Users = union(p.Users, userIDs...)
	}
	return nil
}

func (m *mockProjectRepo) AddForm(_ context.Context, name, formName string) error {
	for _, p := range m.projects {
		if p.Name == name {
			p.Forms = union(p.Forms, formName)
			return nil
		}
	}
	return fmt.Errorf("project not found: %w", apperrors.ErrNotFound)
}

// mockFormRepo implements repositories.FormRepository in memory. Names are
// unique across all projects, matching the store's index.
type mockFormRepo struct {
	forms       []*models.Form
	setDraftErr error
	setLiveErr  error
}

func (m *mockFormRepo) Create(_ context.Context, form *models.Form) error {
	for _, f := range m.forms {
		if f.Name == form.Name {
			return fmt.Errorf("form %q already exists: %w", form.Name, apperrors.ErrConflict)
		}
	}
	m.forms = append(m.forms, form)
	return nil
}

func (m *mockFormRepo) GetByName(_ context.Context, name string) (*models.Form, error) {
	for _, f := range m.forms {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("form not found: %w", apperrors.ErrNotFound)
}

func (m *mockFormRepo) Get(_ context.Context, project, name string) (*models.Form, error) {
	for _, f := range m.forms {
		if f.Project == project && f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("form not found: %w", apperrors.ErrNotFound)
}

func (m *mockFormRepo) Names(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.forms))
	for _, f := range m.forms {
		names = append(names, f.Name)
	}
	return names, nil
}

func (m *mockFormRepo) NamesByProject(_ context.Context, project string) ([]string, error) {
	var names []string
	for _, f := range m.forms {
		if f.Project == project {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func (m *mockFormRepo) ByMember(_ context.Context, userID string) ([]*models.Form, error) {
	var out []*models.Form
	for _, f := range m.forms {
		if slices.Contains(f.Users, userID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFormRepo) AddMember(_ context.Context, name, userID string) error {
	for _, f := range m.forms {
		if f.Name == name {
			f.Users = union(f.Users, userID)
			return nil
		}
	}
	return fmt.Errorf("form not found: %w", apperrors.ErrNotFound)
}

func (m *mockFormRepo) AddMembersByProject(_ context.Context, project, userID string) error {
	for _, f := range m.forms {
		if f.Project == project {
			f.Users = union(f.Users, userID)
		}
	}
	return nil
}

func (m *mockFormRepo) AddMembersAll(_ context.Context, userIDs []string) error {
	for _, f := range m.forms {
		f.Users = union(f.Users, userIDs...)
	}
	return nil
}

func (m *mockFormRepo) SetDraft(_ context.Context, project, name, version string, details *models.CollectSettings) error {
	if m.setDraftErr != nil {
		return m.setDraftErr
	}
	for _, f := range m.forms {
		if f.Project == project && f.Name == name {
			f.Draft = true
			f.DraftVersion = &version
			f.DraftCollectionDetails = details
			return nil
		}
	}
	return fmt.Errorf("form not found: %w", apperrors.ErrNotFound)
}

func (m *mockFormRepo) SetLive(_ context.Context, project, name, version string) error {
	if m.setLiveErr != nil {
		return m.setLiveErr
	}
	for _, f := range m.forms {
		if f.Project == project && f.Name == name {
			f.Draft = false
			f.Live = true
			f.LiveVersion = &version
			f.DraftVersion = nil
			f.DraftCollectionDetails = nil
			return nil
		}
	}
	return fmt.Errorf("form not found: %w", apperrors.ErrNotFound)
}

// mockGateway implements central.Gateway, recording calls and serving
// canned responses.
type mockGateway struct {
	createFormErr   error
	createUserErr   error
	assignErr       error
	draftInfoErr    error
	uploadDraftErr  error
	publishErr      error
	submissionCount int
	submissionErr   error

	createdForms    []string
	createdAppUsers []string
	assignedRoles   []string
	uploadedDrafts  []string
	publishedCalls  []string
}

func (m *mockGateway) CreateForm(_ context.Context, projectID, formName string, _ []byte) (*central.FormInfo, error) {
	if m.createFormErr != nil {
		return nil, m.createFormErr
	}
	m.createdForms = append(m.createdForms, projectID+"/"+formName)
	return &central.FormInfo{XMLFormID: formName}, nil
}

func (m *mockGateway) CreateAppUser(_ context.Context, projectID, displayName string) (*central.AppUser, error) {
	if m.createUserErr != nil {
		return nil, m.createUserErr
	}
	m.createdAppUsers = append(m.createdAppUsers, projectID+"/"+displayName)
	return &central.AppUser{ID: 42, Token: "app-token"}, nil
}

func (m *mockGateway) AssignAppUserRole(_ context.Context, projectID, formName, roleID string, appUserID int64) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.assignedRoles = append(m.assignedRoles, fmt.Sprintf("%s/%s/%s/%d", projectID, formName, roleID, appUserID))
	return nil
}

func (m *mockGateway) GetDraftInfo(_ context.Context, _, _ string) (*central.DraftInfo, error) {
	if m.draftInfoErr != nil {
		return nil, m.draftInfoErr
	}
	return &central.DraftInfo{DraftToken: "draft-token", Version: "1"}, nil
}

func (m *mockGateway) UploadDraft(_ context.Context, projectID, formName string, _ []byte) error {
	if m.uploadDraftErr != nil {
		return m.uploadDraftErr
	}
	m.uploadedDrafts = append(m.uploadedDrafts, projectID+"/"+formName)
	return nil
}

func (m *mockGateway) Publish(_ context.Context, projectID, formName, version string) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.publishedCalls = append(m.publishedCalls, projectID+"/"+formName+"@"+version)
	return nil
}

func (m *mockGateway) SubmissionCount(_ context.Context, _, _ string, _ bool) (int, error) {
	if m.submissionErr != nil {
		return 0, m.submissionErr
	}
	return m.submissionCount, nil
}

// recordingAudit implements AuditService, keeping messages for assertions.
type recordingAudit struct {
	messages []string
}

func (a *recordingAudit) Record(_ context.Context, _, message string, _ map[string]interface{}) {
	a.messages = append(a.messages, message)
}

func (a *recordingAudit) Recent(_ context.Context, _ int64) ([]*models.AuditEvent, error) {
	return nil, nil
}

// stubIssuer implements TokenIssuer with a fixed token.
type stubIssuer struct {
	token string
	err   error
}

func (s *stubIssuer) Sign(_, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}
