// Package central provides a client for the Central forms server, the
// external system of record for form definitions and submissions.
package central

import "context"

// AppUser is a Central app-user credential dedicated to collecting
// submissions for one form.
type AppUser struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

// FormInfo is Central's record of an uploaded form definition.
type FormInfo struct {
	XMLFormID string `json:"xmlFormId"`
}

// DraftInfo describes the current draft of a form on Central.
type DraftInfo struct {
	DraftToken string `json:"draftToken"`
	Version    string `json:"version"`
}

// Gateway is the capability interface consumed by the form lifecycle and
// metadata services. Implementations must not mutate local state; callers
// persist locally only after a gateway call succeeds.
type Gateway interface {
	// CreateForm uploads a new form definition to a Central project.
	CreateForm(ctx context.Context, projectID, formName string, definition []byte) (*FormInfo, error)

	// CreateAppUser provisions a collector credential in a Central project.
	CreateAppUser(ctx context.Context, projectID, displayName string) (*AppUser, error)

	// AssignAppUserRole grants an app user a role on one form.
	AssignAppUserRole(ctx context.Context, projectID, formName, roleID string, appUserID int64) error

	// GetDraftInfo fetches the draft access token for a form.
	GetDraftInfo(ctx context.Context, projectID, formName string) (*DraftInfo, error)

	// UploadDraft replaces the draft definition of an existing form.
	UploadDraft(ctx context.Context, projectID, formName string, definition []byte) error

	// Publish promotes the draft at the given version to live.
	Publish(ctx context.Context, projectID, formName, version string) error

	// SubmissionCount returns how many submissions the form has received,
	// against the draft when draft is true, else against the live version.
	SubmissionCount(ctx context.Context, projectID, formID string, draft bool) (int, error)
}
