package central

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for Central responses.
const DefaultTimeout = 30 * time.Second

// xlsxContentType is the content type Central expects for spreadsheet form
// definitions.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Client provides access to the Central API. Each operation authenticates
// with a session token obtained from Central's sessions endpoint and retries
// transient failures with bounded backoff.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	retryCfg   *retry.Config
	logger     *zap.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a new Central client.
func NewClient(baseURL, email, password string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		email:    email,
		password: password,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("central"),
	}
}

// session obtains a bearer token from Central's sessions endpoint.
func (c *Client) session(ctx context.Context) (string, error) {
	endpoint, err := c.buildURL(nil, "v1", "sessions")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var response struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &response); err != nil {
		return "", err
	}
	if response.Token == "" {
		return "", fmt.Errorf("session response missing token: %w", apperrors.ErrUpstreamFailure)
	}

	return response.Token, nil
}

// CreateForm uploads a new form definition to a Central project.
func (c *Client) CreateForm(ctx context.Context, projectID, formName string, definition []byte) (*FormInfo, error) {
	endpoint, err := c.buildURL(url.Values{"ignoreWarnings": {"true"}}, "v1", "projects", projectID, "forms")
	if err != nil {
		return nil, err
	}

	c.logger.Info("Uploading new form to Central",
		zap.String("project_id", projectID),
		zap.String("form_name", formName))

	var info FormInfo
	err = c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(definition))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", xlsxContentType)
		req.Header.Set("X-XlsForm-FormId-Fallback", formName)
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateAppUser provisions a collector credential in a Central project.
func (c *Client) CreateAppUser(ctx context.Context, projectID, displayName string) (*AppUser, error) {
	endpoint, err := c.buildURL(nil, "v1", "projects", projectID, "app-users")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"displayName": displayName})
	if err != nil {
		return nil, fmt.Errorf("failed to encode app-user request: %w", err)
	}

	var appUser AppUser
	err = c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, &appUser)
	})
	if err != nil {
		return nil, err
	}
	return &appUser, nil
}

// AssignAppUserRole grants an app user a role on one form.
func (c *Client) AssignAppUserRole(ctx context.Context, projectID, formName, roleID string, appUserID int64) error {
	endpoint, err := c.buildURL(nil, "v1", "projects", projectID, "forms", formName,
		"assignments", roleID, fmt.Sprintf("%d", appUserID))
	if err != nil {
		return err
	}

	return c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, nil)
	})
}

// GetDraftInfo fetches the draft access token for a form.
func (c *Client) GetDraftInfo(ctx context.Context, projectID, formName string) (*DraftInfo, error) {
	endpoint, err := c.buildURL(nil, "v1", "projects", projectID, "forms", formName, "draft")
	if err != nil {
		return nil, err
	}

	var info DraftInfo
	err = c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// UploadDraft replaces the draft definition of an existing form.
func (c *Client) UploadDraft(ctx context.Context, projectID, formName string, definition []byte) error {
	endpoint, err := c.buildURL(url.Values{"ignoreWarnings": {"true"}}, "v1", "projects", projectID, "forms", formName, "draft")
	if err != nil {
		return err
	}

	c.logger.Info("Uploading draft to Central",
		zap.String("project_id", projectID),
		zap.String("form_name", formName))

	return c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(definition))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", xlsxContentType)
		req.Header.Set("X-XlsForm-FormId-Fallback", formName)
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, nil)
	})
}

// Publish promotes the draft at the given version to live.
func (c *Client) Publish(ctx context.Context, projectID, formName, version string) error {
	endpoint, err := c.buildURL(url.Values{"version": {version}}, "v1", "projects", projectID, "forms", formName, "draft", "publish")
	if err != nil {
		return err
	}

	c.logger.Info("Publishing draft on Central",
		zap.String("project_id", projectID),
		zap.String("form_name", formName),
		zap.String("version", version))

	return c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, nil)
	})
}

// SubmissionCount returns how many submissions a form has received.
func (c *Client) SubmissionCount(ctx context.Context, projectID, formID string, draft bool) (int, error) {
	segments := []string{"v1", "projects", projectID, "forms", formID}
	if draft {
		segments = append(segments, "draft")
	}
	segments = append(segments, "submissions")

	endpoint, err := c.buildURL(nil, segments...)
	if err != nil {
		return 0, err
	}

	var submissions []json.RawMessage
	err = c.withSession(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return c.do(req, &submissions)
	})
	if err != nil {
		return 0, err
	}
	return len(submissions), nil
}

// withSession obtains a session token, runs fn with bounded retry on
// transient failures, and tags any final failure as an upstream error.
func (c *Client) withSession(ctx context.Context, fn func(token string) error) error {
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		token, err := c.session(ctx)
		if err != nil {
			return err
		}
		return fn(token)
	})
	if err != nil {
		c.logger.Error("Central call failed", zap.Error(err))
		return fmt.Errorf("%w: %w", apperrors.ErrUpstreamFailure, err)
	}
	return nil
}

// do executes an HTTP request and decodes the JSON response into out when
// out is non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call central: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("central returned status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func (c *Client) buildURL(query url.Values, pathSegments ...string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid central base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
