// Package mirrorsvc replicates profiles and projects to the Supabase (PostgREST) mirror.
package mirrorsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/project"
)

var nowFunc = func() time.Time { return time.Now().UTC() } // mockable

type (
	Client struct {
		baseURL      string
		apiKey       string
		profileTable string
		projectTable string
		http         *rest.Client
	}

	remoteProfileRow struct {
		UserID string `json:"user_id"`
		profile.RemoteProfile
		CreatedAt *time.Time `json:"created_at,omitempty"`
		UpdatedAt time.Time  `json:"updated_at"`
	}
)

var (
	_ profile.Mirror = (*Client)(nil)
	_ project.Mirror = (*Client)(nil)
)

// NewClient returns nil when the mirror is disabled or not configured.
func NewClient(conf *core.Config) *Client {
	if !conf.Mirror.Enabled || conf.Mirror.BaseURL == "" {
		return nil
	}
	return &Client{
		baseURL:      conf.Mirror.BaseURL,
		apiKey:       conf.Mirror.APIKey,
		profileTable: conf.Mirror.ProfileTable,
		projectTable: conf.Mirror.ProjectTable,
		http:         &rest.Client{HTTPClient: &http.Client{Timeout: conf.Mirror.Timeout}},
	}
}

func (c *Client) request(method rest.Method, table string, query map[string]string, body interface{}) (rest.Request, error) {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + "/rest/v1/" + table,
		Headers: map[string]string{
			"apikey":        c.apiKey,
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		QueryParams: query,
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return rest.Request{}, errors.Wrap(err, "encoding mirror payload")
		}
		req.Body = b
		req.Headers["Prefer"] = "return=minimal"
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, req rest.Request) (*rest.Response, error) {
	res, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling mirror %s", req.BaseURL)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("mirror %s %s responded %d: %s", req.Method, req.BaseURL, res.StatusCode, res.Body)
	}
	return res, nil
}

func (c *Client) fetchProfileRows(ctx context.Context, userID string) ([]remoteProfileRow, error) {
	req, err := c.request(rest.Get, c.profileTable, map[string]string{
		"select":  "*",
		"user_id": "eq." + userID,
		"limit":   "1",
	}, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	var rows []remoteProfileRow
	if err = json.Unmarshal([]byte(res.Body), &rows); err != nil {
		return nil, errors.Wrap(err, "decoding mirror profile")
	}
	return rows, nil
}

func (c *Client) FetchRemoteProfile(ctx context.Context, userID string) (*profile.RemoteProfile, error) {
	rows, err := c.fetchProfileRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].RemoteProfile, nil
}

// UpsertRemoteProfile updates the row of userID, or inserts it with created_at when there is none.
func (c *Client) UpsertRemoteProfile(ctx context.Context, userID string, rp profile.RemoteProfile) error {
	rows, err := c.fetchProfileRows(ctx, userID)
	if err != nil {
		return err
	}

	now := nowFunc()
	row := remoteProfileRow{UserID: userID, RemoteProfile: rp, UpdatedAt: now}
	var req rest.Request
	if len(rows) > 0 {
		req, err = c.request(rest.Patch, c.profileTable, map[string]string{"user_id": "eq." + userID}, row)
	} else {
		row.CreatedAt = &now
		req, err = c.request(rest.Post, c.profileTable, nil, row)
	}
	if err != nil {
		return err
	}
	_, err = c.send(ctx, req)
	return err
}

func (c *Client) InsertRemoteProject(ctx context.Context, rp project.RemoteProject) error {
	req, err := c.request(rest.Post, c.projectTable, nil, rp)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, req)
	return err
}
