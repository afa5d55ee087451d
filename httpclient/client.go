// Package httpclient talks to the session-management endpoint: the
// request/response bootstrap that precedes opening the persistent channel.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/collabwire/collabwire.go/pkg/types"
)

// Client is a thin wrapper over the collaboration server's REST surface.
type Client struct {
	// URL is the server root, e.g. "http://localhost:8787".
	URL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func New(url string) *Client {
	return &Client{URL: url, HTTPClient: http.DefaultClient}
}

type createSessionRequest struct {
	ProjectID string                `json:"projectId"`
	User      types.User            `json:"user"`
	Settings  types.SessionSettings `json:"settings"`
}

type joinSessionRequest struct {
	User types.User `json:"user"`
}

// CreateSession registers a new collaboration session for projectID owned
// by user and returns the session record.
func (c *Client) CreateSession(ctx context.Context, projectID string, user types.User, settings types.SessionSettings) (*types.Session, error) {
	var session types.Session
	err := c.do(ctx, http.MethodPost, "/sessions",
		createSessionRequest{ProjectID: projectID, User: user, Settings: settings}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// JoinSession adds user to an existing session and returns the session
// record including the current participant set.
func (c *Client) JoinSession(ctx context.Context, sessionID string, user types.User) (*types.Session, error) {
	var session types.Session
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sessions/%s/join", sessionID),
		joinSessionRequest{User: user}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// LeaveSession tells the endpoint that userID left sessionID. Best-effort
// on explicit disconnect; the server also cleans up on channel teardown.
func (c *Client) LeaveSession(ctx context.Context, sessionID, userID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/sessions/%s/leave", sessionID),
		map[string]string{"userId": userID}, nil)
}

// StartVoice asks the endpoint to open the session's voice channel and
// returns its control-plane descriptor. Media transport is out of scope.
func (c *Client) StartVoice(ctx context.Context, sessionID string) (*types.VoiceState, error) {
	var state types.VoiceState
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sessions/%s/voice", sessionID), nil, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, res.Status, bytes.TrimSpace(data))
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(dest)
}
