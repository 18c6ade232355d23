package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultUsersBaseURL     = "https://users.roblox.com"
	DefaultThumbnailBaseURL = "https://thumbnails.roblox.com"
	DefaultGroupsBaseURL    = "https://groups.roblox.com"
)

// RobloxClient talks to the public Roblox web APIs.
type RobloxClient struct {
	UsersBaseURL     string
	ThumbnailBaseURL string
	GroupsBaseURL    string
	Client           *http.Client
}

func NewRobloxClient(usersURL, thumbnailURL, groupsURL string, client *http.Client) *RobloxClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobloxClient{
		UsersBaseURL:     orDefault(usersURL, DefaultUsersBaseURL),
		ThumbnailBaseURL: orDefault(thumbnailURL, DefaultThumbnailBaseURL),
		GroupsBaseURL:    orDefault(groupsURL, DefaultGroupsBaseURL),
		Client:           client,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}

// ResolveUsername calls POST /v1/usernames/users with a batch of one.
func (c *RobloxClient) ResolveUsername(ctx context.Context, username string) (*RobloxUser, error) {
	reqBody := map[string]interface{}{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	}
	jsonData, _ := json.Marshal(reqBody)

	var out struct {
		Data []RobloxUser `json:"data"`
	}
	found, err := c.do(ctx, http.MethodPost, c.UsersBaseURL+"/v1/usernames/users", bytes.NewReader(jsonData), &out)
	if err != nil || !found || len(out.Data) == 0 {
		return nil, err
	}
	user := out.Data[0]
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// AvatarURL returns the 420x420 headshot, or "" when Roblox has none.
func (c *RobloxClient) AvatarURL(ctx context.Context, userID int64) (string, error) {
	q := url.Values{}
	q.Set("userIds", strconv.FormatInt(userID, 10))
	q.Set("size", "420x420")
	q.Set("format", "Png")
	q.Set("isCircular", "false")

	var out struct {
		Data []struct {
			TargetID int64  `json:"targetId"`
			State    string `json:"state"`
			ImageURL string `json:"imageUrl"`
		} `json:"data"`
	}
	found, err := c.do(ctx, http.MethodGet, c.ThumbnailBaseURL+"/v1/users/avatar-headshot?"+q.Encode(), nil, &out)
	if err != nil || !found || len(out.Data) == 0 {
		return "", err
	}
	return out.Data[0].ImageURL, nil
}

// IsInGroup checks the user's group memberships for groupID.
func (c *RobloxClient) IsInGroup(ctx context.Context, userID, groupID int64) (bool, error) {
	var out struct {
		Data []struct {
			Group struct {
				ID int64 `json:"id"`
			} `json:"group"`
		} `json:"data"`
	}
	found, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v1/users/%d/groups/roles", c.GroupsBaseURL, userID), nil, &out)
	if err != nil || !found {
		return false, err
	}
	for _, m := range out.Data {
		if m.Group.ID == groupID {
			return true, nil
		}
	}
	return false, nil
}

func (c *RobloxClient) GroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error) {
	var out GroupInfo
	found, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v1/groups/%d", c.GroupsBaseURL, groupID), nil, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// do sends the request and decodes a 2xx body into out. 400/404 mean "no such entity"
// and return found=false; anything else unexpected wraps ErrUpstreamUnavailable.
func (c *RobloxClient) do(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return false, fmt.Errorf("build roblox request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s %s: %v: %w", method, req.URL.Path, err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		log.Printf("[ROBLOX] %s %s returned %d: %s", method, req.URL.Path, resp.StatusCode, string(raw))
		return false, fmt.Errorf("%s %s returned %d: %w", method, req.URL.Path, resp.StatusCode, ErrUpstreamUnavailable)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %v: %w", req.URL.Path, err, ErrUpstreamUnavailable)
	}
	return true, nil
}
