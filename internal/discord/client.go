// Package discord implements the REST client for the message search,
// delete, and edit endpoints, plus the listings used by discovery.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"clearcord/internal/model"
)

const (
	defaultBaseURL = "https://discord.com/api/v9"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// codeArchivedThread is Discord's error code for operations on messages
	// in archived or locked threads.
	codeArchivedThread = 50083
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Discord REST API with a user account token.
type Client struct {
	baseURL string
	token   string
	http    HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, useful for testing.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// New creates a Client authenticating with the given token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// User is the authenticated account as returned by /users/@me.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Me validates the token and returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.getJSON(ctx, "/users/@me", nil, &u); err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	return &u, nil
}

// SearchRequest parameterizes one call to the message search endpoint.
type SearchRequest struct {
	// ContainerID is the guild id, or "@me" for DMs and group DMs.
	ContainerID string
	ChannelID   string
	AuthorID    string
	// Offset skips results within the current page window.
	Offset int
	// MaxID, when nonzero, is the exclusive upper snowflake bound: only
	// messages older than it are returned.
	MaxID model.Snowflake
}

// SearchPage is one page of search results. Messages come in groups; only
// entries flagged as hits are actual matches.
type SearchPage struct {
	TotalResults int               `json:"total_results"`
	Messages     [][]model.Message `json:"messages"`
}

// SearchMessages issues one search request. Rate-limit and not-ready
// responses surface as *RateLimitedError and *NotReadyError; the caller
// owns retrying.
func (c *Client) SearchMessages(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	var path string
	params := url.Values{
		"author_id":    {req.AuthorID},
		"include_nsfw": {"true"},
		"sort_by":      {"timestamp"},
		"sort_order":   {"desc"},
		"offset":       {strconv.Itoa(req.Offset)},
	}
	if req.ContainerID == model.DirectContainer {
		path = "/channels/" + req.ChannelID + "/messages/search"
	} else {
		path = "/guilds/" + req.ContainerID + "/messages/search"
		params.Set("channel_id", req.ChannelID)
	}
	if req.MaxID > 0 {
		params.Set("max_id", req.MaxID.String())
	}

	var page SearchPage
	if err := c.getJSON(ctx, path, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteMessage deletes a single message. A 404 maps to ErrAlreadyGone, a
// 403 or archived-thread 400 to ErrForbidden.
func (c *Client) DeleteMessage(ctx context.Context, channelID string, id model.Snowflake) error {
	path := "/channels/" + channelID + "/messages/" + id.String()
	resp, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return c.errorFromResponse(resp)
}

// EditMessage replaces a single message's content. Error mapping matches
// DeleteMessage.
func (c *Client) EditMessage(ctx context.Context, channelID string, id model.Snowflake, content string) error {
	path := "/channels/" + channelID + "/messages/" + id.String()
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal edit payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPatch, path, nil, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return c.errorFromResponse(resp)
}

// Guild is a server the account belongs to.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is a guild channel or a DM conversation.
type Channel struct {
	ID         string `json:"id"`
	Type       int    `json:"type"`
	Name       string `json:"name"`
	Recipients []User `json:"recipients"`
}

// Channel type constants used during discovery.
const (
	ChannelText         = 0
	ChannelDM           = 1
	ChannelGroupDM      = 3
	ChannelAnnouncement = 5
	ChannelForum        = 15
)

// ListGuilds returns the guilds the account is a member of.
func (c *Client) ListGuilds(ctx context.Context) ([]Guild, error) {
	var guilds []Guild
	if err := c.getJSON(ctx, "/users/@me/guilds", nil, &guilds); err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	return guilds, nil
}

// ListDMChannels returns the account's DM and group DM conversations.
func (c *Client) ListDMChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	if err := c.getJSON(ctx, "/users/@me/channels", nil, &channels); err != nil {
		return nil, fmt.Errorf("list dm channels: %w", err)
	}
	return channels, nil
}

// ListGuildChannels returns the channels of a guild.
func (c *Client) ListGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	if err := c.getJSON(ctx, "/guilds/"+guildID+"/channels", nil, &channels); err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}
	return channels, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.errorFromResponse(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError is the JSON error envelope Discord attaches to failures. The
// retry_after field is fractional seconds.
type apiError struct {
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var e apiError
	_ = json.Unmarshal(data, &e)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfterDuration(e.RetryAfter, 3*time.Second)}
	case http.StatusAccepted:
		return &NotReadyError{RetryAfter: retryAfterDuration(e.RetryAfter, 5*time.Second)}
	case http.StatusNotFound:
		return ErrAlreadyGone
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusBadRequest:
		if e.Code == codeArchivedThread {
			return fmt.Errorf("archived thread: %w", ErrForbidden)
		}
	}
	return &StatusError{Status: resp.StatusCode, Body: string(data)}
}

func retryAfterDuration(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
