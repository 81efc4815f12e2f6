package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/mcoot/discordgate/internal/chat"
	"github.com/mcoot/discordgate/internal/model"
)

// apiError is a non-2xx REST response
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discord api: status %d: %s", e.Status, e.Message)
}

// do performs an authenticated REST call, decoding the JSON response
// into result when it is non-nil
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord api request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &apiError{Status: resp.StatusCode, Message: errResp.Message}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// SendDirectMessage opens (or reuses, Discord-side) the DM channel with
// the user and posts the message to it
func (c *Client) SendDirectMessage(ctx context.Context, to model.DiscordID, content string) error {
	var channel struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/@me/channels",
		map[string]string{"recipient_id": string(to)}, &channel)
	if err != nil {
		return fmt.Errorf("opening DM channel: %w", err)
	}

	err = c.do(ctx, http.MethodPost, "/channels/"+channel.ID+"/messages",
		map[string]string{"content": content}, nil)
	if err != nil {
		return fmt.Errorf("sending DM: %w", err)
	}
	return nil
}

// HasRole fetches the guild member and checks their role list. A 404
// from the member endpoint means the user is not in the guild.
func (c *Client) HasRole(ctx context.Context, guildID string, userID model.DiscordID, roleID string) (bool, error) {
	var member struct {
		Roles []string `json:"roles"`
	}
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+string(userID), nil, &member)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return false, chat.ErrNotMember
		}
		return false, err
	}
	return slices.Contains(member.Roles, roleID), nil
}

// RemoveRole removes the role from the guild member
func (c *Client) RemoveRole(ctx context.Context, guildID string, userID model.DiscordID, roleID string) error {
	return c.do(ctx, http.MethodDelete,
		"/guilds/"+guildID+"/members/"+string(userID)+"/roles/"+roleID, nil, nil)
}
