package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Identity is what the external oracle returns for a successful handshake:
// the account's stable identifier and the name of the provider that
// vouched for it (reported to clients and stored on the UserInfo record).
type Identity struct {
	ID       uuid.UUID
	Provider string
}

// Oracle resolves a (server_id, nickname) pair minted at stage 1 into a
// verified account identity, mirroring a Mojang-style session-server
// hasJoined check: the client is expected to have already round-tripped
// the server_id to the identity provider out of band before stage 2 runs.
type Oracle struct {
	baseURL  string
	provider string
	client   *http.Client
}

// NewOracle builds an Oracle client. baseURL should point at a service
// exposing GET {baseURL}?username=...&serverId=... returning
// {"id": "<uuid-no-dashes-or-dashed>", "name": "<nickname>"} on success, or
// a non-200 status when the handshake cannot be verified. provider is the
// name recorded against every identity this oracle resolves.
func NewOracle(baseURL, provider string, timeout time.Duration) *Oracle {
	return &Oracle{
		baseURL:  baseURL,
		provider: provider,
		client:   &http.Client{Timeout: timeout},
	}
}

type hasJoinedResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HasJoined calls the oracle. A nil Identity with a nil error means the
// oracle reached a verdict of "not verified" (maps to 400 at stage 2); a
// non-nil error means the oracle itself could not be reached or returned a
// malformed response (maps to 500 at stage 2).
func (o *Oracle) HasJoined(ctx context.Context, serverID, nickname string) (*Identity, error) {
	q := url.Values{}
	q.Set("username", nickname)
	q.Set("serverId", serverID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("handshake: building oracle request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("handshake: calling identity oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("handshake: identity oracle returned status %d", resp.StatusCode)
	}

	var body hasJoinedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("handshake: decoding identity oracle response: %w", err)
	}

	id, err := parseUndashedOrDashedUUID(body.ID)
	if err != nil {
		return nil, fmt.Errorf("handshake: identity oracle returned invalid id: %w", err)
	}

	return &Identity{ID: id, Provider: o.provider}, nil
}

func parseUndashedOrDashedUUID(s string) (uuid.UUID, error) {
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	if len(s) == 32 {
		dashed := s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
		return uuid.Parse(dashed)
	}
	return uuid.UUID{}, fmt.Errorf("not a valid uuid: %q", s)
}
