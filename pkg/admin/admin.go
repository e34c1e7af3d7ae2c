// Package admin talks to the core node's HTTP admin endpoint.
package admin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kinecosystem/localnet/pkg/errors"
)

const (
	// DefaultURL is the admin endpoint published by the local core container.
	DefaultURL = "http://localhost:11626"
	// EpochUpgradeTime schedules an upgrade for the next ledger close.
	EpochUpgradeTime = "1970-01-01T00:00:00Z"
)

// Upgrade is one ledger parameter change. Exactly one field is set.
type Upgrade struct {
	BaseReserve     *int
	ProtocolVersion *int
}

// BaseReserve returns an upgrade setting the base reserve.
func BaseReserve(v int) Upgrade { return Upgrade{BaseReserve: &v} }

// ProtocolVersion returns an upgrade setting the protocol version.
func ProtocolVersion(v int) Upgrade { return Upgrade{ProtocolVersion: &v} }

func (u Upgrade) query() (url.Values, error) {
	q := url.Values{}
	q.Set("mode", "set")
	q.Set("upgradetime", EpochUpgradeTime)

	switch {
	case u.BaseReserve != nil && u.ProtocolVersion == nil:
		q.Set("basereserve", strconv.Itoa(*u.BaseReserve))
	case u.ProtocolVersion != nil && u.BaseReserve == nil:
		q.Set("protocolversion", strconv.Itoa(*u.ProtocolVersion))
	default:
		return nil, fmt.Errorf("upgrade must set exactly one parameter")
	}
	return q, nil
}

func (u Upgrade) String() string {
	switch {
	case u.BaseReserve != nil:
		return fmt.Sprintf("basereserve=%d", *u.BaseReserve)
	case u.ProtocolVersion != nil:
		return fmt.Sprintf("protocolversion=%d", *u.ProtocolVersion)
	}
	return "empty"
}

// Client issues admin requests.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the endpoint at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Upgrade asks the core to apply u. The response is drained and not
// interpreted: the endpoint answers 200 whether or not it armed the upgrade.
// Only transport failures are reported.
func (c *Client) Upgrade(ctx context.Context, u Upgrade) error {
	q, err := u.query()
	if err != nil {
		return err
	}
	target := c.baseURL + "/upgrades?" + encode(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, "build upgrade request")
	}

	slog.Info("admin_upgrade", "upgrade", u.String(), "url", target)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("admin_upgrade_failed", "upgrade", u.String(), "error", err)
		return errors.Wrapf(err, "upgrade %s", u)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	slog.Info("admin_upgrade_sent", "upgrade", u.String(), "status", resp.StatusCode)
	return nil
}

// encode keeps the parameter order operators see in the core's docs.
func encode(q url.Values) string {
	var parts []string
	for _, k := range []string{"mode", "upgradetime", "basereserve", "protocolversion"} {
		if v := q.Get(k); v != "" {
			parts = append(parts, k+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}
