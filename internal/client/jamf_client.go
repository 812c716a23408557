package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	mdmerrors "github.com/david-crosby/Jamf-Monitor/internal/errors"
	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"github.com/david-crosby/Jamf-Monitor/internal/model"
	"go.uber.org/zap"
)

// commandStatus values the upstream reports for MDM commands
const (
	commandStatusFailed     = "Failed"
	commandStatusPending    = "Pending"
	commandStatusInProgress = "InProgress"
)

// JamfClient issues authenticated read calls against the Jamf Pro API.
// Every call obtains a token from the broker; a 401 clears the token and is
// retried once with a fresh one before failing.
type JamfClient struct {
	baseURL    string
	broker     *TokenBroker
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewJamfClient creates a new Jamf Pro API client
func NewJamfClient(baseURL string, broker *TokenBroker, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *JamfClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &JamfClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		broker:     broker,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
		logger:     logger,
	}
}

// get issues an authenticated GET and returns the response body for any
// 2xx status. 401 responses invalidate the token and are retried once.
func (c *JamfClient) get(ctx context.Context, endpoint string, query url.Values) (int, []byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.broker.Token(ctx)
		if err != nil {
			return 0, nil, err
		}

		target := c.baseURL + endpoint
		if len(query) > 0 {
			target += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isTimeout(err) {
				c.recordUpstream(endpoint, "timeout")
				return 0, nil, &mdmerrors.TimeoutError{Endpoint: endpoint, Cause: err}
			}
			c.recordUpstream(endpoint, "transport_error")
			return 0, nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if readErr != nil {
			return 0, nil, fmt.Errorf("failed to read response from %s: %w", endpoint, readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			c.logger.Warn("Jamf rejected access token, forcing refresh",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1))
			c.recordUpstream(endpoint, "unauthorized")
			c.broker.Invalidate()
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.recordUpstream(endpoint, "success")
		} else {
			c.recordUpstream(endpoint, "error")
		}
		return resp.StatusCode, body, nil
	}

	// Two consecutive rejections with a freshly exchanged token
	return 0, nil, &mdmerrors.RetryableAuthError{Endpoint: endpoint}
}

func (c *JamfClient) recordUpstream(endpoint, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(endpoint, outcome)
	}
}

func isTimeout(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ListInventory returns the identities of every device in the inventory
func (c *JamfClient) ListInventory(ctx context.Context) ([]model.DeviceRef, error) {
	endpoint := "/api/v1/computers-inventory"
	status, body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &mdmerrors.UpstreamError{Endpoint: endpoint, StatusCode: status}
	}

	var payload struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode inventory response: %w", err)
	}

	refs := make([]model.DeviceRef, 0, len(payload.Results))
	for _, r := range payload.Results {
		id, err := strconv.Atoi(r.ID)
		if err != nil {
			c.logger.Warn("Skipping inventory entry with non-numeric id",
				zap.String("id", r.ID))
			continue
		}
		refs = append(refs, model.DeviceRef{ID: id})
	}
	return refs, nil
}

// GetDeviceDetail returns identity fields and the two timestamp signals for
// one device. Missing fields degrade to zero values rather than failing:
// the upstream schema is not guaranteed complete per device.
func (c *JamfClient) GetDeviceDetail(ctx context.Context, deviceID int) (*model.DeviceDetail, error) {
	endpoint := fmt.Sprintf("/api/v1/computers-inventory-detail/%d", deviceID)
	status, body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("device %d: %w", deviceID, mdmerrors.ErrDeviceNotFound)
	}
	if status != http.StatusOK {
		return nil, &mdmerrors.UpstreamError{Endpoint: endpoint, StatusCode: status}
	}

	var payload struct {
		General struct {
			Name                         string `json:"name"`
			SerialNumber                 string `json:"serialNumber"`
			ModelIdentifier              string `json:"modelIdentifier"`
			OperatingSystemVersion       string `json:"operatingSystemVersion"`
			LastContactTime              string `json:"lastContactTime"`
			LastInventoryUpdateTimestamp string `json:"lastInventoryUpdateTimestamp"`
		} `json:"general"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode detail response for device %d: %w", deviceID, err)
	}

	detail := &model.DeviceDetail{
		Identity: model.DeviceIdentity{
			ID:           deviceID,
			Name:         defaultString(payload.General.Name),
			SerialNumber: defaultString(payload.General.SerialNumber),
			Model:        defaultString(payload.General.ModelIdentifier),
			OSVersion:    defaultString(payload.General.OperatingSystemVersion),
		},
		LastContactTime:     parseJamfTime(payload.General.LastContactTime),
		LastInventoryUpdate: parseJamfTime(payload.General.LastInventoryUpdateTimestamp),
	}
	return detail, nil
}

// GetFailedPolicies returns the policies the upstream reports as failed for
// one device
func (c *JamfClient) GetFailedPolicies(ctx context.Context, deviceID int) ([]model.FailedPolicy, error) {
	endpoint := fmt.Sprintf("/api/v2/computers/%d/management-data", deviceID)
	status, body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &mdmerrors.UpstreamError{Endpoint: endpoint, StatusCode: status}
	}

	var payload struct {
		Policies []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Failed bool   `json:"failed"`
		} `json:"policies"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode management data for device %d: %w", deviceID, err)
	}

	failed := make([]model.FailedPolicy, 0)
	for _, p := range payload.Policies {
		if p.Failed {
			failed = append(failed, model.FailedPolicy{ID: p.ID, Name: p.Name})
		}
	}
	return failed, nil
}

// GetMDMCommands returns a device's MDM commands split into failed and
// pending. Pending covers both queued and in-progress commands.
func (c *JamfClient) GetMDMCommands(ctx context.Context, deviceID int) (*model.CommandSplit, error) {
	endpoint := "/api/v2/mdm/commands"
	query := url.Values{}
	query.Set("clientManagementId", strconv.Itoa(deviceID))

	status, body, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &mdmerrors.UpstreamError{Endpoint: endpoint, StatusCode: status}
	}

	var payload struct {
		Results []struct {
			UUID       string `json:"uuid"`
			Status     string `json:"status"`
			DateIssued string `json:"dateIssued"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode commands for device %d: %w", deviceID, err)
	}

	split := &model.CommandSplit{
		Failed:  make([]model.MDMCommand, 0),
		Pending: make([]model.MDMCommand, 0),
	}
	for _, r := range payload.Results {
		cmd := model.MDMCommand{
			UUID:       r.UUID,
			Status:     r.Status,
			DateIssued: parseJamfTime(r.DateIssued),
		}
		switch r.Status {
		case commandStatusFailed:
			split.Failed = append(split.Failed, cmd)
		case commandStatusPending, commandStatusInProgress:
			split.Pending = append(split.Pending, cmd)
		}
	}
	return split, nil
}

// GetGroupMemberships returns the names of the groups a device belongs to
func (c *JamfClient) GetGroupMemberships(ctx context.Context, deviceID int) ([]string, error) {
	endpoint := fmt.Sprintf("/JSSResource/computers/id/%d", deviceID)
	status, body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("device %d: %w", deviceID, mdmerrors.ErrDeviceNotFound)
	}
	if status != http.StatusOK {
		return nil, &mdmerrors.UpstreamError{Endpoint: endpoint, StatusCode: status}
	}

	var payload struct {
		Computer struct {
			GroupsAccounts struct {
				ComputerGroupMemberships []struct {
					Name string `json:"name"`
				} `json:"computer_group_memberships"`
			} `json:"groups_accounts"`
		} `json:"computer"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode group memberships for device %d: %w", deviceID, err)
	}

	groups := make([]string, 0, len(payload.Computer.GroupsAccounts.ComputerGroupMemberships))
	for _, g := range payload.Computer.GroupsAccounts.ComputerGroupMemberships {
		if g.Name != "" {
			groups = append(groups, g.Name)
		}
	}
	return groups, nil
}

// ListSmartGroups returns the smart groups defined upstream
func (c *JamfClient) ListSmartGroups(ctx context.Context) ([]model.SmartGroup, error) {
	endpoint := "/JSSResource/computergroups"
	status, body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &mdmerrors.UpstreamError{Endpoint: endpoint, StatusCode: status}
	}

	var payload struct {
		ComputerGroups []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			IsSmart bool   `json:"is_smart"`
		} `json:"computer_groups"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode computer groups: %w", err)
	}

	groups := make([]model.SmartGroup, 0)
	for _, g := range payload.ComputerGroups {
		if g.IsSmart {
			groups = append(groups, model.SmartGroup{ID: g.ID, Name: g.Name})
		}
	}
	return groups, nil
}

// parseJamfTime parses the upstream timestamp format. Returns nil for empty
// or malformed values so an absent timestamp reads as "never happened".
func parseJamfTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func defaultString(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
