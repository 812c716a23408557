package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	mdmerrors "github.com/david-crosby/Jamf-Monitor/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newJamfServer serves the token endpoint plus the given API handler
func newJamfServer(t *testing.T, api http.HandlerFunc) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token-abc",
				"expires_in":   3600,
			})
			return
		}
		api(w, r)
	}))
}

func newTestClient(srv *httptest.Server) *JamfClient {
	broker := NewTokenBroker(srv.URL, "test-client", "secret", 5*time.Minute, nil, nil, zap.NewNop())
	return NewJamfClient(srv.URL, broker, 10*time.Second, nil, zap.NewNop())
}

func TestJamfClient_ListInventory(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/computers-inventory", r.URL.Path)
		require.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"id": "1"},
				{"id": "17"},
				{"id": "not-a-number"},
			},
		})
	})
	defer srv.Close()

	refs, err := newTestClient(srv).ListInventory(context.Background())

	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 1, refs[0].ID)
	assert.Equal(t, 17, refs[1].ID)
}

func TestJamfClient_RetriesOnceAfterTokenRejection(t *testing.T) {
	var apiCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token-abc",
				"expires_in":   3600,
			})
			return
		}

		// First API call rejects the token, second succeeds
		if atomic.AddInt32(&apiCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{{"id": "5"}},
		})
	}))
	defer srv.Close()

	refs, err := newTestClient(srv).ListInventory(context.Background())

	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls))
}

func TestJamfClient_PersistentRejectionFailsAfterOneRetry(t *testing.T) {
	var apiCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "token-abc",
				"expires_in":   3600,
			})
			return
		}
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListInventory(context.Background())

	require.Error(t, err)
	var authErr *mdmerrors.RetryableAuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&apiCalls))
}

func TestJamfClient_GetDeviceDetail(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/computers-inventory-detail/42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"general": map[string]string{
				"name":                         "mac-042",
				"serialNumber":                 "C02XK1ABCDE",
				"modelIdentifier":              "MacBookPro18,3",
				"operatingSystemVersion":       "14.5",
				"lastContactTime":              "2025-06-01T10:00:00Z",
				"lastInventoryUpdateTimestamp": "2025-06-01T08:30:00Z",
			},
		})
	})
	defer srv.Close()

	detail, err := newTestClient(srv).GetDeviceDetail(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, 42, detail.Identity.ID)
	assert.Equal(t, "mac-042", detail.Identity.Name)
	assert.Equal(t, "C02XK1ABCDE", detail.Identity.SerialNumber)
	require.NotNil(t, detail.LastContactTime)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), *detail.LastContactTime)
	require.NotNil(t, detail.LastInventoryUpdate)
}

func TestJamfClient_GetDeviceDetailMissingFields(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"general": map[string]string{},
		})
	})
	defer srv.Close()

	detail, err := newTestClient(srv).GetDeviceDetail(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "Unknown", detail.Identity.Name)
	assert.Equal(t, "Unknown", detail.Identity.SerialNumber)
	assert.Nil(t, detail.LastContactTime)
	assert.Nil(t, detail.LastInventoryUpdate)
}

func TestJamfClient_GetDeviceDetailNotFound(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := newTestClient(srv).GetDeviceDetail(context.Background(), 999)

	assert.ErrorIs(t, err, mdmerrors.ErrDeviceNotFound)
}

func TestJamfClient_GetFailedPoliciesFiltersSucceeded(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/computers/42/management-data", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"policies": []map[string]interface{}{
				{"id": "10", "name": "FileVault", "failed": true},
				{"id": "11", "name": "Inventory", "failed": false},
			},
		})
	})
	defer srv.Close()

	failed, err := newTestClient(srv).GetFailedPolicies(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "FileVault", failed[0].Name)
}

func TestJamfClient_GetMDMCommandsSplit(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/mdm/commands", r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("clientManagementId"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"uuid": "u1", "status": "Failed", "dateIssued": "2025-06-01T10:00:00Z"},
				{"uuid": "u2", "status": "Pending", "dateIssued": "2025-06-01T11:00:00Z"},
				{"uuid": "u3", "status": "InProgress", "dateIssued": "2025-06-01T11:30:00Z"},
				{"uuid": "u4", "status": "Acknowledged", "dateIssued": "2025-06-01T09:00:00Z"},
			},
		})
	})
	defer srv.Close()

	split, err := newTestClient(srv).GetMDMCommands(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, split.Failed, 1)
	assert.Equal(t, "u1", split.Failed[0].UUID)
	require.Len(t, split.Pending, 2)
	assert.Equal(t, "u2", split.Pending[0].UUID)
	assert.Equal(t, "u3", split.Pending[1].UUID)
}

func TestJamfClient_GetGroupMemberships(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/JSSResource/computers/id/42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"computer": map[string]interface{}{
				"groups_accounts": map[string]interface{}{
					"computer_group_memberships": []map[string]string{
						{"name": "Compliance"},
						{"name": "Engineering"},
						{"name": ""},
					},
				},
			},
		})
	})
	defer srv.Close()

	groups, err := newTestClient(srv).GetGroupMemberships(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, []string{"Compliance", "Engineering"}, groups)
}

func TestJamfClient_ListSmartGroupsFiltersStatic(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/JSSResource/computergroups", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"computer_groups": []map[string]interface{}{
				{"id": 1, "name": "Legacy OS", "is_smart": true},
				{"id": 2, "name": "Hand Picked", "is_smart": false},
			},
		})
	})
	defer srv.Close()

	groups, err := newTestClient(srv).ListSmartGroups(context.Background())

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Legacy OS", groups[0].Name)
}

func TestJamfClient_UpstreamErrorCarriesStatus(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := newTestClient(srv).ListInventory(context.Background())

	require.Error(t, err)
	var upstream *mdmerrors.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
}

func TestJamfClient_TimeoutMapsToTimeoutError(t *testing.T) {
	srv := newJamfServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	broker := NewTokenBroker(srv.URL, "test-client", "secret", 5*time.Minute, nil, nil, zap.NewNop())
	c := NewJamfClient(srv.URL, broker, 50*time.Millisecond, nil, zap.NewNop())

	_, err := c.ListInventory(context.Background())

	require.Error(t, err)
	assert.True(t, mdmerrors.IsTimeout(err))
}
