package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/models"
)

// StoreClient talks to the hosted PostgREST endpoint that fronts the
// wallet_addresses and mining_data tables.
type StoreClient struct {
	baseURL    string
	anonKey    string
	schema     string
	httpClient *http.Client
}

var _ gateway.Gateway = (*StoreClient)(nil)

// NewStoreClient creates a new store client. baseURL is the project URL;
// the REST API is served under /rest/v1.
func NewStoreClient(baseURL, anonKey, schema string, timeout time.Duration) *StoreClient {
	return &StoreClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		anonKey: anonKey,
		schema:  schema,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StoreError is an error response from the store
type StoreError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("store returned status %d", e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// FetchProviderByWallet looks the provider up with a case-insensitive match
// on the lowercased address.
func (c *StoreClient) FetchProviderByWallet(ctx context.Context, walletAddress string) (*models.ProviderRow, error) {
	normalized := strings.ToLower(walletAddress)
	log.Printf("[StoreClient] Querying provider for wallet %s", normalized)

	q := url.Values{}
	q.Set("select", "*")
	q.Set("wallet_address", "ilike."+normalized)
	q.Set("limit", "2")

	var rows []*models.ProviderRow
	if err := c.do(ctx, http.MethodGet, "/wallet_addresses", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("query wallet_addresses: %w", err)
	}
	return gateway.ExactlyOne(rows)
}

// Deprecated: use FetchProviderByWallet.
func (c *StoreClient) FetchProviderByUniqueID(ctx context.Context, uniqueID string) (*models.ProviderRow, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("unique_id", "eq."+uniqueID)
	q.Set("limit", "2")

	var rows []*models.ProviderRow
	if err := c.do(ctx, http.MethodGet, "/providers", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	return gateway.ExactlyOne(rows)
}

// FetchMiningRecord returns the single mining record of a provider
func (c *StoreClient) FetchMiningRecord(ctx context.Context, providerID int64) (*models.MiningRecordRow, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("provider_id", "eq."+strconv.FormatInt(providerID, 10))
	q.Set("limit", "2")

	var rows []*models.MiningRecordRow
	if err := c.do(ctx, http.MethodGet, "/mining_data", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("query mining_data: %w", err)
	}
	return gateway.ExactlyOne(rows)
}

// UpdateMiningRecord patches the mining record of a provider. A conditional
// update that matches no row costs a second request: the record is read back
// to tell ErrConflict from ErrNotFound. The read-back goes straight to the
// store and is not seen by gateway decorators such as metrics.
func (c *StoreClient) UpdateMiningRecord(ctx context.Context, providerID int64, update *models.MiningUpdate) (*models.MiningRecordRow, error) {
	log.Printf("[StoreClient] Updating mining record for provider %d (points: %d)", providerID, update.MiningPoints)

	q := url.Values{}
	q.Set("provider_id", "eq."+strconv.FormatInt(providerID, 10))
	if update.ExpectedUpdatedAt != nil {
		q.Set("updated_at", "eq."+update.ExpectedUpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	var rows []*models.MiningRecordRow
	if err := c.do(ctx, http.MethodPatch, "/mining_data", q, update, &rows); err != nil {
		return nil, fmt.Errorf("update mining_data: %w", err)
	}

	row, err := gateway.ExactlyOne(rows)
	if errors.Is(err, gateway.ErrNotFound) && update.ExpectedUpdatedAt != nil {
		// The filter matched nothing: gone, or written by someone else
		_, ferr := c.FetchMiningRecord(ctx, providerID)
		switch {
		case ferr == nil:
			return nil, gateway.ErrConflict
		case !errors.Is(ferr, gateway.ErrNotFound):
			return nil, ferr
		}
	}
	return row, err
}

// UpdateProvider patches the provider registered for walletAddress
func (c *StoreClient) UpdateProvider(ctx context.Context, walletAddress string, update *models.ProviderUpdate) (*models.ProviderRow, error) {
	q := url.Values{}
	q.Set("wallet_address", "ilike."+strings.ToLower(walletAddress))

	var rows []*models.ProviderRow
	if err := c.do(ctx, http.MethodPatch, "/wallet_addresses", q, update, &rows); err != nil {
		return nil, fmt.Errorf("update wallet_addresses: %w", err)
	}
	return gateway.ExactlyOne(rows)
}

func (c *StoreClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.anonKey)
	httpReq.Header.Set("Accept", "application/json")
	if method == http.MethodGet {
		httpReq.Header.Set("Accept-Profile", c.schema)
	} else {
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Content-Profile", c.schema)
		httpReq.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		storeErr := &StoreError{StatusCode: resp.StatusCode}
		if jerr := json.Unmarshal(respBody, storeErr); jerr != nil || storeErr.Message == "" {
			storeErr.Message = strings.TrimSpace(string(respBody))
		}
		return storeErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %s: %w", gateway.ErrMalformedRow, typeErr.Field, err)
		}
		return fmt.Errorf("%w: decode response: %w", gateway.ErrMalformedRow, err)
	}
	return nil
}
