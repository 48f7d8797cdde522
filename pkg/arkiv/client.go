// Package arkiv provides a client for the Arkiv chain-state store.
//
// Arkiv stores opaque payloads as entities addressed by an immutable entity
// key assigned at creation time. Attributes attached to an entity are
// queryable server-side; payloads are returned verbatim. Entity keys are
// never reused or rewritten, so a reader holding a stale key always observes
// a valid snapshot.
package arkiv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for chain-state responses.
const DefaultTimeout = 30 * time.Second

// Attributes are the queryable key/value annotations on an entity.
type Attributes map[string]string

// Entity is a stored chain-state record.
type Entity struct {
	EntityKey   string     `json:"entityKey"`
	Payload     []byte     `json:"payload"`
	ContentType string     `json:"contentType"`
	Attributes  Attributes `json:"attributes"`
}

// CreateResult is returned by CreateEntity.
type CreateResult struct {
	EntityKey string `json:"entityKey"`
	TxHash    string `json:"txHash"`
}

// Client is the chain-state store contract consumed by the orchestrator.
type Client interface {
	// CreateEntity stores a new entity and returns its immutable key.
	CreateEntity(ctx context.Context, payload []byte, attrs Attributes) (*CreateResult, error)

	// UpdateEntity replaces the payload and attributes of an existing entity.
	// The entity key is unchanged.
	UpdateEntity(ctx context.Context, entityKey string, payload []byte, attrs Attributes) (string, error)

	// GetEntity point-reads an entity by key.
	GetEntity(ctx context.Context, entityKey string) (*Entity, error)

	// QueryEntities runs an attribute-filtered scan, e.g.
	// `SELECT * WHERE type = 'sponsored_project' AND status = 'approved'`.
	QueryEntities(ctx context.Context, query string) ([]Entity, error)
}

// Config holds connection settings for the Arkiv RPC endpoint.
type Config struct {
	RPCURL      string
	PrivateKey  string // signs entity writes; never logged
	AccountName string
	Timeout     time.Duration
}

// HTTPClient talks JSON-RPC 2.0 to an Arkiv node.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	retryCfg   *retry.Config
	logger     *zap.Logger
	nextID     atomic.Int64
}

// NewHTTPClient creates a chain-state client for the given endpoint.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("arkiv"),
	}, nil
}

// Ensure HTTPClient implements Client at compile time.
var _ Client = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("arkiv rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *HTTPClient) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("failed to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.AccountName != "" {
		req.Header.Set("X-Arkiv-Account", c.cfg.AccountName)
	}
	if c.cfg.PrivateKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.PrivateKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call arkiv node: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arkiv node returned status %d: %s", resp.StatusCode, respBody)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode rpc result: %w", err)
		}
	}
	return nil
}

type createEntityParams struct {
	Payload     []byte     `json:"payload"`
	ContentType string     `json:"contentType"`
	Attributes  Attributes `json:"attributes"`
}

// CreateEntity stores a new entity. Transient node failures are retried; the
// node deduplicates by payload hash within a block, so a retried create
// cannot mint two keys for one logical write.
func (c *HTTPClient) CreateEntity(ctx context.Context, payload []byte, attrs Attributes) (*CreateResult, error) {
	params := createEntityParams{
		Payload:     payload,
		ContentType: "application/json",
		Attributes:  attrs,
	}

	result, err := retry.DoWithResult(ctx, c.retryCfg, func() (*CreateResult, error) {
		var out CreateResult
		if err := c.call(ctx, "arkiv_createEntity", []any{params}, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Entity created in Arkiv",
		zap.String("entity_key", result.EntityKey),
		zap.String("tx_hash", result.TxHash))
	return result, nil
}

type updateEntityParams struct {
	EntityKey   string     `json:"entityKey"`
	Payload     []byte     `json:"payload"`
	ContentType string     `json:"contentType"`
	Attributes  Attributes `json:"attributes"`
}

// UpdateEntity replaces an entity's payload and attributes in place and
// returns the transaction hash. The entity key never changes.
func (c *HTTPClient) UpdateEntity(ctx context.Context, entityKey string, payload []byte, attrs Attributes) (string, error) {
	params := updateEntityParams{
		EntityKey:   entityKey,
		Payload:     payload,
		ContentType: "application/json",
		Attributes:  attrs,
	}

	var out struct {
		TxHash string `json:"txHash"`
	}
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		return c.call(ctx, "arkiv_updateEntity", []any{params}, &out)
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("Entity updated in Arkiv",
		zap.String("entity_key", entityKey),
		zap.String("tx_hash", out.TxHash))
	return out.TxHash, nil
}

// GetEntity point-reads an entity by key.
func (c *HTTPClient) GetEntity(ctx context.Context, entityKey string) (*Entity, error) {
	var out Entity
	if err := c.call(ctx, "arkiv_getEntity", []any{entityKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type queryParams struct {
	Query string `json:"query"`
}

// QueryEntities runs an attribute-filtered scan and returns matching entities
// with payloads.
func (c *HTTPClient) QueryEntities(ctx context.Context, query string) ([]Entity, error) {
	var out struct {
		Entities []Entity `json:"entities"`
	}
	if err := c.call(ctx, "arkiv_queryEntities", []any{queryParams{Query: query}}, &out); err != nil {
		return nil, err
	}

	c.logger.Debug("Arkiv query", zap.String("query", query), zap.Int("hits", len(out.Entities)))
	return out.Entities, nil
}
