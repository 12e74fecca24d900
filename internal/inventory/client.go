package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalogo-sync-api/internal/cache"
	"catalogo-sync-api/internal/config"
	"catalogo-sync-api/internal/model"
	"catalogo-sync-api/pkg/apierror"
)

// Client is the REST client for the inventory service, with a TTL cache
// in front of reads.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      cache.Cache
	ttl        time.Duration
}

// NewClient creates an inventory client. ttl guards cached records; a
// zero ttl falls back to 10 minutes.
func NewClient(cfg config.InventoryConfig, c cache.Cache, ttl time.Duration) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cache:      c,
		ttl:        ttl,
	}
}

// GetOne fetches one record over the network and normalizes it. A 404 is
// returned as an explicit empty record: the entity exists, it just has no
// secondary attributes yet.
func (c *Client) GetOne(ctx context.Context, entityID string) (*model.InventoryRecord, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.recordURL(entityID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return model.EmptyInventoryRecord(entityID), nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierror.Network(fmt.Sprintf("malformed inventory record for %s: %v", entityID, err))
	}
	return NormalizeRecord(entityID, raw), nil
}

// GetBulk fetches records for all given ids in one request. The endpoint
// is best-effort: it may answer with an array of records or an object
// keyed by id, and may not exist at all. Any failure is returned to the
// caller, who falls back to per-id fetches.
func (c *Client) GetBulk(ctx context.Context, ids []string) (map[string]*model.InventoryRecord, error) {
	endpoint := c.baseURL + "/inventory"
	if len(ids) > 0 {
		endpoint += "?ids=" + url.QueryEscape(strings.Join(ids, ","))
	}

	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, apierror.Network("bulk inventory endpoint unavailable")
	}

	return parseBulk(body)
}

// parseBulk accepts both bulk response shapes: a JSON array of records
// (each carrying its id) or an object keyed by entity id.
func parseBulk(body []byte) (map[string]*model.InventoryRecord, error) {
	records := make(map[string]*model.InventoryRecord)

	var asArray []map[string]interface{}
	if err := json.Unmarshal(body, &asArray); err == nil {
		for _, raw := range asArray {
			id := extractID(raw)
			if id == "" {
				continue
			}
			records[id] = NormalizeRecord(id, raw)
		}
		return records, nil
	}

	var asObject map[string]map[string]interface{}
	if err := json.Unmarshal(body, &asObject); err == nil {
		for id, raw := range asObject {
			records[id] = NormalizeRecord(id, raw)
		}
		return records, nil
	}

	return nil, apierror.Network("malformed bulk inventory response")
}

func extractID(raw map[string]interface{}) string {
	for _, key := range []string{"entityId", "entity_id", "id", "productId", "product_id"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// SaveOne writes secondary attributes for an entity: the cache entry is
// invalidated first, then the payload is POSTed and the normalized
// response re-cached. Attribute writes bypass the staging log by design.
func (c *Client) SaveOne(ctx context.Context, entityID string, payload model.InventoryWrite) (*model.InventoryRecord, error) {
	_ = c.cache.Delete(ctx, cacheKey(entityID))

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inventory write: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, c.recordURL(entityID), reqBody)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, apierror.NotFound(fmt.Sprintf("inventory record %s not found", entityID))
	}

	var raw map[string]interface{}
	record := model.EmptyInventoryRecord(entityID)
	if err := json.Unmarshal(body, &raw); err == nil {
		record = NormalizeRecord(entityID, raw)
	}

	c.CachePut(ctx, record)
	return record, nil
}

// DeleteOne removes an entity's record. A 404 counts as success: the
// record is gone either way.
func (c *Client) DeleteOne(ctx context.Context, entityID string) error {
	_ = c.cache.Delete(ctx, cacheKey(entityID))

	_, _, err := c.do(ctx, http.MethodDelete, c.recordURL(entityID), nil)
	return err
}

// CacheGet returns the cached record for an entity, or nil on a miss.
func (c *Client) CacheGet(ctx context.Context, entityID string) *model.InventoryRecord {
	data, err := c.cache.Get(ctx, cacheKey(entityID))
	if err != nil {
		return nil
	}
	var record model.InventoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil
	}
	return &record
}

// CachePut stores a record under the configured TTL.
func (c *Client) CachePut(ctx context.Context, record *model.InventoryRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	_ = c.cache.Set(ctx, cacheKey(record.EntityID), data, c.ttl)
}

func cacheKey(entityID string) string {
	return "inventory:" + entityID
}

func (c *Client) recordURL(entityID string) string {
	return c.baseURL + "/inventory/" + url.PathEscape(entityID)
}

// do executes one request. 404 is reported via the status code, not an
// error, because several endpoints treat it as a normal outcome.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, apierror.Timeout(fmt.Sprintf("%s %s timed out", method, endpoint))
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, 0, apierror.Timeout(fmt.Sprintf("%s %s timed out", method, endpoint))
		}
		return nil, 0, apierror.Network(fmt.Sprintf("%s %s failed: %v", method, endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apierror.Network(fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound {
		return body, resp.StatusCode, nil
	}
	return nil, resp.StatusCode, apierror.Network(fmt.Sprintf("%s %s returned %d", method, endpoint, resp.StatusCode))
}
