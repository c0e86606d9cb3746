package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/product_api/internal/config"
	"github.com/Skotchmaster/product_api/internal/models"
)

// maxHits bounds one search. It equals the default index.max_result_window.
const maxHits = 10000

// refreshWaitFor makes writes return only once they are visible to search.
const refreshWaitFor = "wait_for"

func NewClient(ctx context.Context, cfg config.ESConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// Index mirrors products into one elasticsearch index. The database stays the
// source of truth; the index only yields candidate ids.
type Index struct {
	client *elasticsearch.Client
	name   string
}

func NewIndex(client *elasticsearch.Client, name string) *Index {
	return &Index{client: client, name: name}
}

var mapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"name": map[string]any{
				"type":   "text",
				"fields": map[string]any{"raw": map[string]any{"type": "keyword"}},
			},
			"description": map[string]any{
				"type":   "text",
				"fields": map[string]any{"raw": map[string]any{"type": "keyword"}},
			},
			"price":    map[string]any{"type": "double"},
			"quantity": map[string]any{"type": "integer"},
			"in_stock": map[string]any{"type": "boolean"},
		},
	},
}

// Ensure creates the index with its mapping when it is missing.
func (x *Index) Ensure(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.name}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := encode(mapping)
	if err != nil {
		return err
	}
	res, err = x.client.Indices.Create(x.name,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res.Status(), res.Body)
	}
	return nil
}

func (x *Index) Put(ctx context.Context, p *models.Product) error {
	body, err := encode(p)
	if err != nil {
		return err
	}
	res, err := x.client.Index(x.name, body,
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(docID(p.ID)),
		x.client.Index.WithRefresh(refreshWaitFor),
	)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index product", res.Status(), res.Body)
	}
	return nil
}

func (x *Index) Delete(ctx context.Context, id uint) error {
	res, err := x.client.Delete(x.name, docID(id),
		x.client.Delete.WithContext(ctx),
		x.client.Delete.WithRefresh(refreshWaitFor),
	)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return responseError("delete product", res.Status(), res.Body)
	}
	return nil
}

// SearchIDs returns ids of documents whose name or description contains q,
// ignoring case.
func (x *Index) SearchIDs(ctx context.Context, q string) ([]uint, error) {
	body, err := encode(searchBody(q))
	if err != nil {
		return nil, err
	}
	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.name),
		x.client.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res.Status(), res.Body)
	}

	return decodeIDs(res.Body)
}

func searchBody(q string) map[string]any {
	pattern := "*" + escapeWildcard(q) + "*"
	wildcard := func(field string) map[string]any {
		return map[string]any{
			"wildcard": map[string]any{
				field: map[string]any{"value": pattern, "case_insensitive": true},
			},
		}
	}
	return map[string]any{
		"size":    maxHits,
		"_source": false,
		"sort":    []any{map[string]any{"_doc": "asc"}},
		"query": map[string]any{
			"bool": map[string]any{
				"should":               []any{wildcard("name.raw"), wildcard("description.raw")},
				"minimum_should_match": 1,
			},
		},
	}
}

func decodeIDs(r io.Reader) ([]uint, error) {
	var out struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		id, err := strconv.ParseUint(h.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func encode(v any) (*bytes.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(data), nil
}

func responseError(op, status string, body io.Reader) error {
	b, _ := io.ReadAll(body)
	return fmt.Errorf("%s: %s: %s", op, status, b)
}
