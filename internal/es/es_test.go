package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_api/internal/config"
	"github.com/Skotchmaster/product_api/internal/models"
)

type esRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

type esReply struct {
	status int
	body   string
}

// fakeES records every request other than the client's product check on "/"
// and answers from replies keyed by "METHOD path" or "* path", defaulting to
// 200 {}.
type fakeES struct {
	mu      sync.Mutex
	reqs    []esRequest
	replies map[string]esReply
}

func newFakeES(t *testing.T, replies map[string]esReply) (*fakeES, *elasticsearch.Client) {
	t.Helper()
	f := &fakeES{replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return f, client
}

func (f *fakeES) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet && r.URL.Path == "/" {
		_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
		return
	}

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, esRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: string(body)})
	reply, ok := f.replies[r.Method+" "+r.URL.Path]
	if !ok {
		reply, ok = f.replies["* "+r.URL.Path]
	}
	f.mu.Unlock()

	if !ok {
		reply = esReply{status: http.StatusOK, body: `{}`}
	}
	w.WriteHeader(reply.status)
	_, _ = io.WriteString(w, reply.body)
}

func (f *fakeES) requests() []esRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]esRequest(nil), f.reqs...)
}

func TestEscapeWildcard(t *testing.T) {
	assert.Equal(t, `a\*b\?c\\`, escapeWildcard(`a*b?c\`))
	assert.Equal(t, "plain", escapeWildcard("plain"))
}

func TestSearchBody(t *testing.T) {
	raw, err := json.Marshal(searchBody("App*"))
	require.NoError(t, err)

	var body struct {
		Size   int  `json:"size"`
		Source bool `json:"_source"`
		Query  struct {
			Bool struct {
				Should []map[string]map[string]struct {
					Value           string `json:"value"`
					CaseInsensitive bool   `json:"case_insensitive"`
				} `json:"should"`
				MinimumShouldMatch int `json:"minimum_should_match"`
			} `json:"bool"`
		} `json:"query"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, maxHits, body.Size)
	assert.False(t, body.Source)
	assert.Equal(t, 1, body.Query.Bool.MinimumShouldMatch)
	require.Len(t, body.Query.Bool.Should, 2)

	name := body.Query.Bool.Should[0]["wildcard"]["name.raw"]
	assert.Equal(t, `*App\**`, name.Value)
	assert.True(t, name.CaseInsensitive)
	desc := body.Query.Bool.Should[1]["wildcard"]["description.raw"]
	assert.Equal(t, `*App\**`, desc.Value)
}

func TestDecodeIDs(t *testing.T) {
	ids, err := decodeIDs(strings.NewReader(`{"hits":{"hits":[{"_id":"3"},{"_id":"x"},{"_id":"10"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 10}, ids)

	_, err = decodeIDs(strings.NewReader(`{`))
	require.Error(t, err)
}

func TestNewClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc((&fakeES{}).serve))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), config.ESConfig{URL: srv.URL})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestIndex_EnsureCreatesMissingIndex(t *testing.T) {
	f, client := newFakeES(t, map[string]esReply{
		"HEAD /products": {status: http.StatusNotFound},
	})
	idx := NewIndex(client, "products")

	require.NoError(t, idx.Ensure(context.Background()))

	reqs := f.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodHead, reqs[0].Method)
	assert.Equal(t, "/products", reqs[0].Path)
	assert.Equal(t, http.MethodPut, reqs[1].Method)
	assert.Equal(t, "/products", reqs[1].Path)

	var body struct {
		Mappings struct {
			Properties map[string]struct {
				Type   string                       `json:"type"`
				Fields map[string]map[string]string `json:"fields"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(reqs[1].Body), &body))
	name := body.Mappings.Properties["name"]
	assert.Equal(t, "text", name.Type)
	assert.Equal(t, "keyword", name.Fields["raw"]["type"])
	assert.Equal(t, "keyword", body.Mappings.Properties["description"].Fields["raw"]["type"])
	assert.Equal(t, "boolean", body.Mappings.Properties["in_stock"].Type)
}

func TestIndex_EnsureKeepsExistingIndex(t *testing.T) {
	f, client := newFakeES(t, nil)

	require.NoError(t, NewIndex(client, "products").Ensure(context.Background()))

	reqs := f.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodHead, reqs[0].Method)
}

func TestIndex_EnsureCreateFails(t *testing.T) {
	_, client := newFakeES(t, map[string]esReply{
		"HEAD /products": {status: http.StatusNotFound},
		"PUT /products":  {status: http.StatusBadRequest, body: `{"error":"bad mapping"}`},
	})

	err := NewIndex(client, "products").Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad mapping")
}

func TestIndex_PutWaitsForRefresh(t *testing.T) {
	f, client := newFakeES(t, nil)
	idx := NewIndex(client, "products")

	p := &models.Product{ID: 7, Name: "Pen", Description: "blue", Price: 1.5, Quantity: 3, InStock: true}
	require.NoError(t, idx.Put(context.Background(), p))

	reqs := f.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/products/_doc/7", reqs[0].Path)
	assert.Equal(t, "wait_for", reqs[0].Query.Get("refresh"))

	var doc models.Product
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &doc))
	assert.Equal(t, *p, doc)
}

func TestIndex_PutReportsError(t *testing.T) {
	_, client := newFakeES(t, map[string]esReply{
		"PUT /products/_doc/7": {status: http.StatusInternalServerError, body: `{"error":"shard failure"}`},
	})

	err := NewIndex(client, "products").Put(context.Background(), &models.Product{ID: 7})
	require.Error(t, err)
}

func TestIndex_DeleteToleratesMissingDocument(t *testing.T) {
	f, client := newFakeES(t, map[string]esReply{
		"DELETE /products/_doc/9":  {status: http.StatusNotFound, body: `{"result":"not_found"}`},
		"DELETE /products/_doc/10": {status: http.StatusInternalServerError, body: `{"error":"boom"}`},
	})
	idx := NewIndex(client, "products")

	require.NoError(t, idx.Delete(context.Background(), 9))
	require.Error(t, idx.Delete(context.Background(), 10))

	reqs := f.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, "/products/_doc/9", reqs[0].Path)
	assert.Equal(t, "wait_for", reqs[0].Query.Get("refresh"))
}

func TestIndex_SearchIDs(t *testing.T) {
	f, client := newFakeES(t, map[string]esReply{
		"* /products/_search": {status: http.StatusOK, body: `{"hits":{"hits":[{"_id":"3"},{"_id":"11"}]}}`},
	})

	ids, err := NewIndex(client, "products").SearchIDs(context.Background(), "pen")
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 11}, ids)

	reqs := f.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/products/_search", reqs[0].Path)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &body))
	assert.Equal(t, float64(maxHits), body["size"])
	assert.Contains(t, reqs[0].Body, `"*pen*"`)
}

func TestIndex_SearchIDsReportsError(t *testing.T) {
	_, client := newFakeES(t, map[string]esReply{
		"* /products/_search": {status: http.StatusBadRequest, body: `{"error":"parse"}`},
	})

	_, err := NewIndex(client, "products").SearchIDs(context.Background(), "pen")
	require.Error(t, err)
}
