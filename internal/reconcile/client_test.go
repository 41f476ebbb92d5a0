package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"species-checker/internal/common/config"
	apperrors "species-checker/internal/common/errors"
	"species-checker/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatch struct {
	id    interface{}
	score float64
}

// fakeService mimics the reconcile endpoint: names map to candidates, ids map
// to extend rows written verbatim.
type fakeService struct {
	matches     map[string]fakeMatch
	rows        map[string]map[string][]map[string]interface{}
	matchCalls  atomic.Int32
	extendCalls atomic.Int32

	mu      sync.Mutex
	lastIDs []string
}

func (f *fakeService) requestedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastIDs
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if q := r.PostForm.Get("queries"); q != "" {
		f.matchCalls.Add(1)
		var queries map[string]matchQuery
		if err := json.Unmarshal([]byte(q), &queries); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := make(map[string]interface{}, len(queries))
		for key, query := range queries {
			result := []interface{}{}
			if m, ok := f.matches[query.Query]; ok {
				result = append(result, map[string]interface{}{
					"id": m.id, "score": m.score, "name": query.Query, "match": m.score >= 100,
				})
			}
			resp[key] = map[string]interface{}{"result": result}
		}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	f.extendCalls.Add(1)
	var req extendRequest
	if err := json.Unmarshal([]byte(r.PostForm.Get("extend")), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.lastIDs = req.IDs
	f.mu.Unlock()
	rows := make(map[string]interface{}, len(req.IDs))
	for _, id := range req.IDs {
		if row, ok := f.rows[id]; ok {
			rows[id] = row
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"meta": req.Properties, "rows": rows})
}

func str(v interface{}) []map[string]interface{} {
	return []map[string]interface{}{{"str": v}}
}

func newWolfCatService() *fakeService {
	return &fakeService{
		matches: map[string]fakeMatch{
			"Canis lupus": {id: "A", score: 98},
			"Felis catus": {id: "B", score: 85},
		},
		rows: map[string]map[string][]map[string]interface{}{
			"A": {"Kingdom": str("Animalia")},
			"B": {"Kingdom": str("Animalia")},
		},
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	return NewClient(config.ReconcileConfig{Endpoint: endpoint, Timeout: 5000}, logger.NewTestLogger(t))
}

func TestReconcileBatch_WolfAndCat(t *testing.T) {
	svc := newWolfCatService()
	server := httptest.NewServer(svc)
	defer server.Close()

	rows, err := newTestClient(t, server.URL).ReconcileBatch(context.Background(), []string{"Canis lupus", "Felis catus"})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 98.0, rows[0].Score)
	assert.Equal(t, map[string]string{"Kingdom": "Animalia"}, rows[0].Attributes)
	assert.Equal(t, 85.0, rows[1].Score)
	assert.Equal(t, map[string]string{"Kingdom": "Animalia"}, rows[1].Attributes)
	assert.Equal(t, int32(1), svc.matchCalls.Load())
	assert.Equal(t, int32(1), svc.extendCalls.Load())
}

func TestReconcileBatch_ColumnPresence(t *testing.T) {
	svc := &fakeService{
		matches: map[string]fakeMatch{"Canis lupus": {id: 42, score: 100}},
		rows: map[string]map[string][]map[string]interface{}{
			"42": {
				"ValidScientificName":   str("Canis lupus"),
				"ValidScientificNameId": str(12345),
				"Kingdom":               {{"str": "Animalia"}, {"str": "Plantae"}},
				"Phylum":                {},
				"Class":                 str(""),
				"Order":                 str(nil),
			},
		},
	}
	server := httptest.NewServer(svc)
	defer server.Close()

	rows, err := newTestClient(t, server.URL).ReconcileBatch(context.Background(), []string{"Canis lupus"})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"ValidScientificName":   "Canis lupus",
		"ValidScientificNameId": "12345",
		"Kingdom":               "Animalia",
	}, rows[0].Attributes)
	for _, col := range []string{"Phylum", "Class", "Order", "Genus"} {
		_, ok := rows[0].Value(col)
		assert.False(t, ok, col)
	}
}

func TestReconcileBatch_DuplicateIDsRequestedOnce(t *testing.T) {
	svc := newWolfCatService()
	svc.matches["Canis lupus lupus"] = fakeMatch{id: "A", score: 91}
	server := httptest.NewServer(svc)
	defer server.Close()

	rows, err := newTestClient(t, server.URL).ReconcileBatch(context.Background(),
		[]string{"Canis lupus", "Canis lupus lupus", "Felis catus"})

	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []float64{98, 91, 85}, []float64{rows[0].Score, rows[1].Score, rows[2].Score})
	assert.Equal(t, []string{"A", "B"}, svc.requestedIDs())
}

func TestReconcileBatch_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.Handler
		names    []string
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "no match",
			handler:  newWolfCatService(),
			names:    []string{"Canis lupus", "Homo imaginarius"},
			wantCode: apperrors.ErrCodeNoMatch,
		},
		{
			name: "extend row missing",
			handler: &fakeService{
				matches: map[string]fakeMatch{"Canis lupus": {id: "A", score: 98}},
				rows:    map[string]map[string][]map[string]interface{}{},
			},
			names:    []string{"Canis lupus"},
			wantCode: apperrors.ErrCodePartialAttributes,
		},
		{
			name: "server error",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}),
			names:    []string{"Canis lupus"},
			wantCode: apperrors.ErrCodeTransport,
		},
		{
			name: "not json",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			}),
			names:    []string{"Canis lupus"},
			wantCode: apperrors.ErrCodeInvalidResponse,
		},
		{
			name: "schema mismatch",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"0":{"result":[{"id":"A"}]}}`))
			}),
			names:    []string{"Canis lupus"},
			wantCode: apperrors.ErrCodeInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			rows, err := newTestClient(t, server.URL).ReconcileBatch(context.Background(), tt.names)

			require.Error(t, err)
			assert.Nil(t, rows)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestReconcileBatch_NoMatchReportsName(t *testing.T) {
	server := httptest.NewServer(newWolfCatService())
	defer server.Close()

	_, err := newTestClient(t, server.URL).ReconcileBatch(context.Background(), []string{"Canis lupus", "Homo imaginarius"})

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, "Homo imaginarius", stdErr.Metadata["name"])
	assert.Equal(t, 1, stdErr.Metadata["index"])
}

func TestReconcileBatch_Empty(t *testing.T) {
	client := NewClientWithPoster("http://unused", nil, logger.NewNoOpLogger())
	rows, err := client.ReconcileBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
