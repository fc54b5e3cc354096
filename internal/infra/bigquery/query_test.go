package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	json "github.com/goccy/go-json"
	"google.golang.org/api/option"
)

// queryResult is the schema and rows a fake jobs.query call returns, both
// as raw JSON in the REST representation.
type queryResult struct {
	fields string
	rows   string
	count  int
}

type queryRequest struct {
	Query           string `json:"query"`
	QueryParameters []struct {
		Name           string `json:"name"`
		ParameterValue struct {
			Value string `json:"value"`
		} `json:"parameterValue"`
	} `json:"queryParameters"`
}

// newFakeClient returns a client whose jobs.query calls are answered by
// respond. Every query completes on the first call.
func newFakeClient(t *testing.T, respond func(req queryRequest) queryResult) *bigquery.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/queries") {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res := respond(req)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"kind": "bigquery#queryResponse",
			"jobComplete": true,
			"jobReference": {"projectId": "p", "jobId": "job-1", "location": "US"},
			"schema": {"fields": %s},
			"rows": %s,
			"totalRows": "%d"
		}`, res.fields, res.rows, res.count)
	}))
	t.Cleanup(srv.Close)

	client, err := bigquery.NewClient(context.Background(), "p",
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func nowResult(ts time.Time) queryResult {
	return queryResult{
		fields: `[{"name": "now", "type": "TIMESTAMP", "mode": "NULLABLE"}]`,
		rows:   fmt.Sprintf(`[{"f": [{"v": "%d"}]}]`, ts.UnixMicro()),
		count:  1,
	}
}

func TestServerTimeWithClient(t *testing.T) {
	serverNow := time.Date(2024, time.May, 1, 12, 0, 0, 123456000, time.UTC)

	queries := make(chan string, 1)
	client := newFakeClient(t, func(req queryRequest) queryResult {
		queries <- req.Query
		return nowResult(serverNow)
	})

	got, err := serverTimeWithClient(context.Background(), client)
	if err != nil {
		t.Fatalf("serverTimeWithClient() error = %v", err)
	}
	if !got.Equal(serverNow) {
		t.Errorf("serverTimeWithClient() = %v, want %v", got, serverNow)
	}
	if gotQuery := <-queries; !strings.Contains(gotQuery, "CURRENT_TIMESTAMP()") {
		t.Errorf("query = %q, want CURRENT_TIMESTAMP()", gotQuery)
	}
}

func TestListUnidentifiedTransactions_ReadsAsOfServerTime(t *testing.T) {
	// An hour behind the local clock, so a client-side instant would differ.
	serverNow := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	var (
		mu      sync.Mutex
		asOfs   []string
		queries []string
	)
	client := newFakeClient(t, func(req queryRequest) queryResult {
		if strings.Contains(req.Query, "CURRENT_TIMESTAMP()") {
			return nowResult(serverNow)
		}
		mu.Lock()
		defer mu.Unlock()
		for _, p := range req.QueryParameters {
			if p.Name == "as_of" {
				asOfs = append(asOfs, p.ParameterValue.Value)
			}
		}
		queries = append(queries, req.Query)
		return queryResult{
			fields: `[{"name": "transaction_id", "type": "INTEGER", "mode": "NULLABLE"}]`,
			rows:   `[{"f": [{"v": "1"}]}]`,
			count:  1,
		}
	})

	cfg := Config{ProjectID: "p", SourceDataset: "src", TargetDataset: "dst"}
	txs, err := ListUnidentifiedTransactionsWithClient(context.Background(), client, cfg)
	if err != nil {
		t.Fatalf("ListUnidentifiedTransactionsWithClient() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(asOfs) != 2 {
		t.Fatalf("got %d as_of parameters, want 2 (queries: %v)", len(asOfs), queries)
	}

	want := serverNow.Format("2006-01-02 15:04:05")
	for _, v := range asOfs {
		if !strings.HasPrefix(v, want) {
			t.Errorf("as_of = %q, want server time %s", v, want)
		}
	}
}

func TestReadAll_AwardWithoutTransactionData(t *testing.T) {
	client := newFakeClient(t, func(req queryRequest) queryResult {
		return queryResult{
			fields: `[
				{"name": "id", "type": "INTEGER", "mode": "REQUIRED"},
				{"name": "type", "type": "STRING", "mode": "NULLABLE"},
				{"name": "latest_transaction_id", "type": "INTEGER", "mode": "NULLABLE"},
				{"name": "total_loan_value", "type": "NUMERIC", "mode": "NULLABLE"}
			]`,
			rows: `[
				{"f": [{"v": "1"}, {"v": "A"}, {"v": null}, {"v": null}]},
				{"f": [{"v": "2"}, {"v": null}, {"v": "77"}, {"v": "12.5"}]}
			]`,
			count: 2,
		}
	})

	rows, err := readAll[AwardRow](context.Background(), client, time.Now(), "SELECT 1")
	if err != nil {
		t.Fatalf("readAll() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0].toDomain()
	if first.ID != 1 || first.Type != "A" || first.LatestTransactionID != 0 || first.TotalLoanValue.Valid {
		t.Errorf("first award = %+v", first)
	}
	second := rows[1].toDomain()
	if second.Type != "" || second.LatestTransactionID != 77 || !second.TotalLoanValue.Valid {
		t.Errorf("second award = %+v", second)
	}
}
