package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func upstreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/card", func(w http.ResponseWriter, r *http.Request) {
		nm := r.URL.Query().Get("nm")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"products":[{"id":%s,"name":"Кружка %s","brand":"Acme","salePriceU":150000}]}}`, nm, nm)
	})
	mux.HandleFunc("/basket/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"description":"Керамическая кружка на 300 мл"}`)
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/catalog/kitchen/catalog", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"data":{"products":[{"id":101},{"id":102}]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"products":[{"id":102},{"id":103}]}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, base string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
logging:
  development: false
pipeline:
  concurrency: 2
upstream:
  max_attempts: 1
  backoff_base: 0s
  backoff_jitter: 0s
  card_url: %[1]s/card
  shard_url_template: "%[1]s/basket/{host}/vol{vol}/part{part}/{id}/card.json"
  content_urls:
    - %[1]s/content
discovery:
  catalog_url_template: "%[1]s/catalog/{shard}/catalog"
  throttle_delay: 0s
state:
  path: %[2]s
`, base, filepath.Join(dir, "state.msgpack"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestFetchThenLoadDryRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := upstreamServer(t)
	cfgPath := writeConfig(t, dir, srv.URL)

	ids := filepath.Join(dir, "ids.txt")
	require.NoError(t, os.WriteFile(ids, []byte("11\n# skip\nhttps://www.wildberries.ru/catalog/12/detail.aspx\nnot-an-id\n"), 0o600))
	out := filepath.Join(dir, "out", "products.jsonl")

	require.NoError(t, execute(t, "--config", cfgPath, "fetch", "--input", ids, "--output", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, string(data), "Керамическая кружка")

	require.NoError(t, execute(t, "--config", cfgPath, "load", "--input", out, "--dry-run"))
	_, err = os.Stat(filepath.Join(dir, "state.msgpack"))
	require.True(t, os.IsNotExist(err))
}

func TestDiscoverWritesIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := upstreamServer(t)
	cfgPath := writeConfig(t, dir, srv.URL)

	cats := filepath.Join(dir, "categories.json")
	require.NoError(t, os.WriteFile(cats, []byte(`[{"id":7,"name":"Кружки","shard":"kitchen"}]`), 0o600))
	out := filepath.Join(dir, "ids.txt")

	require.NoError(t, execute(t, "--config", cfgPath, "discover", "--categories", cats, "--name", "КРУЖКИ", "--pages", "2", "--output", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "101\n102\n103\n", string(data))
}

func TestDiscoverUnknownCategory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srv := upstreamServer(t)
	cfgPath := writeConfig(t, dir, srv.URL)

	cats := filepath.Join(dir, "categories.json")
	require.NoError(t, os.WriteFile(cats, []byte(`[{"id":7,"name":"Кружки","shard":"kitchen"}]`), 0o600))

	err := execute(t, "--config", cfgPath, "discover", "--categories", cats, "--cat-id", "8", "--output", filepath.Join(dir, "ids.txt"))
	require.ErrorContains(t, err, "category not found")
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://127.0.0.1:1")
	input := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(input, nil, 0o600))

	err := execute(t, "--config", cfgPath, "load", "--input", input)
	require.ErrorContains(t, err, "db.dsn is required")
}

func TestBadConfigFails(t *testing.T) {
	t.Parallel()

	err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "fetch", "--input", "x")
	require.ErrorContains(t, err, "load config")
}
