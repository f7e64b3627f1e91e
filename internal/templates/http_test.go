package templates_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"TemplateMock/internal/templates"
	"TemplateMock/pkg/kit"
)

var fixedNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

type tsOpts struct {
	faults   templates.FaultConfig
	registry *prometheus.Registry
	token    string
	limiter  *kit.IPRateLimiter
}

func newTS(t *testing.T, o tsOpts) (*httptest.Server, *templates.Server) {
	t.Helper()

	if o.faults.Seed == 0 {
		o.faults.Seed = 1
	}

	s := &templates.Server{
		Store:      templates.NewMemStore(templates.SeedTemplates()),
		Faults:     templates.NewFaultInjector(o.faults),
		Log:        zap.NewNop(),
		InstanceID: "test-instance",
		Now:        func() time.Time { return fixedNow },

		RateLimiter: o.limiter,
	}

	h := templates.NewHandler(s, templates.HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "templatemock",
		Registry:       o.registry,
		MetricsEnabled: o.registry != nil,
		MetricsToken:   o.token,
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, s
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			r = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode: %v body=%s", err, string(raw))
	}
	return v
}

type errBody struct {
	Detail string `json:"detail"`
}

func TestList_PaginationAndCategory(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/templates", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
	if got := decode[[]templates.Template](t, raw); len(got) != 6 {
		t.Fatalf("len=%d", len(got))
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/api/templates?skip=2&limit=2", nil, nil)
	got := decode[[]templates.Template](t, raw)
	if len(got) != 2 || got[0].ID != "prd-template" || got[1].ID != "architecture-design-template" {
		t.Fatalf("page=%v", got)
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/api/templates?category=database", nil, nil)
	got = decode[[]templates.Template](t, raw)
	if len(got) != 1 || got[0].ID != "database-design-template" {
		t.Fatalf("filtered=%v", got)
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/api/templates?skip=50", nil, nil)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("want empty array, got %s", string(raw))
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/templates?limit=-1", nil, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("negative limit status=%d", resp.StatusCode)
	}
}

func TestList_InjectedFaultRate(t *testing.T) {
	ts, _ := newTS(t, tsOpts{faults: templates.FaultConfig{FailureRate: 0.10, Seed: 4242}})

	const trials = 1000
	fails := 0
	for i := 0; i < trials; i++ {
		resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/templates", nil, nil)
		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusInternalServerError:
			if d := decode[errBody](t, raw).Detail; d != "simulated server error: database connection failed" {
				t.Fatalf("detail=%q", d)
			}
			fails++
		default:
			t.Fatalf("unexpected status=%d", resp.StatusCode)
		}
	}

	rate := float64(fails) / trials
	if rate < 0.06 || rate > 0.14 {
		t.Fatalf("fault rate=%.3f, want about 0.10", rate)
	}
}

func TestGet(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/templates/prd-template", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if got := decode[templates.Template](t, raw); got.Category != "documentation" || got.CreatedAt == nil {
		t.Fatalf("template=%+v", got)
	}

	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/templates/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if d := decode[errBody](t, raw).Detail; !strings.Contains(d, "nope") {
		t.Fatalf("detail=%q", d)
	}
}

func TestSearch(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/templates/search?q=a", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short query status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/templates/search", nil, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing q status=%d", resp.StatusCode)
	}

	resp, raw = doJSON(t, http.MethodPost, ts.URL+"/api/templates/search?q=AP", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	got := decode[[]templates.Template](t, raw)
	if len(got) != 1 || got[0].ID != "api-design-template" {
		t.Fatalf("results=%v", got)
	}

	_, raw = doJSON(t, http.MethodPost, ts.URL+"/api/templates/search?q=template&skip=1&limit=2", nil, nil)
	if got := decode[[]templates.Template](t, raw); len(got) != 2 {
		t.Fatalf("paged results=%d", len(got))
	}
}

func TestUploadGetDelete(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	upload := map[string]any{
		"id":          "my-template",
		"name":        "Mine",
		"description": "a user template",
		"content":     "# hello",
	}

	resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/templates/upload", upload, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", resp.StatusCode, string(raw))
	}
	ar := decode[templates.APIResponse](t, raw)
	if !ar.Success || ar.Data["template_id"] != "my-template" {
		t.Fatalf("upload response=%+v", ar)
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/api/templates/my-template", nil, nil)
	got := decode[templates.Template](t, raw)
	if got.Category != templates.UploadedCategory {
		t.Fatalf("category=%q", got.Category)
	}
	if got.Name != "Mine" || got.Content != "# hello" {
		t.Fatalf("template=%+v", got)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(fixedNow) || got.UpdatedAt == nil {
		t.Fatalf("timestamps created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}

	upload["name"] = "Changed"
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/templates/upload", upload, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status=%d", resp.StatusCode)
	}
	_, raw = doJSON(t, http.MethodGet, ts.URL+"/api/templates/my-template", nil, nil)
	if decode[templates.Template](t, raw).Name != "Mine" {
		t.Fatalf("conflicting upload mutated the store")
	}

	resp, raw = doJSON(t, http.MethodDelete, ts.URL+"/api/templates/my-template", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	if ar := decode[templates.APIResponse](t, raw); !ar.Success || ar.Data != nil {
		t.Fatalf("delete response=%+v", ar)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/templates/my-template", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/templates/my-template", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status=%d", resp.StatusCode)
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if n := decode[map[string]any](t, raw)["template_count"]; n != float64(6) {
		t.Fatalf("template_count=%v", n)
	}
}

func TestUpload_Validation(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	bodies := []any{
		`{"id":"x","name":"n","description":"d"}`,
		`{"id":"","name":"n","description":"d","content":"c"}`,
		`{"id":1,"name":"n","description":"d","content":"c"}`,
		`not json`,
		`{"id":"x","name":"n","description":"d","content":"c"} {}`,
	}

	for _, b := range bodies {
		resp, raw := doJSON(t, http.MethodPost, ts.URL+"/api/templates/upload", b, nil)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("body %s: status=%d resp=%s", b, resp.StatusCode, string(raw))
		}
	}

	// empty strings are present, so they pass
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/templates/upload",
		`{"id":"blank","name":"","description":"","content":"","extra":true}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("blank fields status=%d", resp.StatusCode)
	}
}

func TestUpload_ConcurrentSameID(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	const n = 20
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := strings.NewReader(`{"id":"race","name":"r","description":"d","content":"c"}`)
			resp, err := http.Post(ts.URL+"/api/templates/upload", "application/json", body)
			if err != nil {
				t.Errorf("post: %v", err)
				return
			}
			_ = resp.Body.Close()
			mu.Lock()
			codes[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if codes[http.StatusOK] != 1 || codes[http.StatusConflict] != n-1 {
		t.Fatalf("codes=%v", codes)
	}
}

func TestTestEndpoints(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/test/success", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("success status=%d", resp.StatusCode)
	}
	if m := decode[map[string]any](t, raw); m["status"] != "success" {
		t.Fatalf("success body=%v", m)
	}

	cases := []struct {
		code   int
		detail string
	}{
		{400, "bad request"},
		{401, "unauthorized"},
		{403, "forbidden"},
		{404, "resource not found"},
		{500, "internal server error"},
		{502, "bad gateway"},
		{503, "service unavailable"},
		{418, "HTTP 418 error"},
		{999, "HTTP 999 error"},
	}
	for _, c := range cases {
		resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/test/error/"+strconv.Itoa(c.code), nil, nil)
		if resp.StatusCode != c.code {
			t.Fatalf("error/%d status=%d", c.code, resp.StatusCode)
		}
		if d := decode[errBody](t, raw).Detail; d != c.detail {
			t.Fatalf("error/%d detail=%q want %q", c.code, d, c.detail)
		}
	}

	// bodyless statuses keep their code and drop the canned message
	for _, code := range []int{http.StatusNoContent, http.StatusNotModified} {
		resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/test/error/"+strconv.Itoa(code), nil, nil)
		if resp.StatusCode != code {
			t.Fatalf("error/%d status=%d", code, resp.StatusCode)
		}
		if len(raw) != 0 {
			t.Fatalf("error/%d body=%q", code, string(raw))
		}
		if resp.Header.Get(templates.HeaderServerName) != templates.ServerName {
			t.Fatalf("error/%d missing timing headers", code)
		}
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/test/error/abc", nil, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("error/abc status=%d", resp.StatusCode)
	}
}

func TestTestDelay(t *testing.T) {
	ts, _ := newTS(t, tsOpts{faults: templates.FaultConfig{MinDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond}})

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/test/delay/11", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delay/11 status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/test/delay/-1", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delay/-1 status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/test/delay/soon", nil, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("delay/soon status=%d", resp.StatusCode)
	}

	start := time.Now()
	resp, raw = doJSON(t, http.MethodGet, ts.URL+"/api/test/delay/0.1", nil, nil)
	elapsed := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delay/0.1 status=%d", resp.StatusCode)
	}
	if m := decode[map[string]any](t, raw); m["delay_seconds"] != 0.1 {
		t.Fatalf("body=%v", m)
	}

	pt, err := strconv.ParseFloat(resp.Header.Get(templates.HeaderProcessTime), 64)
	if err != nil {
		t.Fatalf("process time header: %v", err)
	}
	if pt < 0.11 {
		t.Fatalf("process time=%.3f, want >= 0.1s plus injected delay", pt)
	}
	if elapsed < 110*time.Millisecond {
		t.Fatalf("elapsed=%v", elapsed)
	}
}

func TestEveryResponseCarriesTimingHeaders(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	for _, path := range []string{"/", "/health", "/api/templates/missing", "/api/test/error/503", "/no/such/route"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+path, nil, nil)
		if resp.Header.Get(templates.HeaderServerName) != templates.ServerName {
			t.Fatalf("%s: server name=%q", path, resp.Header.Get(templates.HeaderServerName))
		}
		if _, err := strconv.ParseFloat(resp.Header.Get(templates.HeaderProcessTime), 64); err != nil {
			t.Fatalf("%s: process time=%q", path, resp.Header.Get(templates.HeaderProcessTime))
		}
	}

	resp, _ := doJSON(t, http.MethodOptions, ts.URL+"/api/templates", nil, map[string]string{
		"Origin":                        "http://editor.local",
		"Access-Control-Request-Method": http.MethodGet,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d", resp.StatusCode)
	}
	if resp.Header.Get(templates.HeaderServerName) != templates.ServerName {
		t.Fatalf("preflight server name=%q", resp.Header.Get(templates.HeaderServerName))
	}
	if _, err := strconv.ParseFloat(resp.Header.Get(templates.HeaderProcessTime), 64); err != nil {
		t.Fatalf("preflight process time=%q", resp.Header.Get(templates.HeaderProcessTime))
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://editor.local" {
		t.Fatalf("preflight allow origin=%q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

type panickingStore struct {
	templates.Store
}

func (panickingStore) List(context.Context) ([]templates.Template, error) {
	panic("store exploded")
}

func TestPanicStillCarriesTimingHeaders(t *testing.T) {
	s := &templates.Server{
		Store:  panickingStore{Store: templates.NewMemStore(nil)},
		Faults: templates.NewFaultInjector(templates.FaultConfig{MinDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Seed: 1}),
		Log:    zap.NewNop(),
	}
	ts := httptest.NewServer(templates.NewHandler(s, templates.HTTPDeps{Log: zap.NewNop()}))
	t.Cleanup(ts.Close)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/templates", nil, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if resp.Header.Get(templates.HeaderServerName) != templates.ServerName {
		t.Fatalf("server name=%q", resp.Header.Get(templates.HeaderServerName))
	}
	pt, err := strconv.ParseFloat(resp.Header.Get(templates.HeaderProcessTime), 64)
	if err != nil || pt < 0.005 {
		t.Fatalf("process time=%q", resp.Header.Get(templates.HeaderProcessTime))
	}

	// the process survives and keeps serving
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health after panic status=%d", resp.StatusCode)
	}
}

func TestInfoAndHealth(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	_, raw := doJSON(t, http.MethodGet, ts.URL+"/", nil, nil)
	info := decode[map[string]any](t, raw)
	if info["service"] != templates.ServerName || info["instance_id"] != "test-instance" {
		t.Fatalf("info=%v", info)
	}
	if _, ok := info["endpoints"].(map[string]any); !ok {
		t.Fatalf("endpoints missing: %v", info)
	}

	_, raw = doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	h := decode[map[string]any](t, raw)
	if h["status"] != "healthy" || h["template_count"] != float64(6) {
		t.Fatalf("health=%v", h)
	}
	if h["timestamp"] != fixedNow.Format(time.RFC3339Nano) {
		t.Fatalf("timestamp=%v", h["timestamp"])
	}

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status=%d", resp.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	ts, _ := newTS(t, tsOpts{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/templates", nil)
	req.Header.Set("Origin", "http://editor.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "X-Anything")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://editor.local" {
		t.Fatalf("allow origin=%q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "X-Anything" {
		t.Fatalf("allow headers=%q", got)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), http.MethodDelete) {
		t.Fatalf("allow methods=%q", resp.Header.Get("Access-Control-Allow-Methods"))
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/test/success", nil, map[string]string{"Origin": "http://editor.local"})
	if !strings.Contains(resp.Header.Get("Access-Control-Expose-Headers"), templates.HeaderProcessTime) {
		t.Fatalf("expose headers=%q", resp.Header.Get("Access-Control-Expose-Headers"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts, _ := newTS(t, tsOpts{registry: reg, token: "scrape", faults: templates.FaultConfig{FailureRate: 1}})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/templates", nil, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("list status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthenticated scrape status=%d", resp.StatusCode)
	}
	if resp.Header.Get(templates.HeaderServerName) != "" {
		t.Fatalf("metrics should bypass latency injection")
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil, map[string]string{"Authorization": "Bearer scrape"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scrape status=%d", resp.StatusCode)
	}
	body := string(raw)
	for _, want := range []string{
		`templatemock_injected_faults_total{route="/api/templates"} 1`,
		`http_requests_total{method="GET",path="/api/templates",service="templatemock",status="500"} 1`,
		"templatemock_injected_delay_seconds_count",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q\n%s", want, body)
		}
	}
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTS(t, tsOpts{limiter: kit.NewIPRateLimiter(2, time.Minute)})

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/test/success", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status=%d", i, resp.StatusCode)
		}
	}

	resp, raw := doJSON(t, http.MethodGet, ts.URL+"/api/test/success", nil, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("retry-after=%q", resp.Header.Get("Retry-After"))
	}

	// health stays outside /api
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status=%d", resp.StatusCode)
	}
}
