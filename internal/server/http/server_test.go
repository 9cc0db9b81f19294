package httpserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/turnstile/internal/config"
	"github.com/rzbill/turnstile/internal/metrics"
	"github.com/rzbill/turnstile/internal/runtime"
	gatesvc "github.com/rzbill/turnstile/internal/services/gates"
)

func openTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Store.DataDir = t.TempDir()
	cfg.Store.Fsync = "always"
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	gates := gatesvc.New(rt, gatesvc.Options{})
	t.Cleanup(func() { _ = gates.Close() })
	srv := New(rt, gates, Options{Registry: metrics.NewRegistry()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := openTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("body: %v", body)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestEnqueueReleaseFlow(t *testing.T) {
	ts := openTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{
		"gate": "orders", "key": "k1", "payload": []byte("a"),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enqueue status: %d", resp.StatusCode)
	}
	ar := decodeBody[gatesvc.ApplyResponse](t, resp)
	if len(ar.Admissions) != 1 || string(ar.Admissions[0].Payload) != "a" {
		t.Fatalf("first enqueue should admit, got %+v", ar)
	}

	resp = postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{
		"gate": "orders", "key": "k1", "payload": []byte("b"),
	})
	ar = decodeBody[gatesvc.ApplyResponse](t, resp)
	if len(ar.Admissions) != 0 || ar.Waiting != 2 {
		t.Fatalf("second enqueue should wait, got %+v", ar)
	}

	resp = postJSON(t, ts.URL+"/v1/gates/release", map[string]any{
		"gate": "orders", "key": "k1",
	})
	ar = decodeBody[gatesvc.ApplyResponse](t, resp)
	if len(ar.Admissions) != 1 || string(ar.Admissions[0].Payload) != "b" {
		t.Fatalf("release should admit successor, got %+v", ar)
	}
}

func TestApplyBatch(t *testing.T) {
	ts := openTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/gates/apply", gatesvc.ApplyRequest{
		Gate: "orders",
		Arrivals: []gatesvc.ArrivalInput{
			{Key: "k1"}, {Key: "k2"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply status: %d", resp.StatusCode)
	}
	ar := decodeBody[gatesvc.ApplyResponse](t, resp)
	if len(ar.Admissions) != 2 {
		t.Fatalf("expected both keys admitted, got %+v", ar)
	}
}

func TestStatusAndWaitingEndpoints(t *testing.T) {
	ts := openTestServer(t)
	postJSON(t, ts.URL+"/v1/gates/apply", gatesvc.ApplyRequest{
		Gate:     "orders",
		Arrivals: []gatesvc.ArrivalInput{{Key: "k1"}, {Key: "k1"}, {Key: "k2"}},
	})

	resp, err := http.Get(ts.URL + "/v1/gates/status?gate=orders")
	if err != nil {
		t.Fatalf("status get: %v", err)
	}
	st := decodeBody[gatesvc.StatusResponse](t, resp)
	if st.Waiting != 3 || st.LockedKeys != 2 || len(st.Queues) != 2 {
		t.Fatalf("status: %+v", st)
	}

	u := ts.URL + "/v1/gates/waiting?gate=orders&filter=" + strings.ReplaceAll(`key == "k1"`, " ", "%20")
	resp, err = http.Get(u)
	if err != nil {
		t.Fatalf("waiting get: %v", err)
	}
	wr := decodeBody[gatesvc.WaitingResponse](t, resp)
	if len(wr.Entries) != 2 {
		t.Fatalf("waiting entries: %+v", wr)
	}
}

func TestListGatesEndpoint(t *testing.T) {
	ts := openTestServer(t)
	postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{"gate": "alpha", "key": "k"})
	postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{"gate": "beta", "key": "k"})

	resp, err := http.Get(ts.URL + "/v1/gates")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body := decodeBody[map[string][]gatesvc.GateInfo](t, resp)
	if len(body["gates"]) != 2 {
		t.Fatalf("gates: %+v", body)
	}
}

func TestResetEndpoint(t *testing.T) {
	ts := openTestServer(t)
	postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{"gate": "orders", "key": "k"})

	resp := postJSON(t, ts.URL+"/v1/gates/reset", map[string]any{"gate": "orders"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status: %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/v1/gates/status?gate=orders")
	if err != nil {
		t.Fatalf("status get: %v", err)
	}
	st := decodeBody[gatesvc.StatusResponse](t, resp)
	if st.Waiting != 0 {
		t.Fatalf("expected empty gate after reset, got %+v", st)
	}
}

func TestBadRequests(t *testing.T) {
	ts := openTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{"gate": "Bad Name", "key": "k"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid name status: %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/v1/gates/apply", map[string]any{
		"gate": "orders", "mode": "bogus",
		"arrivals": []map[string]any{{"key": "k"}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid mode status: %d", resp.StatusCode)
	}

	r, err := http.Post(ts.URL+"/v1/gates/apply", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if r.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body status: %d", r.StatusCode)
	}

	r, err = http.Get(ts.URL + "/v1/gates/apply")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("method status: %d", r.StatusCode)
	}
}

func TestWatchSSE(t *testing.T) {
	ts := openTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/gates/watch?gate=orders")
	if err != nil {
		t.Fatalf("watch get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}

	postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{
		"gate": "orders", "key": "k1", "payload": []byte("x"),
	})

	type line struct {
		s   string
		err error
	}
	lines := make(chan line, 1)
	go func() {
		br := bufio.NewReader(resp.Body)
		for {
			l, err := br.ReadString('\n')
			if err != nil {
				lines <- line{err: err}
				return
			}
			if strings.HasPrefix(l, "data: ") {
				lines <- line{s: strings.TrimPrefix(strings.TrimSpace(l), "data: ")}
				return
			}
		}
	}()

	select {
	case l := <-lines:
		if l.err != nil {
			t.Fatalf("read sse: %v", l.err)
		}
		var adm struct {
			Key     string `json:"key"`
			Payload []byte `json:"payload"`
		}
		if err := json.Unmarshal([]byte(l.s), &adm); err != nil {
			t.Fatalf("decode sse event %q: %v", l.s, err)
		}
		if adm.Key != "k1" || string(adm.Payload) != "x" {
			t.Fatalf("sse admission: %+v", adm)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for sse event")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := openTestServer(t)
	postJSON(t, ts.URL+"/v1/gates/enqueue", map[string]any{"gate": "orders", "key": "k"})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status: %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, name := range []string{"turnstile_arrivals_total", "turnstile_admissions_total"} {
		if !strings.Contains(buf.String(), name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}
