package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/indexsupply/hookgen/config"
	"github.com/indexsupply/hookgen/gencache"
	"github.com/indexsupply/hookgen/hookabi"
	"github.com/indexsupply/hookgen/kv"
	"github.com/indexsupply/hookgen/tc"
	"github.com/indexsupply/hookgen/ui"
	"github.com/indexsupply/hookgen/wctx"

	"github.com/goccy/go-json"
	"kr.dev/diff"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const doc = `{"hooks": [
	{"id": "first", "abi": {
		"hookParameters": [{"name": "p", "selector": [{"type": "VarString", "pattern": "P"}], "data": [{"type": "UInt8"}]}],
		"otxnParameters": [{"name": "o", "selector": [{"type": "VarString", "pattern": "O"}], "data": [{"type": "UInt16"}]}]
	}},
	{"id": "second", "abi": {
		"hookStates": [{"name": "foo", "selector": [{"type": "UInt8", "pattern": "1"}], "data": [{"type": "UInt32"}]}]
	}}
]}`

func testHandler(t *testing.T, store kv.Store) *Handler {
	t.Helper()
	h, err := New(context.Background(), store, gencache.New(10), config.Dashboard{})
	tc.NoErr(t, err)
	return h
}

func form(pairs ...string) io.Reader {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return strings.NewReader(v.Encode())
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if method == "POST" && path != "/api/v1/generate" {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestNew_Restore(t *testing.T) {
	store := kv.NewMemory()
	tc.NoErr(t, store.Put(context.Background(), kv.InputKey, doc))
	h := testHandler(t, store)
	diff.Test(t, t.Errorf, h.Input(), doc)

	w := do(t, h.Routes(), "GET", "/", nil)
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	body := w.Body.String()
	for _, want := range []string{
		"first",
		"second",
		"Hook Parameters",
		"OTXN Parameters",
		"hook_param(SBUF(&#34;P&#34;), SBUF(&amp;pdata));",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in body", want)
		}
	}
}

func TestVersionHeader(t *testing.T) {
	ctx := wctx.WithVersion(context.Background(), "abcd")
	h, err := New(ctx, kv.NewMemory(), gencache.New(1), config.Dashboard{})
	tc.NoErr(t, err)
	w := do(t, h.Routes(), "GET", "/", nil)
	diff.Test(t, t.Errorf, w.Header().Get("Hookgen-Version"), "abcd")
}

func TestNew_Empty(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	diff.Test(t, t.Errorf, h.Input(), "")
	w := do(t, h.Routes(), "GET", "/", nil)
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
}

func TestIndex_NotFound(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	w := do(t, h.Routes(), "GET", "/nope", nil)
	diff.Test(t, t.Errorf, w.Code, http.StatusNotFound)
}

func TestIndex_PostDoesNotSave(t *testing.T) {
	store := kv.NewMemory()
	h := testHandler(t, store)
	w := do(t, h.Routes(), "POST", "/", form("input", doc))
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	if !strings.Contains(w.Body.String(), "pdata") {
		t.Error("expected generated code in body")
	}
	_, err := store.Get(context.Background(), kv.InputKey)
	tc.WantErr(t, err, kv.ErrNotFound)
	diff.Test(t, t.Errorf, h.Input(), "")
}

func TestIndex_Error(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	w := do(t, h.Routes(), "POST", "/", form("input", `{"x": 1}`))
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	if !strings.Contains(w.Body.String(), "parse error: Invalid JSON: No hooks field found") {
		t.Errorf("expected parse error in body:\n%s", w.Body.String())
	}
}

func TestFormat(t *testing.T) {
	store := kv.NewMemory()
	h := testHandler(t, store)
	w := do(t, h.Routes(), "POST", "/format", form("input", doc))
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)

	want, err := hookabi.Format([]byte(doc))
	tc.NoErr(t, err)
	got, err := store.Get(context.Background(), kv.InputKey)
	tc.NoErr(t, err)
	diff.Test(t, t.Errorf, got, string(want))
	diff.Test(t, t.Errorf, h.Input(), string(want))
}

func TestFormat_InvalidNotSaved(t *testing.T) {
	store := kv.NewMemory()
	h := testHandler(t, store)
	w := do(t, h.Routes(), "POST", "/format", form("input", `{"hooks": `))
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	_, err := store.Get(context.Background(), kv.InputKey)
	tc.WantErr(t, err, kv.ErrNotFound)
}

func TestFormat_MethodNotAllowed(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	w := do(t, h.Routes(), "GET", "/format", nil)
	diff.Test(t, t.Errorf, w.Code, http.StatusMethodNotAllowed)
}

func TestSelect(t *testing.T) {
	store := kv.NewMemory()
	tc.NoErr(t, store.Put(context.Background(), kv.InputKey, doc))
	h := testHandler(t, store)
	routes := h.Routes()

	w := do(t, routes, "POST", "/select", form("hook", "second"))
	diff.Test(t, t.Errorf, w.Code, http.StatusSeeOther)
	diff.Test(t, t.Errorf, w.Header().Get("Location"), "/")
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}
	diff.Test(t, t.Errorf, cookies[0].Secure, false)

	w = do(t, routes, "GET", "/", nil, cookies...)
	body := w.Body.String()
	if !strings.Contains(body, "state_set(SBUF(&amp;foodata), SBUF(&amp;fookey));") {
		t.Errorf("expected hook states code in body:\n%s", body)
	}

	w = do(t, routes, "POST", "/select", form("hook", "first", "section", "otxnParameters"))
	w = do(t, routes, "GET", "/", nil, w.Result().Cookies()...)
	if !strings.Contains(w.Body.String(), "SBUF(&#34;O&#34;)") {
		t.Errorf("expected otxn code in body:\n%s", w.Body.String())
	}
}

func TestSelect_BadCookie(t *testing.T) {
	store := kv.NewMemory()
	tc.NoErr(t, store.Put(context.Background(), kv.InputKey, doc))
	a, b := testHandler(t, store), testHandler(t, store)

	// b can't decrypt cookies from a
	w := do(t, a.Routes(), "POST", "/select", form("hook", "second"))
	w = do(t, b.Routes(), "GET", "/", nil, w.Result().Cookies()...)
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	if !strings.Contains(w.Body.String(), "SBUF(&#34;P&#34;)") {
		t.Error("expected default selection")
	}
}

func TestSelect_KeepsEdits(t *testing.T) {
	store := kv.NewMemory()
	tc.NoErr(t, store.Put(context.Background(), kv.InputKey, doc))
	h := testHandler(t, store)
	routes := h.Routes()

	edited := strings.Replace(doc, `"id": "second"`, `"id": "edited"`, 1)
	w := do(t, routes, "POST", "/select", form("hook", "edited", "input", edited))
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	body := w.Body.String()
	for _, want := range []string{
		`value="edited"`,
		"state_set(SBUF(&amp;foodata), SBUF(&amp;fookey));",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body:\n%s", want, body)
		}
	}
	diff.Test(t, t.Errorf, h.Input(), doc)

	// section tabs name their hook in current
	w = do(t, routes, "POST", "/select", form("current", "first", "section", "otxnParameters", "input", edited))
	body = w.Body.String()
	if !strings.Contains(body, "SBUF(&#34;O&#34;)") {
		t.Errorf("expected otxn code in body:\n%s", body)
	}
	if !strings.Contains(body, `value="edited"`) {
		t.Errorf("expected edited hook tab in body:\n%s", body)
	}
}

func TestIndex_EditorHooks(t *testing.T) {
	store := kv.NewMemory()
	tc.NoErr(t, store.Put(context.Background(), kv.InputKey, doc))
	h := testHandler(t, store)
	w := do(t, h.Routes(), "GET", "/", nil)
	body := w.Body.String()
	for _, want := range []string{
		`form="editor" formaction="/select"`,
		"input.onblur",
		"blur: true",
		"Copy failed",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body", want)
		}
	}
}

func TestGenerate(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	cases := []struct {
		body   string
		status int
		kind   ui.ErrKind
	}{
		{doc, http.StatusOK, ""},
		{`{"hooks": []}`, http.StatusOK, ""},
		{`{`, http.StatusBadRequest, ui.KindParse},
		{`{"hooks": [{"id": "a"}]}`, http.StatusBadRequest, ui.KindParse},
		{
			`{"hooks": [{"id": "a", "abi": {"hookStates": [{"name": "n", "selector": [{"type": "Null"}], "data": []}]}}]}`,
			http.StatusUnprocessableEntity,
			ui.KindGeneration,
		},
	}
	for _, c := range cases {
		w := do(t, h.Routes(), "POST", "/api/v1/generate", strings.NewReader(c.body))
		diff.Test(t, t.Errorf, w.Code, c.status)
		diff.Test(t, t.Errorf, w.Header().Get("Content-Type"), "application/json")
		if c.kind != "" {
			var res apiError
			tc.NoErr(t, json.Unmarshal(w.Body.Bytes(), &res))
			diff.Test(t, t.Errorf, res.Kind, c.kind)
			if res.Error == "" {
				t.Error("expected error message")
			}
			continue
		}
		var res struct {
			Hooks []struct {
				ID   string            `json:"id"`
				Code map[string]string `json:"code"`
			} `json:"hooks"`
		}
		tc.NoErr(t, json.Unmarshal(w.Body.Bytes(), &res))
		if res.Hooks == nil {
			t.Error("expected hooks array")
		}
	}
}

func TestGenerate_Body(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	w := do(t, h.Routes(), "POST", "/api/v1/generate", strings.NewReader(doc))
	var res struct {
		Hooks []struct {
			ID   string            `json:"id"`
			Code map[string]string `json:"code"`
		} `json:"hooks"`
	}
	tc.NoErr(t, json.Unmarshal(w.Body.Bytes(), &res))
	diff.Test(t, t.Fatalf, len(res.Hooks), 2)
	diff.Test(t, t.Errorf, res.Hooks[0].ID, "first")
	diff.Test(t, t.Errorf, len(res.Hooks[0].Code), 2)
	diff.Test(t, t.Errorf, res.Hooks[1].Code["hookStates"], strings.Join([]string{
		"// name: foo",
		"// description: ",
		"typedef struct FooKey {",
		"  uint8_t field_0;",
		"} FooKey;",
		"",
		"typedef struct FooData {",
		"  uint32_t field_0;",
		"} FooData;",
		"",
		"FooKey fookey = {",
		"  .field_0 = 1,",
		"};",
		"",
		"FooData foodata;",
		"state_set(SBUF(&foodata), SBUF(&fookey));",
		"",
	}, "\n"))
}

func TestLive(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live", nil)
	tc.NoErr(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	for i := 0; i < 2; i++ {
		tc.NoErr(t, wsjson.Write(ctx, c, liveRequest{Input: doc}))
		var v ui.View
		tc.NoErr(t, wsjson.Read(ctx, c, &v))
		diff.Test(t, t.Errorf, len(v.Hooks), 2)
		diff.Test(t, t.Errorf, v.SelectedHook, "first")
		diff.Test(t, t.Errorf, v.SelectedSection, hookabi.HookParameters)
		diff.Test(t, t.Errorf, v.Error, "")
	}
	hits, _ := h.cache.Stats()
	diff.Test(t, t.Errorf, hits, uint64(1))

	tc.NoErr(t, wsjson.Write(ctx, c, liveRequest{Input: `{"x": 1}`}))
	var v ui.View
	tc.NoErr(t, wsjson.Read(ctx, c, &v))
	diff.Test(t, t.Errorf, v.Kind, ui.KindParse)
	diff.Test(t, t.Errorf, v.Error, "Invalid JSON: No hooks field found")
	diff.Test(t, t.Errorf, len(v.Hooks), 0)
}

func TestLive_Blur(t *testing.T) {
	store := kv.NewMemory()
	h := testHandler(t, store)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/live", nil)
	tc.NoErr(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	tc.NoErr(t, wsjson.Write(ctx, c, liveRequest{Input: doc}))
	var res liveResponse
	tc.NoErr(t, wsjson.Read(ctx, c, &res))
	diff.Test(t, t.Errorf, res.Input, "")
	diff.Test(t, t.Errorf, h.Input(), "")

	want, err := hookabi.Format([]byte(doc))
	tc.NoErr(t, err)
	tc.NoErr(t, wsjson.Write(ctx, c, liveRequest{Input: doc, Blur: true}))
	res = liveResponse{}
	tc.NoErr(t, wsjson.Read(ctx, c, &res))
	diff.Test(t, t.Errorf, res.Input, string(want))
	diff.Test(t, t.Errorf, len(res.Hooks), 2)
	diff.Test(t, t.Errorf, h.Input(), string(want))
	saved, err := store.Get(ctx, kv.InputKey)
	tc.NoErr(t, err)
	diff.Test(t, t.Errorf, saved, string(want))

	// invalid input is neither formatted nor saved
	tc.NoErr(t, wsjson.Write(ctx, c, liveRequest{Input: `{"hooks": `, Blur: true}))
	res = liveResponse{}
	tc.NoErr(t, wsjson.Read(ctx, c, &res))
	diff.Test(t, t.Errorf, res.Kind, ui.KindParse)
	diff.Test(t, t.Errorf, res.Input, "")
	diff.Test(t, t.Errorf, h.Input(), string(want))
}

func TestMetrics(t *testing.T) {
	h := testHandler(t, kv.NewMemory())
	do(t, h.Routes(), "POST", "/api/v1/generate", strings.NewReader(doc))
	w := do(t, h.Routes(), "GET", "/metrics", nil)
	diff.Test(t, t.Errorf, w.Code, http.StatusOK)
	if !strings.Contains(w.Body.String(), `hookgen_generations_total{surface="api"}`) {
		t.Error("expected generation counter")
	}
}
