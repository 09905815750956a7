// HTTP surfaces for the generator: an html form,
// a JSON API and a websocket that regenerates on
// every keystroke.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/indexsupply/hookgen/config"
	"github.com/indexsupply/hookgen/gencache"
	"github.com/indexsupply/hookgen/hookabi"
	"github.com/indexsupply/hookgen/isxerrors"
	"github.com/indexsupply/hookgen/kv"
	"github.com/indexsupply/hookgen/telemetry"
	"github.com/indexsupply/hookgen/ui"
	"github.com/indexsupply/hookgen/wctx"

	"filippo.io/age"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/kr/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

const maxInput = 1 << 20

type Handler struct {
	store   kv.Store
	cache   *gencache.Cache
	sess    session.Config
	version string

	mu    sync.Mutex
	input string
}

// Restores the saved input from store. A store
// without a saved input starts empty.
func New(ctx context.Context, store kv.Store, cache *gencache.Cache, conf config.Dashboard) (*Handler, error) {
	h := &Handler{store: store, cache: cache, version: wctx.Version(ctx)}
	cookieID, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating cookie key: %w", err)
	}
	h.sess.Keys = append(h.sess.Keys, cookieID)
	c := session.DefaultCookie
	c.Secure = conf.SecureCookies
	h.sess.Cookie = &c

	input, err := store.Get(ctx, kv.InputKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		slog.InfoContext(ctx, "no saved input")
	case err != nil:
		return nil, fmt.Errorf("restoring input: %w", err)
	default:
		h.input = input
		slog.InfoContext(ctx, "restored input", "n", len(input))
	}
	return h, nil
}

func (h *Handler) Input() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.input
}

// Tab selection kept in the session cookie
type selection struct {
	Hook    string          `json:"hook"`
	Section hookabi.Section `json:"section"`
}

func (h *Handler) selection(r *http.Request) selection {
	var sel selection
	if err := session.Get(r, &sel, &h.sess); err != nil {
		return selection{}
	}
	return sel
}

// Runs m through ui.Update and records metrics and
// a span for the generation it performs.
func (h *Handler) update(ctx context.Context, surface string, s ui.State, m ui.Msg) (ui.State, []ui.Effect) {
	s.Gen = h.cache.Generate
	metrics := telemetry.NewMetrics(surface)
	metrics.Start()
	defer metrics.Stop()
	ctx, span := telemetry.Start(ctx, "update", attribute.String("surface", surface))
	defer span.End()

	s, effects := ui.Update(s, m)
	if s.Err != nil {
		metrics.Failure(string(ui.Kind(s.Err)))
		span.SetStatus(codes.Error, s.Err.Error())
		slog.DebugContext(ctx, "generate", "kind", ui.Kind(s.Err), "error", isxerrors.Detail(s.Err))
		return s, effects
	}
	for _, hv := range s.Hooks {
		for _, sec := range ui.Sections(hv.Code) {
			metrics.Section(string(sec))
		}
	}
	slog.DebugContext(ctx, "generate", "n", len(s.Hooks))
	return s, effects
}

func (h *Handler) run(ctx context.Context, effects []ui.Effect) error {
	for _, e := range effects {
		switch e := e.(type) {
		case ui.Save:
			if err := h.store.Put(ctx, kv.InputKey, e.Text); err != nil {
				telemetry.StoreError("put", err)
				return fmt.Errorf("saving input: %w", err)
			}
			h.mu.Lock()
			h.input = e.Text
			h.mu.Unlock()
		}
	}
	return nil
}

// Applies the session's selection to s
func (sel selection) apply(s ui.State) ui.State {
	s, _ = ui.Update(s, ui.SelectHook{ID: sel.Hook})
	s, _ = ui.Update(s, ui.SelectSection{Section: sel.Section})
	return s
}

type HookTab struct {
	ID       string
	Selected bool
}

type SectionTab struct {
	Section  hookabi.Section
	Title    string
	Selected bool
}

type IndexView struct {
	Input        string
	Hooks        []HookTab
	SelectedHook string
	Sections     []SectionTab
	Code         string
	Error        string
	Kind         ui.ErrKind
}

func newIndexView(s ui.State) IndexView {
	v := IndexView{
		Input:        s.Input,
		SelectedHook: s.SelectedHook,
		Code:         s.Code(),
		Kind:         ui.Kind(s.Err),
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	for _, hv := range s.Hooks {
		v.Hooks = append(v.Hooks, HookTab{ID: hv.ID, Selected: hv.ID == s.SelectedHook})
	}
	if hv, ok := s.Selected(); ok {
		for _, sec := range ui.Sections(hv.Code) {
			v.Sections = append(v.Sections, SectionTab{
				Section:  sec,
				Title:    sec.Title(),
				Selected: sec == s.SelectedSection,
			})
		}
	}
	return v
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, s ui.State) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, newIndexView(s)); err != nil {
		slog.ErrorContext(r.Context(), "rendering index", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET renders the saved input. POST renders the
// posted input without saving it.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var input string
	switch r.Method {
	case "GET":
		input = h.Input()
	case "POST":
		r.Body = http.MaxBytesReader(w, r.Body, maxInput)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		input = r.FormValue("input")
	default:
		http.Error(w, "must be post or get", http.StatusMethodNotAllowed)
		return
	}
	s, _ := h.update(r.Context(), "form", ui.State{}, ui.InputChanged{Text: input})
	h.render(w, r, h.selection(r).apply(s))
}

// Formats and saves the posted input
func (h *Handler) Format(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "must be post", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxInput)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	s, effects := h.update(ctx, "form", ui.State{}, ui.InputBlurred{Text: r.FormValue("input")})
	if err := h.run(ctx, effects); err != nil {
		slog.ErrorContext(ctx, "format", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.render(w, r, h.selection(r).apply(s))
}

// Stores the requested tab in the session cookie.
// Choosing a hook without a section resets the
// section to the hook's first one. A section tab
// names its hook in the current field.
//
// When the form carries the editor's input, the
// page is rendered from it so unsaved edits survive
// the tab change. Otherwise it redirects to the
// saved input.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "must be post", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxInput)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sel := selection{
		Hook:    r.FormValue("hook"),
		Section: hookabi.Section(r.FormValue("section")),
	}
	if sel.Hook == "" {
		sel.Hook = r.FormValue("current")
	}
	if err := session.Set(w, &sel, &h.sess); err != nil {
		slog.ErrorContext(r.Context(), "setting session", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := r.PostForm["input"]; !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s, _ := h.update(r.Context(), "form", ui.State{}, ui.InputChanged{Text: r.PostForm.Get("input")})
	h.render(w, r, sel.apply(s))
}

type apiError struct {
	Error string     `json:"error"`
	Kind  ui.ErrKind `json:"kind"`
}

type apiResponse struct {
	Hooks []ui.HookView `json:"hooks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Generates code for the document in the request body
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "must be post", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInput))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	s, _ := h.update(r.Context(), "api", ui.State{}, ui.InputChanged{Text: string(body)})
	switch ui.Kind(s.Err) {
	case ui.KindParse:
		writeJSON(w, http.StatusBadRequest, apiError{s.Err.Error(), ui.KindParse})
	case ui.KindGeneration:
		writeJSON(w, http.StatusUnprocessableEntity, apiError{s.Err.Error(), ui.KindGeneration})
	default:
		hooks := s.Hooks
		if hooks == nil {
			hooks = []ui.HookView{}
		}
		writeJSON(w, http.StatusOK, apiResponse{Hooks: hooks})
	}
}

type liveRequest struct {
	Input string `json:"input"`
	Blur  bool   `json:"blur,omitempty"`
}

// Input is set only in replies to a blur and holds
// the formatted text that was saved.
type liveResponse struct {
	ui.View
	Input string `json:"input,omitempty"`
}

// Answers each {"input": "..."} message with a ui.View.
// A message with blur set formats and saves the input.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.ErrorContext(r.Context(), "accepting websocket", "error", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	var (
		ctx = r.Context()
		sel = h.selection(r)
	)
	slog.InfoContext(ctx, "start live")
	for {
		var req liveRequest
		err := wsjson.Read(ctx, c, &req)
		switch {
		case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
			websocket.CloseStatus(err) == websocket.StatusGoingAway:
			slog.InfoContext(ctx, "stop live")
			c.Close(websocket.StatusNormalClosure, "")
			return
		case err != nil:
			slog.DebugContext(ctx, "reading live message", "error", err)
			return
		}
		var msg ui.Msg = ui.InputChanged{Text: req.Input}
		if req.Blur {
			msg = ui.InputBlurred{Text: req.Input}
		}
		s, effects := h.update(ctx, "live", ui.State{}, msg)
		if err := h.run(ctx, effects); err != nil {
			slog.ErrorContext(ctx, "live save", "error", err)
			return
		}
		res := liveResponse{View: sel.apply(s).View()}
		if len(effects) > 0 {
			res.Input = s.Input
		}
		if err := wsjson.Write(ctx, c, res); err != nil {
			slog.DebugContext(ctx, "writing live message", "error", err)
			return
		}
	}
}

// Routes, with every route logged and every route
// except the websocket gzipped.
func (h *Handler) Routes() http.Handler {
	gz := func(hf http.HandlerFunc) http.Handler {
		return gzhttp.GzipHandler(hf)
	}
	mux := http.NewServeMux()
	mux.Handle("/", gz(h.Index))
	mux.Handle("/format", gz(h.Format))
	mux.Handle("/select", gz(h.Select))
	mux.Handle("/api/v1/generate", gz(h.Generate))
	mux.HandleFunc("/live", h.Live)
	mux.Handle("/metrics", promhttp.Handler())
	return Log(h.versioned(mux))
}

func (h *Handler) versioned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.version != "" {
			w.Header().Set("Hookgen-Version", h.version)
		}
		next.ServeHTTP(w, r)
	})
}

// Adds a request id to the context and logs the
// path and elapsed time of each request.
func Log(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			t0  = time.Now()
			id  = uuid.New().String()[:8]
			ctx = wctx.WithRequestID(r.Context(), id)
		)
		h.ServeHTTP(w, r.WithContext(ctx))
		slog.InfoContext(ctx, "", "e", time.Since(t0), "u", r.URL.Path)
	})
}
