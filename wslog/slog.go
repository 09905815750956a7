// custom slog handler
//
// Adapted from: https://github.com/jba/slog
// BSD 3-Clause License
// Copyright (c) 2022, Jonathan Amsterdam
package wslog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/indexsupply/hookgen/wctx"
)

// Writes one line per record:
//
//	l=info  msg=generate req=2f1c hook=escrow n=3
type Handler struct {
	ctxs      []func(context.Context) (string, any)
	opts      slog.HandlerOptions
	prefix    string
	preformat string
	mu        *sync.Mutex
	w         io.Writer
}

func New(w io.Writer, opts *slog.HandlerOptions) *Handler {
	h := &Handler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Logger with the request, hook and section
// context values from wctx attached to every line.
func Logger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := New(w, &slog.HandlerOptions{Level: level})
	h.RegisterContext(func(ctx context.Context) (string, any) {
		return nonEmpty("req", wctx.RequestID(ctx))
	})
	h.RegisterContext(func(ctx context.Context) (string, any) {
		return nonEmpty("hook", wctx.HookID(ctx))
	})
	h.RegisterContext(func(ctx context.Context) (string, any) {
		return nonEmpty("sec", wctx.Section(ctx))
	})
	return slog.New(h)
}

func nonEmpty(k, v string) (string, any) {
	if v == "" {
		return "", nil
	}
	return k, v
}

// Registers a context value with the handler.
// f returns the key and value written to the line,
// an empty key skips the value.
func (h *Handler) RegisterContext(f func(context.Context) (string, any)) {
	h.mu.Lock()
	h.ctxs = append(h.ctxs, f)
	h.mu.Unlock()
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *Handler) clone() *Handler {
	h.mu.Lock()
	ctxs := make([]func(context.Context) (string, any), len(h.ctxs))
	copy(ctxs, h.ctxs)
	h.mu.Unlock()
	return &Handler{
		ctxs:      ctxs,
		opts:      h.opts,
		prefix:    h.prefix,
		preformat: h.preformat,
		mu:        h.mu,
		w:         h.w,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix += name + "."
	return c
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var buf []byte
	for _, a := range attrs {
		buf = appendAttr(buf, h.prefix, a)
	}
	c := h.clone()
	c.preformat += string(buf)
	return c
}

var bpool = sync.Pool{New: func() any { b := make([]byte, 0, 1024); return &b }}

func freebuf(b *[]byte) {
	if cap(*b) <= 16<<10 {
		*b = (*b)[:0]
		bpool.Put(b)
	}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var (
		bufp = bpool.Get().(*[]byte)
		buf  = *bufp
	)
	defer func() {
		*bufp = buf
		freebuf(bufp)
	}()
	buf = fmt.Appendf(buf, "l=%-5s ", strings.ToLower(r.Level.String()))
	buf = append(buf, h.preformat...)
	if len(r.Message) > 0 {
		buf = append(buf, "msg="...)
		buf = append(buf, r.Message...)
		buf = append(buf, ' ')
	}
	h.mu.Lock()
	ctxs := h.ctxs
	h.mu.Unlock()
	for _, f := range ctxs {
		k, v := f(ctx)
		if k == "" {
			continue
		}
		buf = fmt.Appendf(buf, "%s=%v ", k, v)
	}
	if h.opts.AddSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		buf = append(buf, f.File...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(f.Line), 10)
		buf = append(buf, ' ')
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	buf = bytes.TrimSuffix(buf, []byte(" "))
	buf = append(buf, '\n')
	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() != slog.KindGroup {
		buf = append(buf, prefix...)
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		return fmt.Appendf(buf, "%v ", a.Value.Any())
	}
	if a.Key != "" {
		prefix += a.Key + "."
	}
	for _, ga := range a.Value.Group() {
		buf = appendAttr(buf, prefix, ga)
	}
	return buf
}
