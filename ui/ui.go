// UI state for the code generator form.
//
// All state lives in State and changes only through
// Update. Update never performs I/O: persistence is
// returned as an Effect for the caller to run.
package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/indexsupply/hookgen/genabi"
	"github.com/indexsupply/hookgen/hookabi"
)

type HookView struct {
	ID   string          `json:"id"`
	Code genabi.HookCode `json:"code"`
}

// Parses js and generates code for every hook.
// Errors are either *hookabi.ParseError or wrap
// a *genabi.Error.
func Generate(js string) ([]HookView, error) {
	hooks, err := hookabi.ParseDocument([]byte(js))
	if err != nil {
		return nil, err
	}
	res := make([]HookView, len(hooks))
	for i, h := range hooks {
		code, err := genabi.Gen(h.ABI)
		if err != nil {
			return nil, fmt.Errorf("hook %q: %w", h.ID, err)
		}
		res[i] = HookView{ID: h.ID, Code: code}
	}
	return res, nil
}

type ErrKind string

const (
	KindParse      ErrKind = "parse"
	KindGeneration ErrKind = "generation"
)

func Kind(err error) ErrKind {
	var ge *genabi.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ge):
		return KindGeneration
	default:
		return KindParse
	}
}

type State struct {
	// Generates code for an input. Defaults to
	// Generate. Set it to memoize generation.
	Gen func(string) ([]HookView, error)

	Input           string
	Hooks           []HookView
	SelectedHook    string
	SelectedSection hookabi.Section
	Err             error
}

type Msg interface{ isMsg() }

// The text area changed. Regenerates without saving.
type InputChanged struct{ Text string }

// The text area lost focus. Formats the input and,
// when it is valid JSON, saves it.
type InputBlurred struct{ Text string }

type SelectHook struct{ ID string }

type SelectSection struct{ Section hookabi.Section }

func (InputChanged) isMsg()  {}
func (InputBlurred) isMsg()  {}
func (SelectHook) isMsg()    {}
func (SelectSection) isMsg() {}

type Effect interface{ isEffect() }

// Persist Text as the last entered input
type Save struct{ Text string }

func (Save) isEffect() {}

func Update(s State, m Msg) (State, []Effect) {
	switch m := m.(type) {
	case InputChanged:
		return change(s, m.Text), nil
	case InputBlurred:
		if strings.TrimSpace(m.Text) == "" {
			return change(s, m.Text), nil
		}
		formatted, err := hookabi.Format([]byte(m.Text))
		if err != nil {
			s = reset(s)
			s.Input = m.Text
			s.Err = err
			return s, nil
		}
		s = change(s, string(formatted))
		return s, []Effect{Save{Text: string(formatted)}}
	case SelectHook:
		for _, h := range s.Hooks {
			if h.ID == m.ID {
				s.SelectedHook = h.ID
				s.SelectedSection = firstSection(h.Code)
				break
			}
		}
		return s, nil
	case SelectSection:
		h, ok := s.Selected()
		if !ok {
			return s, nil
		}
		if code, ok := h.Code.Get(m.Section); ok && code != "" {
			s.SelectedSection = m.Section
		}
		return s, nil
	default:
		return s, nil
	}
}

func reset(s State) State {
	s.Hooks = nil
	s.SelectedHook = ""
	s.SelectedSection = ""
	s.Err = nil
	return s
}

func change(s State, text string) State {
	prevHook, prevSection := s.SelectedHook, s.SelectedSection
	s = reset(s)
	s.Input = text
	if strings.TrimSpace(text) == "" {
		return s
	}
	gen := s.Gen
	if gen == nil {
		gen = Generate
	}
	hooks, err := gen(text)
	if err != nil {
		s.Err = err
		return s
	}
	s.Hooks = hooks
	if len(hooks) == 0 {
		return s
	}
	// keep the previous selection when it still exists
	s, _ = Update(s, SelectHook{ID: hooks[0].ID})
	s, _ = Update(s, SelectHook{ID: prevHook})
	s, _ = Update(s, SelectSection{Section: prevSection})
	return s
}

// Sections with non-empty code, in display order
func Sections(hc genabi.HookCode) []hookabi.Section {
	var res []hookabi.Section
	for _, sec := range hookabi.Sections {
		if code, ok := hc.Get(sec); ok && code != "" {
			res = append(res, sec)
		}
	}
	return res
}

func firstSection(hc genabi.HookCode) hookabi.Section {
	secs := Sections(hc)
	if len(secs) == 0 {
		return ""
	}
	return secs[0]
}

func (s State) Selected() (HookView, bool) {
	for _, h := range s.Hooks {
		if h.ID == s.SelectedHook {
			return h, true
		}
	}
	return HookView{}, false
}

// Code for the selected hook and section
func (s State) Code() string {
	h, ok := s.Selected()
	if !ok {
		return ""
	}
	code, _ := h.Code.Get(s.SelectedSection)
	return code
}

type View struct {
	Hooks           []HookView      `json:"hooks"`
	SelectedHook    string          `json:"selectedHook,omitempty"`
	SelectedSection hookabi.Section `json:"selectedSection,omitempty"`
	Error           string          `json:"error,omitempty"`
	Kind            ErrKind         `json:"kind,omitempty"`
}

func (s State) View() View {
	v := View{
		Hooks:           s.Hooks,
		SelectedHook:    s.SelectedHook,
		SelectedSection: s.SelectedSection,
		Kind:            Kind(s.Err),
	}
	if v.Hooks == nil {
		v.Hooks = []HookView{}
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}
