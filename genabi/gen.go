// Generates C source for Hook states and parameters
// from a Hook ABI.
//
// For each entry the generator emits a struct for the
// selector (the key) and a struct for the data, a
// variable of each and the native call that reads or
// writes the entry:
//
//	// name: foo
//	// description:
//	typedef struct FooKey {
//	  uint8_t field_0;
//	} FooKey;
//
//	typedef struct FooData {
//	  uint8_t field_0;
//	} FooData;
//
//	FooKey fookey = {
//	  .field_0 = 1,
//	};
//
//	FooData foodata;
//	state_set(SBUF(&foodata), SBUF(&fookey));
//
// When the selector is a single VarString with a
// pattern, no key struct is emitted and the pattern is
// passed directly to the native call.
package genabi

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/indexsupply/hookgen/hookabi"
	"github.com/indexsupply/hookgen/isxerrors"
	"github.com/indexsupply/hookgen/wstrings"
)

//go:embed template.txt
var entrytemp string

var templates = template.Must(template.New("entry").Parse(entrytemp))

// HookCode holds the generated source for each
// section of an ABI. A nil field means the section
// was absent from the ABI.
type HookCode struct {
	HookStates     *string `json:"hookStates,omitempty"`
	HookParameters *string `json:"hookParameters,omitempty"`
	OtxnParameters *string `json:"otxnParameters,omitempty"`
}

func (hc HookCode) Get(s hookabi.Section) (string, bool) {
	var p *string
	switch s {
	case hookabi.HookStates:
		p = hc.HookStates
	case hookabi.HookParameters:
		p = hc.HookParameters
	case hookabi.OtxnParameters:
		p = hc.OtxnParameters
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

func (hc *HookCode) set(s hookabi.Section, code string) {
	switch s {
	case hookabi.HookStates:
		hc.HookStates = &code
	case hookabi.HookParameters:
		hc.HookParameters = &code
	case hookabi.OtxnParameters:
		hc.OtxnParameters = &code
	}
}

// Native function used to address entries of s
func APICall(s hookabi.Section) string {
	if s == hookabi.HookStates {
		return "state_set"
	}
	return "hook_param"
}

// Generates code for each section present in abi.
// The first failing entry aborts the whole ABI.
func Gen(abi hookabi.ABI) (HookCode, error) {
	var hc HookCode
	for _, s := range hookabi.Sections {
		entries, ok := abi.Entries(s)
		if !ok {
			continue
		}
		code, err := GenSection(s, entries)
		if err != nil {
			return HookCode{}, err
		}
		hc.set(s, code)
	}
	return hc, nil
}

// Labels and generates each entry in order and
// joins the results with a newline.
func GenSection(s hookabi.Section, entries []hookabi.Entry) (string, error) {
	res := make([]string, len(entries))
	for i := range entries {
		code, err := GenEntry(APICall(s), entries[i].FillLabels())
		if err != nil {
			return "", entryErr(s, entries[i].Name, err)
		}
		res[i] = code
	}
	return strings.Join(res, "\n"), nil
}

type entryView struct {
	Name        string
	Description string
	API         string
	Key         string

	KeyStruct  string
	DataStruct string
	KeyVar     string
	DataVar    string
	KeyName    string
	DataName   string
}

// Generates the code for a single, labeled entry.
// api is the native call written on the last line.
func GenEntry(api string, e hookabi.Entry) (string, error) {
	var (
		err  error
		view = entryView{
			Name:        e.Name,
			Description: e.Description,
			API:         api,
		}
		keyStruct  = wstrings.Ucfirst(e.Name) + "Key"
		dataStruct = wstrings.Ucfirst(e.Name) + "Data"
		tname      = "keyed"
	)
	view.KeyName = strings.ToLower(keyStruct)
	view.DataName = strings.ToLower(dataStruct)

	if e.Direct() {
		tname = "direct"
		view.Key = e.Selector[0].Pattern
	} else {
		view.KeyStruct, err = Define(keyStruct, e.Selector)
		if err != nil {
			return "", err
		}
	}
	view.DataStruct, err = Define(dataStruct, e.Data)
	if err != nil {
		return "", err
	}
	if !e.Direct() {
		view.KeyVar, err = Initialize(keyStruct, e.Selector, false)
		if err != nil {
			return "", err
		}
	}
	view.DataVar, err = Initialize(dataStruct, e.Data, true)
	if err != nil {
		return "", err
	}

	var b bytes.Buffer
	err = templates.ExecuteTemplate(&b, tname, view)
	if err != nil {
		return "", isxerrors.Errorf("executing %s template: %w", tname, err)
	}
	return b.String(), nil
}
