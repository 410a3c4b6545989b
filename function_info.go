package dynproxy

import (
	"encoding/json"
	"runtime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// AnonymousName is the descriptor name used until a wrapper is named.
const AnonymousName = "anonymous_function"

// SourceLocation identifies the place a callable was wrapped
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// CallerLocation returns the location of the caller skip frames above it.
// Go does not expose columns, so Column is always 0.
func CallerLocation(skip int) SourceLocation {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return SourceLocation{}
	}
	return SourceLocation{File: file, Line: line}
}

// FunctionInfo describes a wrapped callable
type FunctionInfo struct {
	Name           string
	ReturnType     string
	ArgumentTypes  []string
	ParameterNames []string
	Hash           string
	Noexcept       bool
	Location       SourceLocation
}

// SetParameterName names parameter i, growing ParameterNames as needed.
func (fi *FunctionInfo) SetParameterName(i int, name string) {
	if i < 0 {
		return
	}
	if i >= len(fi.ParameterNames) {
		grown := make([]string, i+1)
		copy(grown, fi.ParameterNames)
		fi.ParameterNames = grown
	}
	fi.ParameterNames[i] = name
}

// ParameterName returns the name of parameter i, or "" if unnamed
func (fi *FunctionInfo) ParameterName(i int) string {
	if i < 0 || i >= len(fi.ParameterNames) {
		return ""
	}
	return fi.ParameterNames[i]
}

// computeHash recomputes Hash from the return type, name and argument types.
// The hash stays empty until argument types are known.
func (fi *FunctionInfo) computeHash() {
	if len(fi.ArgumentTypes) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(fi.ReturnType)
	b.WriteString(fi.Name)
	for _, t := range fi.ArgumentTypes {
		b.WriteString(t)
	}
	fi.Hash = ContentHash(b.String())
}

// Clone returns a deep copy
func (fi FunctionInfo) Clone() FunctionInfo {
	out := fi
	out.ArgumentTypes = append([]string(nil), fi.ArgumentTypes...)
	out.ParameterNames = append([]string(nil), fi.ParameterNames...)
	return out
}

// String renders the signature, e.g. "add(x int, y int) int".
func (fi FunctionInfo) String() string {
	var b strings.Builder
	b.WriteString(fi.Name)
	b.WriteByte('(')
	for i, t := range fi.ArgumentTypes {
		if i > 0 {
			b.WriteString(", ")
		}
		if name := fi.ParameterName(i); name != "" {
			b.WriteString(name)
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	b.WriteByte(')')
	if fi.ReturnType != "" && fi.ReturnType != VoidTypeName {
		b.WriteByte(' ')
		b.WriteString(fi.ReturnType)
	}
	return b.String()
}

type functionInfoWire struct {
	Name           string   `json:"name" msgpack:"name"`
	ReturnType     *string  `json:"return_type" msgpack:"return_type"`
	ArgumentTypes  []string `json:"argument_types" msgpack:"argument_types"`
	ParameterNames []string `json:"parameter_names" msgpack:"parameter_names"`
	Hash           *string  `json:"hash" msgpack:"hash"`
	Noexcept       bool     `json:"noexcept" msgpack:"noexcept"`
	File           string   `json:"file" msgpack:"file"`
	Line           int      `json:"line" msgpack:"line"`
	Column         int      `json:"column" msgpack:"column"`
}

func (fi FunctionInfo) wire() functionInfoWire {
	returnType, hash := fi.ReturnType, fi.Hash
	w := functionInfoWire{
		Name:           fi.Name,
		ReturnType:     &returnType,
		ArgumentTypes:  fi.ArgumentTypes,
		ParameterNames: fi.ParameterNames,
		Hash:           &hash,
		Noexcept:       fi.Noexcept,
		File:           fi.Location.File,
		Line:           fi.Location.Line,
		Column:         fi.Location.Column,
	}
	if w.ArgumentTypes == nil {
		w.ArgumentTypes = []string{}
	}
	if w.ParameterNames == nil {
		w.ParameterNames = []string{}
	}
	return w
}

// fromWire restores everything except the source location.
func (fi *FunctionInfo) fromWire(w functionInfoWire) error {
	switch {
	case w.ReturnType == nil:
		return typeError("function info is missing \"return_type\"")
	case w.ArgumentTypes == nil:
		return typeError("function info is missing \"argument_types\"")
	case w.Hash == nil:
		return typeError("function info is missing \"hash\"")
	}
	*fi = FunctionInfo{
		Name:           w.Name,
		ReturnType:     *w.ReturnType,
		ArgumentTypes:  w.ArgumentTypes,
		ParameterNames: w.ParameterNames,
		Hash:           *w.Hash,
		Noexcept:       w.Noexcept,
	}
	return nil
}

// MarshalJSON encodes the descriptor including its source location
func (fi FunctionInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(fi.wire())
}

// UnmarshalJSON decodes the descriptor. The source location is not restored.
func (fi *FunctionInfo) UnmarshalJSON(data []byte) error {
	var w functionInfoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return &Error{Kind: KindType, Detail: "JSON parsing error", Cause: err}
	}
	return fi.fromWire(w)
}

// MarshalMsgpack encodes the descriptor with the JSON field names
func (fi FunctionInfo) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(fi.wire())
}

// UnmarshalMsgpack decodes the descriptor. The source location is not restored.
func (fi *FunctionInfo) UnmarshalMsgpack(data []byte) error {
	var w functionInfoWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return &Error{Kind: KindType, Detail: "msgpack decode failed", Cause: err}
	}
	// msgpack may decode an empty array as a nil slice
	if w.ArgumentTypes == nil {
		w.ArgumentTypes = []string{}
	}
	return fi.fromWire(w)
}
