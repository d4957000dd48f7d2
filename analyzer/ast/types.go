package ast

import (
	goast "go/ast"
	"go/token"
)

// TemplateVar is a named value available at the top level of a template's
// data context. Fields holds the fully expanded field graph rooted at its type.
type TemplateVar struct {
	// Name is the key under which the value is exposed to the template.
	Name string `json:"name"`
	// TypeStr is the package-qualifier-free type string (e.g. "[]*User").
	TypeStr string `json:"type"`
	// Fields are the exported fields and methods reachable from the type.
	// For slices and maps these describe the element type.
	Fields []FieldInfo `json:"fields,omitempty"`
	// IsSlice reports a slice or array value.
	IsSlice bool `json:"isSlice"`
	// IsMap reports a map value.
	IsMap bool `json:"isMap"`
	// KeyType is the map key type when IsMap is set.
	KeyType string `json:"keyType,omitempty"`
	// ElemType is the element type when IsSlice or IsMap is set.
	ElemType string `json:"elemType,omitempty"`

	DefFile string `json:"defFile,omitempty"`
	DefLine int    `json:"defLine,omitempty"`
	DefCol  int    `json:"defCol,omitempty"`
	// Doc is the documentation of the value's (element) type.
	Doc string `json:"doc,omitempty"`
}

// FieldInfo describes one exported field or method reachable from a type.
// Methods carry TypeStr "method" and a signature in Params/Returns.
type FieldInfo struct {
	Name    string `json:"name"`
	TypeStr string `json:"type"`
	// Fields is populated only when the field's own type, after unwrapping
	// pointers, slices and maps, is a named struct or interface.
	Fields   []FieldInfo `json:"fields,omitempty"`
	IsSlice  bool        `json:"isSlice"`
	IsMap    bool        `json:"isMap"`
	KeyType  string      `json:"keyType,omitempty"`
	ElemType string      `json:"elemType,omitempty"`
	Params   []ParamInfo `json:"params,omitempty"`
	Returns  []ParamInfo `json:"returns,omitempty"`
	DefFile  string      `json:"defFile,omitempty"`
	DefLine  int         `json:"defLine,omitempty"`
	DefCol   int         `json:"defCol,omitempty"`
	Doc      string      `json:"doc,omitempty"`
}

// RenderCall is one statically discovered template rendering, with every
// variable known to be in scope for it.
type RenderCall struct {
	// File is relative to the analysis root, or "context-file" for
	// synthetic entries.
	File string `json:"file"`
	Line int    `json:"line"`
	// Template is the resolved template name.
	Template string `json:"template"`
	// TemplateNameStartCol and TemplateNameEndCol span the template name
	// argument, excluding quotes for string literals.
	TemplateNameStartCol int           `json:"templateNameStartCol,omitempty"`
	TemplateNameEndCol   int           `json:"templateNameEndCol,omitempty"`
	Vars                 []TemplateVar `json:"vars"`
}

// AnalysisResult is the serializable outcome of one analysis run.
// Errors are advisory; partial results are always returned.
type AnalysisResult struct {
	RenderCalls []RenderCall  `json:"renderCalls"`
	FuncMaps    []FuncMapInfo `json:"funcMaps"`
	Errors      []string      `json:"errors"`
}

// FuncMapInfo is one custom function exposed to templates through a
// template.FuncMap.
type FuncMapInfo struct {
	Name    string      `json:"name"`
	Params  []ParamInfo `json:"params,omitempty"`
	Returns []ParamInfo `json:"returns"`
	Doc     string      `json:"doc,omitempty"`
	DefFile string      `json:"defFile,omitempty"`
	DefLine int         `json:"defLine,omitempty"`
	DefCol  int         `json:"defCol,omitempty"`
}

// ParamInfo is a parameter or result of a function signature. Name is empty
// for unnamed parameters.
type ParamInfo struct {
	Name    string `json:"name,omitempty"`
	TypeStr string `json:"type"`
}

// AnalysisConfig names the functions and types the analyzer treats as
// template operations.
type AnalysisConfig struct {
	// RenderFunctionName is the render function or method (default "Render").
	RenderFunctionName string `yaml:"renderFunction"`
	// ExecuteTemplateFunctionName is an alternate render name, e.g. "ExecuteTemplate".
	ExecuteTemplateFunctionName string `yaml:"executeTemplateFunction"`
	// SetFunctionName is the method that sets a context variable (default "Set").
	SetFunctionName string `yaml:"setFunction"`
	// ContextTypeName is the receiver type of SetFunctionName (default "Context").
	ContextTypeName string `yaml:"contextType"`
	// GlobalTemplateName is the context-file key merged into every template (default "global").
	GlobalTemplateName string `yaml:"globalTemplate"`
	// MaxDepth bounds field expansion regardless of cycle detection (default 10).
	MaxDepth int `yaml:"maxDepth"`
}

// DefaultMaxDepth is the field expansion depth used when none is configured.
const DefaultMaxDepth = 10

// DefaultConfig follows rex conventions.
var DefaultConfig = AnalysisConfig{
	RenderFunctionName:          "Render",
	ExecuteTemplateFunctionName: "",
	SetFunctionName:             "Set",
	ContextTypeName:             "Context",
	GlobalTemplateName:          "global",
	MaxDepth:                    DefaultMaxDepth,
}

// FuncScope holds the template facts extracted from one function body,
// function literal or top-level var/const declaration.
type FuncScope struct {
	SetVars     []TemplateVar    // variables set via the context's Set method
	RenderNodes []ResolvedRender // render calls with resolved names
	FuncMaps    []FuncMapInfo    // func map entries declared in this scope

	// MapAssignments maps a local identifier to the string-keyed composite
	// literal last assigned to it, including keys added by index assignment.
	MapAssignments map[string]*goast.CompositeLit

	pos token.Pos // start of the scope node, for ordering
}

// informative reports whether the scope carries anything worth keeping.
func (s *FuncScope) informative() bool {
	return len(s.RenderNodes) > 0 || len(s.SetVars) > 0 || len(s.FuncMaps) > 0
}

// ResolvedRender is a render call plus its statically resolved template names.
type ResolvedRender struct {
	Node           *goast.CallExpr
	TemplateNames  []string
	TemplateArgIdx int
}

// structIndexEntry is the documentation and position metadata of one
// declared struct or interface type.
type structIndexEntry struct {
	doc    string
	fields map[string]fieldPos // field or method name
}

// fieldPos is the declaration site and doc comment of a field or method.
type fieldPos struct {
	file string
	line int
	col  int
	doc  string
}
