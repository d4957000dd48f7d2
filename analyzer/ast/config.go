package ast

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile overlays the YAML file at path on base. Keys left out of
// the file, or set to their zero value, keep the base value. Unknown keys
// are an error.
//
//	renderFunction: Render
//	executeTemplateFunction: ExecuteTemplate
//	setFunction: Set
//	contextType: Context
//	globalTemplate: global
//	maxDepth: 10
func LoadConfigFile(path string, base AnalysisConfig) (AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}

	var file AnalysisConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}

	if file.MaxDepth < 0 {
		return base, fmt.Errorf("parse config %s: maxDepth must not be negative", path)
	}

	return base.merge(file), nil
}

// merge returns c with every non-zero field of o applied.
func (c AnalysisConfig) merge(o AnalysisConfig) AnalysisConfig {
	if o.RenderFunctionName != "" {
		c.RenderFunctionName = o.RenderFunctionName
	}
	if o.ExecuteTemplateFunctionName != "" {
		c.ExecuteTemplateFunctionName = o.ExecuteTemplateFunctionName
	}
	if o.SetFunctionName != "" {
		c.SetFunctionName = o.SetFunctionName
	}
	if o.ContextTypeName != "" {
		c.ContextTypeName = o.ContextTypeName
	}
	if o.GlobalTemplateName != "" {
		c.GlobalTemplateName = o.GlobalTemplateName
	}
	if o.MaxDepth > 0 {
		c.MaxDepth = o.MaxDepth
	}
	return c
}

// withDefaults fills unset fields from DefaultConfig.
func (c AnalysisConfig) withDefaults() AnalysisConfig {
	return DefaultConfig.merge(c)
}
