// Package toolspec describes the metadata a middleware or agent contributes
// to an agent's tool set, grounded on the shape of
// runtime/agent/tools/spec.go's ToolSpec but pared down to what spec §6's
// tool contract actually needs (no codegen-time schema/codec machinery).
package toolspec

import "context"

type (
	// ParamKind is the JSON Schema primitive a FunctionParam describes.
	ParamKind string

	// ToolSpec is the metadata and executable body for one tool.
	ToolSpec struct {
		// Name is the tool's identifier as it appears in tool_calls.
		Name string
		// Description is shown to the model.
		Description string
		// Parameters describes the tool's arguments, either as a FunctionParam
		// list (rendered via ToParametersSchema) or as a raw JSON Schema object
		// (RawSchema), never both.
		Parameters []FunctionParam
		// RawSchema, when non-nil, is used verbatim instead of Parameters.
		RawSchema map[string]any
		// Function executes the tool. Args is already-decoded JSON.
		Function func(ctx context.Context, args map[string]any) (any, error)
		// Async indicates Function may run concurrently with other tool calls
		// in the same turn rather than sequentially.
		Async bool
		// Options carries middleware-specific annotations (confirmation
		// prompts, display hints) that do not affect the schema sent to the
		// model.
		Options map[string]any
	}

	// FunctionParam describes one parameter in a tool's parameter list.
	FunctionParam struct {
		Name        string
		Kind        ParamKind
		Description string
		Required    bool
		Enum        []string
		// ItemType describes the element kind when Kind == ParamArray.
		ItemType ParamKind
		// ObjectProperties describes nested fields when Kind == ParamObject
		// (or when Kind == ParamArray and ItemType == ParamObject).
		ObjectProperties []FunctionParam
	}
)

const (
	ParamString  ParamKind = "string"
	ParamInteger ParamKind = "integer"
	ParamNumber  ParamKind = "number"
	ParamBoolean ParamKind = "boolean"
	ParamArray   ParamKind = "array"
	ParamObject  ParamKind = "object"
)

// ToParametersSchema renders params as a standard JSON Schema object with
// type=object, properties, and required.
func ToParametersSchema(params []FunctionParam) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = paramSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func paramSchema(p FunctionParam) map[string]any {
	schema := map[string]any{"type": string(p.Kind)}
	if p.Description != "" {
		schema["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		schema["enum"] = enum
	}
	switch p.Kind {
	case ParamArray:
		schema["items"] = itemSchema(p)
	case ParamObject:
		nested := ToParametersSchema(p.ObjectProperties)
		schema["properties"] = nested["properties"]
		if req, ok := nested["required"]; ok {
			schema["required"] = req
		}
	}
	return schema
}

func itemSchema(p FunctionParam) map[string]any {
	if p.ItemType == ParamObject {
		return ToParametersSchema(p.ObjectProperties)
	}
	kind := p.ItemType
	if kind == "" {
		kind = ParamString
	}
	return map[string]any{"type": string(kind)}
}

// Schema returns the JSON Schema for this tool's parameters: RawSchema
// verbatim if set, otherwise ToParametersSchema(Parameters).
func (s ToolSpec) Schema() map[string]any {
	if s.RawSchema != nil {
		return s.RawSchema
	}
	return ToParametersSchema(s.Parameters)
}
