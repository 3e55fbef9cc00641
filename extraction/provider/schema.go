package provider

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a closed JSON schema for structured output: every object,
// including objects inside arrays, rejects extra keys and requires all of its properties.
func GenerateSchema[T any]() map[string]interface{} {
	r := jsonschema.Reflector{DoNotReference: true}
	b, err := json.Marshal(r.Reflect(new(T)))
	if err != nil {
		panic(err)
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(b, &schema); err != nil {
		panic(err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	closeObject(schema)
	return schema
}

func closeObject(node map[string]interface{}) {
	if items, ok := node["items"].(map[string]interface{}); ok {
		closeObject(items)
	}
	props, ok := node["properties"].(map[string]interface{})
	if !ok {
		return
	}
	node["additionalProperties"] = false
	required := make([]string, 0, len(props))
	for name, p := range props {
		required = append(required, name)
		if child, ok := p.(map[string]interface{}); ok {
			closeObject(child)
		}
	}
	sort.Strings(required)
	node["required"] = required
}
