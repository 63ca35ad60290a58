package plan

import "encoding/json"

// JSON Schema sent with the structured router call. Mirrors DecodeRouterResult
// exactly: all keys required, nullable where unset, no additional properties.

func queryPlanSchema() map[string]any {
	intents := make([]string, 0, len(Intents))
	for _, intent := range Intents {
		intents = append(intents, string(intent))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"intent":       map[string]any{"type": "string", "enum": intents},
			"client_name":  map[string]any{"type": []string{"string", "null"}},
			"country":      map[string]any{"type": []string{"string", "null"}},
			"invoice_id":   map[string]any{"type": []string{"string", "null"}},
			"status":       map[string]any{"type": []string{"string", "null"}},
			"year":         map[string]any{"type": []string{"integer", "null"}},
			"month":        map[string]any{"type": []string{"integer", "null"}, "minimum": 1, "maximum": 12},
			"as_of_date":   map[string]any{"type": []string{"string", "null"}},
			"start_date":   map[string]any{"type": []string{"string", "null"}},
			"end_date":     map[string]any{"type": []string{"string", "null"}},
			"service_name": map[string]any{"type": []string{"string", "null"}},
			"limit":        map[string]any{"type": []string{"integer", "null"}, "minimum": 1, "maximum": 50},
			"countries":    map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
			"rationale":    map[string]any{"type": []string{"string", "null"}},
		},
		"required": queryPlanKeys,
	}
}

func routerResultSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action": map[string]any{"type": "string", "enum": []string{"QUERY", "CLARIFY", "REFUSE"}},
			"plan": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "null"},
					queryPlanSchema(),
				},
			},
			"clarifying_question": map[string]any{"type": []string{"string", "null"}},
			"missing_fields":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"refusal_message":     map[string]any{"type": []string{"string", "null"}},
			"rationale":           map[string]any{"type": []string{"string", "null"}},
		},
		"required": routerResultKeys,
	}
}

// RouterResultSchema returns the serialized schema for the structured call.
func RouterResultSchema() json.RawMessage {
	raw, err := json.Marshal(routerResultSchema())
	if err != nil {
		// The schema is a static literal; marshaling cannot fail at runtime.
		panic(err)
	}
	return raw
}
