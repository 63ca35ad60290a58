package plan

import (
	"bytes"
	"encoding/json"
)

// The strict-schema contract from the model call is mirrored here: every
// declared key must be present (possibly null) and no unknown key may appear.

var routerResultKeys = []string{
	"action",
	"plan",
	"clarifying_question",
	"missing_fields",
	"refusal_message",
	"rationale",
}

var queryPlanKeys = []string{
	"intent",
	"client_name",
	"country",
	"invoice_id",
	"status",
	"year",
	"month",
	"as_of_date",
	"start_date",
	"end_date",
	"service_name",
	"limit",
	"countries",
	"rationale",
}

// DecodeRouterResult parses and validates a model JSON response against the
// RouterResult schema. Any deviation returns a SchemaError.
func DecodeRouterResult(raw []byte) (RouterResult, error) {
	if err := checkExactKeys(raw, routerResultKeys, "router result"); err != nil {
		return RouterResult{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RouterResult{}, schemaErrorf("not a JSON object: %v", err)
	}
	if planRaw, ok := fields["plan"]; ok && !isJSONNull(planRaw) {
		if err := checkExactKeys(planRaw, queryPlanKeys, "query plan"); err != nil {
			return RouterResult{}, err
		}
	}

	var result RouterResult
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&result); err != nil {
		return RouterResult{}, schemaErrorf("decode failed: %v", err)
	}
	if result.MissingFields == nil {
		result.MissingFields = []string{}
	}

	if err := result.Validate(); err != nil {
		return RouterResult{}, err
	}
	return result, nil
}

func checkExactKeys(raw []byte, required []string, label string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return schemaErrorf("%s is not a JSON object: %v", label, err)
	}
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return schemaErrorf("%s is missing required key %q", label, key)
		}
	}
	for key := range fields {
		if !containsKey(required, key) {
			return schemaErrorf("%s carries unknown key %q", label, key)
		}
	}
	return nil
}

func containsKey(keys []string, key string) bool {
	for _, candidate := range keys {
		if candidate == key {
			return true
		}
	}
	return false
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
