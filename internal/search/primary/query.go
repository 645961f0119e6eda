package primary

import (
	"fmt"
	"time"

	"vdestor_backend/internal/search/variants"
)

const (
	codeExternalIDBoost = 20
	codeSKUBoost        = 15
	brandHintBoost      = 4
	prefixLength        = 2
)

var sourceFields = []string{"product_id", "external_id", "sku", "name", "brand_name"}

type object = map[string]interface{}

// BuildQuery renders one bool query for the whole plan. Text and code
// variants are alternatives; brand hints only raise the score of documents
// that already match.
func BuildQuery(plan variants.Plan, offset, limit int, timeout time.Duration) object {
	body := object{
		"from":             offset,
		"size":             limit,
		"track_total_hits": true,
		"_source":          sourceFields,
		"sort": []object{
			{"_score": object{"order": "desc"}},
			{"product_id": object{"order": "asc"}},
		},
		"query": buildMatch(plan),
	}
	if timeout > 0 {
		body["timeout"] = fmt.Sprintf("%dms", timeout.Milliseconds())
	}
	return body
}

func buildMatch(plan variants.Plan) object {
	if plan.Empty() {
		return object{"match_all": object{}}
	}

	var alternatives []object
	for _, text := range plan.Texts() {
		alternatives = append(alternatives, multiMatch(text))
	}
	for _, code := range plan.Codes() {
		alternatives = append(alternatives,
			prefix("external_id", code, codeExternalIDBoost),
			prefix("sku", code, codeSKUBoost),
		)
	}

	query := object{
		"must": []object{{
			"bool": object{
				"should":               alternatives,
				"minimum_should_match": 1,
			},
		}},
	}

	if hints := plan.BrandHints(); len(hints) > 0 {
		boosts := make([]object, 0, len(hints))
		for _, brand := range hints {
			boosts = append(boosts, object{
				"match": object{"brand_name": object{"query": brand, "boost": brandHintBoost}},
			})
		}
		query["should"] = boosts
	}

	return object{"bool": query}
}

func multiMatch(text string) object {
	boosts := variants.FieldBoosts()
	fields := make([]string, 0, len(boosts))
	for _, b := range boosts {
		fields = append(fields, b.String())
	}
	return object{
		"multi_match": object{
			"query":         text,
			"fields":        fields,
			"type":          "best_fields",
			"fuzziness":     variants.Fuzziness(text),
			"prefix_length": prefixLength,
		},
	}
}

func prefix(field, value string, boost float64) object {
	return object{
		"prefix": object{
			field: object{"value": value, "boost": boost, "case_insensitive": true},
		},
	}
}
