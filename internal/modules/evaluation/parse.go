package evaluation

import (
	"encoding/json"
	"fmt"
)

// ParsedResponse is the validated content of a provider reply
type ParsedResponse struct {
	Scores     DimensionScores
	Confidence float64
	Reasoning  string
}

// ExtractJSON returns the first balanced JSON object in text.
// Braces inside string literals are ignored.
func ExtractJSON(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

var scoreFields = []string{"comprehensionScore", "qualityScore", "innovationScore", "feasibilityScore", "confidence"}

// ParseResponse extracts and validates the rubric scores from a provider reply.
// It returns *ParseError when no object can be decoded and *ValidationError
// for missing fields or scores outside [0,100].
func ParseResponse(text string) (*ParsedResponse, error) {
	object, ok := ExtractJSON(text)
	if !ok {
		return nil, &ParseError{Raw: text, Reason: "no JSON object found"}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		return nil, &ParseError{Raw: text, Reason: err.Error()}
	}

	values := make(map[string]float64, len(scoreFields))
	for _, name := range scoreFields {
		raw, present := fields[name]
		if !present {
			return nil, &ValidationError{Field: name, Reason: "missing"}
		}
		value, isNumber := raw.(float64)
		if !isNumber {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("expected number, got %T", raw)}
		}
		if value < 0 || value > 100 {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("%.2f is outside [0,100]", value)}
		}
		values[name] = value
	}

	rawReasoning, present := fields["reasoning"]
	if !present {
		return nil, &ValidationError{Field: "reasoning", Reason: "missing"}
	}
	reasoning, isString := rawReasoning.(string)
	if !isString {
		return nil, &ValidationError{Field: "reasoning", Reason: fmt.Sprintf("expected string, got %T", rawReasoning)}
	}

	return &ParsedResponse{
		Scores: DimensionScores{
			Comprehension: values["comprehensionScore"],
			Quality:       values["qualityScore"],
			Innovation:    values["innovationScore"],
			Feasibility:   values["feasibilityScore"],
		},
		Confidence: values["confidence"],
		Reasoning:  reasoning,
	}, nil
}
