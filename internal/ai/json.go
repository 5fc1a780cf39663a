package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFenceStartRegex = regexp.MustCompile("(?s)^```(?:json)?\\s*")
	codeFenceEndRegex   = regexp.MustCompile("(?s)\\s*```\\s*$")
)

// ErrNoJSON means the answer did not contain a JSON object
var ErrNoJSON = errors.New("no JSON object in response")

// parseJSON decodes the first JSON object of a model answer into T. Code
// fences and surrounding prose are tolerated, unknown fields are not.
func parseJSON[T any](response string) (T, error) {
	var zero T

	text := strings.TrimSpace(response)
	text = codeFenceStartRegex.ReplaceAllString(text, "")
	text = codeFenceEndRegex.ReplaceAllString(text, "")

	object, err := extractObject(text)
	if err != nil {
		return zero, err
	}

	var out T
	decoder := json.NewDecoder(bytes.NewReader([]byte(object)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&out); err != nil {
		return zero, fmt.Errorf("invalid JSON response: %w", err)
	}
	return out, nil
}

// extractObject returns the first balanced {...} in text, skipping braces
// that appear inside strings
func extractObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces", ErrNoJSON)
}
