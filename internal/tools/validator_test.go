package tools

import (
	"errors"
	"strings"
	"testing"
)

func TestValidator_CompileEmpty(t *testing.T) {
	v := NewValidator()
	s, err := v.Compile(nil)
	if err != nil || s != nil {
		t.Errorf("Compile(nil) = %v, %v; want nil, nil", s, err)
	}
}

func TestValidator_CompileCaches(t *testing.T) {
	v := NewValidator()
	params := map[string]any{"type": "object"}

	a, err := v.Compile(params)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, err := v.Compile(map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if a != b {
		t.Error("identical schemas should share one compiled schema")
	}
}

func TestValidator_Draft07Schema(t *testing.T) {
	v := NewValidator()
	s, err := v.Compile(map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"mediaId": map[string]any{"type": []any{"string", "number"}},
		},
		"required": []any{"mediaId"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := v.Validate(s, map[string]any{"mediaId": 100}); err != nil {
		t.Errorf("numeric id rejected: %v", err)
	}
	if err := v.Validate(s, map[string]any{"mediaId": "tmdb:100"}); err != nil {
		t.Errorf("string id rejected: %v", err)
	}

	err = v.Validate(s, map[string]any{})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected *ArgumentError, got %v", err)
	}
	if len(argErr.Violations) == 0 || !strings.Contains(argErr.Violations[0], "mediaId") {
		t.Errorf("violations = %v", argErr.Violations)
	}
}

func TestValidator_ViolationLocations(t *testing.T) {
	v := NewValidator()
	s, err := v.Compile(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page":  map[string]any{"type": "integer"},
			"title": map[string]any{"type": "string"},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	err = v.Validate(s, map[string]any{"page": "one", "title": 7})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected *ArgumentError, got %v", err)
	}
	joined := strings.Join(argErr.Violations, "\n")
	if !strings.Contains(joined, "/page") || !strings.Contains(joined, "/title") {
		t.Errorf("violations missing locations: %v", argErr.Violations)
	}
}

func TestValidator_NilSchema(t *testing.T) {
	if err := NewValidator().Validate(nil, map[string]any{"x": 1}); err != nil {
		t.Errorf("nil schema should accept anything: %v", err)
	}
}
