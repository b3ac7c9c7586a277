package engine

import (
	"errors"
	"testing"
)

func TestParseSpawnDirective_Valid(t *testing.T) {
	output := "Тесты падают на пустом вводе.\n" +
		`{"spawn": {"stage": "dev", "prompt": "Исправь обработку пустого ввода", "reason": "test_empty_input падает"}}` + "\n" +
		"Детали выше."

	d, err := ParseSpawnDirective(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil {
		t.Fatal("expected a directive")
	}
	if d.Stage != "dev" {
		t.Errorf("stage = %q, want dev", d.Stage)
	}
	if d.Reason != "test_empty_input падает" {
		t.Errorf("unexpected reason: %q", d.Reason)
	}
}

func TestParseSpawnDirective_Absent(t *testing.T) {
	d, err := ParseSpawnDirective("всё хорошо, тесты зелёные")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Errorf("expected no directive, got %+v", d)
	}
}

func TestParseSpawnDirective_OtherJSONIgnored(t *testing.T) {
	// JSON без ключа spawn — не директива
	output := `{"result": "ok", "count": 3}`
	d, err := ParseSpawnDirective(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Error("plain JSON output must not be treated as a directive")
	}
}

func TestParseSpawnDirective_MissingFields(t *testing.T) {
	cases := []struct {
		name   string
		output string
	}{
		{"no stage", `{"spawn": {"prompt": "p", "reason": "r"}}`},
		{"no prompt", `{"spawn": {"stage": "dev", "reason": "r"}}`},
		{"no reason", `{"spawn": {"stage": "dev", "prompt": "p"}}`},
		{"empty spawn", `{"spawn": null}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSpawnDirective(tc.output)
			var de *DirectiveError
			if !errors.As(err, &de) {
				t.Errorf("expected DirectiveError, got %v", err)
			}
		})
	}
}

func TestParseSpawnDirective_UnknownFieldsRejected(t *testing.T) {
	output := `{"spawn": {"stage": "dev", "prompt": "p", "reason": "r", "priority": "high"}}`
	_, err := ParseSpawnDirective(output)
	var de *DirectiveError
	if !errors.As(err, &de) {
		t.Errorf("expected DirectiveError for unknown field, got %v", err)
	}
}

func TestParseSpawnDirective_LastOneWins(t *testing.T) {
	output := `{"spawn": {"stage": "dev", "prompt": "первый", "reason": "r1"}}` + "\n" +
		"передумал\n" +
		`{"spawn": {"stage": "plan", "prompt": "второй", "reason": "r2"}}`

	d, err := ParseSpawnDirective(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Stage != "plan" || d.Prompt != "второй" {
		t.Errorf("expected the last directive, got %+v", d)
	}
}

func TestParseSpawnDirective_ValidAfterBroken(t *testing.T) {
	// Сломанная директива раньше по тексту не маскирует валидную финальную
	output := `{"spawn": {"stage": ""}}` + "\n" +
		`{"spawn": {"stage": "dev", "prompt": "p", "reason": "r"}}`

	d, err := ParseSpawnDirective(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Stage != "dev" {
		t.Errorf("expected the valid final directive, got %+v", d)
	}
}
