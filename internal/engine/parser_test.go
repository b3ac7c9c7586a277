package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/Colony/internal/domain"
)

func TestParseItems_JSONArray(t *testing.T) {
	items, err := ParseItems(`["task A", "task B", "task C"]`, domain.ParseJSONArray)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"task A", "task B", "task C"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestParseItems_JSONArrayWithPreamble(t *testing.T) {
	// Модель часто предваряет массив пояснением
	output := "Я разбил задачу на подзадачи.\n\nВот список:\n[\"починить парсер\", \"добавить кэш\"]\nГотово."
	items, err := ParseItems(output, domain.ParseJSONArray)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0] != "починить парсер" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestParseItems_JSONArrayTakesLast(t *testing.T) {
	output := `Черновой вариант: ["a"]. Финальный вариант: ["x", "y"]`
	items, err := ParseItems(output, domain.ParseJSONArray)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(items, []string{"x", "y"}) {
		t.Errorf("should pick the last array, got %v", items)
	}
}

func TestParseItems_JSONArrayEmpty(t *testing.T) {
	items, err := ParseItems(`[]`, domain.ParseJSONArray)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %v", items)
	}
}

func TestParseItems_JSONArrayMalformed(t *testing.T) {
	cases := []struct {
		name   string
		output string
	}{
		{"no array", "подзадач нет, всё готово"},
		{"not strings", `[1, 2, 3]`},
		{"unbalanced", `["a", "b"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseItems(tc.output, domain.ParseJSONArray)
			if !errors.Is(err, ErrMalformedItems) {
				t.Errorf("expected ErrMalformedItems, got %v", err)
			}
		})
	}
}

func TestParseItems_LineDelimited(t *testing.T) {
	output := "первая строка\n\n  вторая строка  \nтретья\n"
	items, err := ParseItems(output, domain.ParseLineDelimited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"первая строка", "вторая строка", "третья"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestParseItems_CommaSeparated(t *testing.T) {
	items, err := ParseItems("alpha, beta ,, gamma", domain.ParseCommaSeparated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestParseItems_UnknownStrategy(t *testing.T) {
	_, err := ParseItems("whatever", domain.ParseStrategy("regex"))
	if !errors.Is(err, ErrUnknownParseStrategy) {
		t.Errorf("expected ErrUnknownParseStrategy, got %v", err)
	}
}
