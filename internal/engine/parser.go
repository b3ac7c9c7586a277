package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/Colony/internal/domain"
)

// ParseItems разбирает вывод source job в список элементов fan-out
// согласно стратегии.
//
// Стратегии:
//   - json_array: вывод должен содержать JSON-массив строк. Ищется
//     последний массив в тексте, чтобы допускать преамбулу перед ним.
//     Невалидный массив — структурная ошибка, fallback'а на
//     одноэлементный список нет: молчаливое сужение fan-out до одного
//     job маскирует дефект промпта.
//   - line_delimited: непустые строки, по одной на элемент.
//   - comma_separated: разбиение по запятым.
//
// Пустой список элементов — валидный результат для всех стратегий.
func ParseItems(output string, strategy domain.ParseStrategy) ([]string, error) {
	switch strategy {
	case domain.ParseJSONArray:
		return parseJSONArray(output)
	case domain.ParseLineDelimited:
		return splitClean(output, "\n"), nil
	case domain.ParseCommaSeparated:
		return splitClean(output, ","), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParseStrategy, strategy)
	}
}

func parseJSONArray(output string) ([]string, error) {
	raw := extractLastArray(output)
	if raw == "" {
		return nil, fmt.Errorf("%w: JSON-массив не найден в выводе", ErrMalformedItems)
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedItems, err)
	}
	out := items[:0]
	for _, it := range items {
		if t := strings.TrimSpace(it); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// extractLastArray находит последний сбалансированный JSON-массив
// верхнего уровня в тексте. Модель часто предваряет массив
// пояснением, поэтому берём последнее вхождение.
func extractLastArray(text string) string {
	var last string
	start := -1
	depth := 0
	inStr := false
	esc := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inStr = true
			}
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				last = text[start : i+1]
			}
		}
	}
	return last
}

func splitClean(text, sep string) []string {
	parts := strings.Split(text, sep)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}
