package engine

import (
	"encoding/json"
	"strings"

	"github.com/shaiso/Colony/internal/domain"
)

// ParseSpawnDirective ищет в выводе job директиву regression:
// отдельную строку, содержащую строгий JSON-объект вида
//
//	{"spawn": {"stage": "dev", "prompt": "...", "reason": "..."}}
//
// Возвращает nil без ошибки, если директивы в выводе нет. Строка,
// похожая на директиву (JSON-объект с ключом spawn), но не прошедшая
// валидацию, даёт ошибку: молча игнорировать сломанный запрос
// на повторную работу нельзя.
//
// Учитывается только последняя директива: модель может упомянуть
// формат раньше по тексту, исполняется финальное решение.
func ParseSpawnDirective(output string) (*domain.SpawnDirective, error) {
	var found *domain.SpawnDirective
	var lastErr error

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		if !looksLikeSpawn(line) {
			continue
		}
		d, err := decodeSpawn(line)
		if err != nil {
			lastErr = err
			continue
		}
		found = d
		lastErr = nil
	}

	if found != nil {
		return found, nil
	}
	return nil, lastErr
}

// looksLikeSpawn грубо отличает директиву от прочего JSON в выводе.
func looksLikeSpawn(line string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return false
	}
	_, ok := probe["spawn"]
	return ok
}

func decodeSpawn(line string) (*domain.SpawnDirective, error) {
	var envelope struct {
		Spawn *domain.SpawnDirective `json:"spawn"`
	}
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return nil, &DirectiveError{Field: "spawn", Message: err.Error()}
	}
	if envelope.Spawn == nil {
		return nil, &DirectiveError{Field: "spawn", Message: "объект spawn отсутствует"}
	}
	if strings.TrimSpace(envelope.Spawn.Stage) == "" {
		return nil, &DirectiveError{Field: "stage", Message: "не задан"}
	}
	if strings.TrimSpace(envelope.Spawn.Prompt) == "" {
		return nil, &DirectiveError{Field: "prompt", Message: "не задан"}
	}
	if strings.TrimSpace(envelope.Spawn.Reason) == "" {
		return nil, &DirectiveError{Field: "reason", Message: "не задан"}
	}
	return envelope.Spawn, nil
}
