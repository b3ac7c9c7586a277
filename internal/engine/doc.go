// Package engine содержит чистую логику оркестрации Colony.
//
// Все функции пакета работают над Snapshot — консистентным снимком
// состояния одного pipeline, загруженным из БД за один цикл polling.
// Пакет не делает I/O: оркестратор загружает snapshot, вызывает
// функции engine и применяет возвращённые мутации к store.
//
// Основные части:
//   - resolver.go   — какие jobs готовы к dispatch (FIFO)
//   - graph.go      — достижимость предков и проверка циклов
//   - parser.go     — стратегии парсинга вывода для multiplier
//   - multiplier.go — fan-out одного template job в N runtime jobs
//   - retry.go      — решение о повторной попытке и аугментация промпта
//   - regression.go — порождение job в уже пройденный stage
//   - directive.go  — строгий парсинг spawn-директивы из вывода job
//   - aggregate.go  — детерминированные агрегаты статусов stage/pipeline
//   - instantiate.go — материализация pipeline из template
package engine
