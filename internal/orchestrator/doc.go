// Package orchestrator управляет выполнением pipelines.
//
// Orchestrator отвечает за:
//   - Получение новых pipelines из очереди RabbitMQ
//   - Периодический polling активных pipelines (источник истины — БД)
//   - Вычисление готовых jobs и их dispatch executor'ам
//   - Обработку завершений: размножение multiplier, retry,
//     regression-спавн, каскадный skip при падениях
//   - Агрегацию статусов stages и pipeline
//   - Отмену pipeline по внешнему сигналу
//
// Каждый цикл оркестратор загружает консистентный снимок pipeline,
// строит по нему план мутаций (pure, engine) и применяет план к БД.
// Все мутации идемпотентны: повторная обработка того же снимка
// безопасна, поэтому потерянные события очереди ничего не ломают.
package orchestrator
