// Package executor выполняет отдельные jobs.
//
// # Обзор
//
// Executor — stateless компонент системы Colony, который выполняет
// jobs, объявленные готовыми оркестратором. Executor отвечает за:
//
//   - Получение jobs из очереди RabbitMQ (jobs.ready)
//   - Атомарный захват job (pending → running) перед выполнением
//   - Запуск команды job под os/exec с таймаутом
//   - Сбор артефактов согласно стратегии job (stdout_final, file_list)
//   - Запись в append-only лог действий
//   - Отправку отчёта в очередь jobs.completed
//
// Executors масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди jobs.ready; conditional UPDATE при
// захвате гарантирует, что job выполнит ровно один из них.
//
// # Контракт команды
//
// Командой job управляет поле Command (пустая строка — команда по
// умолчанию, запуск harness). Команда получает параметры job через
// переменные окружения COLONY_JOB_ID, COLONY_ROLE, COLONY_PROMPT,
// COLONY_MAX_ITERATIONS, COLONY_WORKSPACE, COLONY_ALLOWED_PATHS.
//
// Причина завершения определяется кодом выхода:
//   - 0 — успех
//   - ExitCodeMaxIterations — агент упёрся в лимит итераций (retryable)
//   - превышение таймаута — timeout_exceeded (retryable)
//   - любой другой код — exit_code_N (не retryable)
//
// # Артефакты
//
// Стратегию сбора артефактов выбирает template, а не модель:
//   - stdout_final — финальный вывод регистрируется как артефакт
//     final_output.txt (для planner/reviewer/verifier jobs)
//   - file_list — последняя строка вывода с JSON-массивом путей
//     относительно workspace; каждый существующий файл регистрируется
//     как file-артефакт
//
// # Надёжность
//
// Отчёт jobs.completed может потеряться: состояние истины живёт в БД,
// и оркестратор подхватит завершённый job на следующем цикле поллинга.
package executor
