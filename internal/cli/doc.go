// Package cli реализует инструмент командной строки Colony.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Colony API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления templates, pipelines, jobs
// и schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Colony API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	templates, err := client.ListTemplates()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: colony pipeline list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - template: list, create, show, delete
//   - pipeline: start, list, show, cancel, jobs, stages
//   - job: show, logs, artifacts
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewTemplateCmd
// и т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
