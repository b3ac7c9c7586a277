// Package domain содержит основные сущности Colony.
//
// Модель данных:
//   - Template / TemplateStage / TemplateJob — неизменяемый "чертёж" конвейера
//   - Pipeline — экземпляр выполнения, созданный из template (или ad hoc)
//   - Stage — упорядоченный этап внутри pipeline
//   - Job — единица выполнения (один запуск LLM-агента)
//   - JobDependency — ребро зависимости между jobs
//   - Artifact — именованный результат работы job
//
// Пакет не содержит бизнес-логики оркестрации — только типы,
// их жизненные циклы и элементарные переходы статусов.
package domain
