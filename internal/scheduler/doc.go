// Package scheduler реализует логику планировщика pipelines.
//
// Scheduler периодически проверяет schedules с истекшим next_due_at
// и инстанцирует их templates в новые pipelines.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    ScheduleRepo: scheduleRepo,
//	    TemplateRepo: templateRepo,
//	    PipelineRepo: pipelineRepo,
//	    Publisher:    publisher,  // опционально
//	    Logger:       logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Несколько экземпляров scheduler безопасны без leader election:
// перед инстанцированием каждый schedule атомарно захватывается
// compare-and-set'ом по next_due_at, так что конкретное срабатывание
// достаётся ровно одному экземпляру.
package scheduler
