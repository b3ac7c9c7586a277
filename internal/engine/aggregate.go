package engine

import (
	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// StageStatusOf вычисляет статус stage как детерминированную функцию
// статусов его jobs. Статус stage нигде не выставляется независимо.
//
// Пустой stage (multiplier ещё не размножен) остаётся pending, пока
// размножение возможно; после размножения в ноль элементов stage
// считается completed. Отменённые jobs для агрегата stage
// эквивалентны skipped: отмену целиком отражает статус pipeline.
func StageStatusOf(s *Snapshot, stage *domain.Stage) domain.StageStatus {
	jobs := s.JobsOfStage(stage.ID)

	if len(jobs) == 0 {
		if stageAwaitsExpansion(s, stage) {
			return domain.StageStatusPending
		}
		return domain.StageStatusCompleted
	}

	var running, pending, failed, completed, skippedOrCancelled int
	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusRunning:
			running++
		case domain.JobStatusPending:
			pending++
		case domain.JobStatusFailed:
			failed++
		case domain.JobStatusCompleted:
			completed++
		case domain.JobStatusSkipped, domain.JobStatusCancelled:
			skippedOrCancelled++
		}
	}

	switch {
	case running > 0:
		return domain.StageStatusRunning
	case pending > 0:
		if completed+failed+skippedOrCancelled > 0 {
			return domain.StageStatusRunning
		}
		return domain.StageStatusPending
	case failed > 0:
		return domain.StageStatusFailed
	case completed == 0 && skippedOrCancelled > 0:
		return domain.StageStatusSkipped
	default:
		return domain.StageStatusCompleted
	}
}

// stageAwaitsExpansion проверяет, может ли в stage ещё появиться
// размножение multiplier'а.
func stageAwaitsExpansion(s *Snapshot, stage *domain.Stage) bool {
	if s.Template == nil {
		return false
	}
	ts := s.Template.FindStageByName(stage.Name)
	if ts == nil {
		return false
	}
	for i := range ts.Jobs {
		tj := &ts.Jobs[i]
		if tj.Multiplier == nil || s.Expanded(tj.ID) {
			continue
		}
		// Размножение ещё впереди, если ни один source не упал
		// безвозвратно.
		blocked := false
		for _, src := range s.InstancesOf(tj.Multiplier.SourceTemplateJobID) {
			if domain.DependencySuccess.Unsatisfiable(src.Status) {
				blocked = true
				break
			}
		}
		if !blocked {
			return true
		}
	}
	return false
}

// PipelineStatusOf вычисляет статус pipeline по статусам его jobs.
//
// Pipeline терминален только когда все jobs терминальны и не осталось
// незаписанных размножений: иначе "completed" мог бы наступить в окне
// между завершением source job и появлением его fan-out инстансов.
func PipelineStatusOf(s *Snapshot) domain.PipelineStatus {
	allTerminal := true
	started := false
	var failed, cancelled int
	for i := range s.Jobs {
		j := &s.Jobs[i]
		if !j.Status.IsTerminal() {
			allTerminal = false
		}
		if j.Status != domain.JobStatusPending {
			started = true
		}
		switch j.Status {
		case domain.JobStatusFailed:
			failed++
		case domain.JobStatusCancelled:
			cancelled++
		}
	}

	if !allTerminal || expansionsOutstanding(s) {
		if started || s.Pipeline.Status != domain.PipelineStatusPending {
			return domain.PipelineStatusRunning
		}
		return domain.PipelineStatusPending
	}

	switch {
	case s.Pipeline.CancelRequested || cancelled > 0:
		return domain.PipelineStatusCancelled
	case failed > 0:
		return domain.PipelineStatusFailed
	default:
		return domain.PipelineStatusCompleted
	}
}

// expansionsOutstanding проверяет, ждёт ли хоть один multiplier
// размножения от успешно завершённого source.
func expansionsOutstanding(s *Snapshot) bool {
	for _, mult := range s.MultiplierJobs() {
		if ExpansionPending(s, mult) {
			return true
		}
	}
	return false
}

// PropagateFailure каскадно помечает skipped каждый pending job, у
// которого хотя бы одно ребро уже никогда не будет удовлетворено.
// Зависимые с типом failure или always при падении upstream продолжают
// работу: это путь компенсирующих jobs.
//
// Статусы мутируются прямо в snapshot (он и есть рабочая копия цикла),
// возвращаются IDs пропущенных jobs для записи в store.
func PropagateFailure(s *Snapshot) []uuid.UUID {
	var skipped []uuid.UUID
	for {
		changed := false
		for _, job := range s.sortedByCreation() {
			if job.Status != domain.JobStatusPending {
				continue
			}
			for _, dep := range s.DepsOf(job.ID) {
				if edgeUnsatisfiable(s, dep) {
					job.MarkSkipped()
					skipped = append(skipped, job.ID)
					changed = true
					break
				}
			}
		}
		if !changed {
			return skipped
		}
	}
}
