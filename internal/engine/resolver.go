package engine

import (
	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// ReadyJobs возвращает jobs, готовые к dispatch, в FIFO-порядке
// по времени создания.
//
// Job готов, если:
//   - status = pending;
//   - его stage достигнут (все не-regression jobs более ранних stages
//     терминальны); regression jobs обходят это правило — смысл
//     regression именно в повторном входе в пройденный stage;
//   - каждое ребро зависимости удовлетворено по своей семантике.
//
// Чистый запрос без побочных эффектов: безопасно вызывать повторно
// над одним snapshot.
func ReadyJobs(s *Snapshot) []uuid.UUID {
	var ready []uuid.UUID
	for _, job := range s.sortedByCreation() {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if !stageReached(s, job) {
			continue
		}
		if !depsSatisfied(s, job) {
			continue
		}
		ready = append(ready, job.ID)
	}
	return ready
}

// stageReached проверяет, достигнут ли stage job'а.
func stageReached(s *Snapshot, job *domain.Job) bool {
	if job.IsRegression() {
		return true
	}

	stage := s.StageByID(job.StageID)
	if stage == nil {
		return false
	}

	for i := range s.Stages {
		prev := &s.Stages[i]
		if prev.Order >= stage.Order {
			continue
		}
		for _, pj := range s.JobsOfStage(prev.ID) {
			// Regression jobs не отодвигают фронтир назад:
			// повторный вход в stage не блокирует последующие.
			if pj.IsRegression() {
				continue
			}
			if !pj.Status.IsTerminal() {
				return false
			}
		}
	}

	// Незавершённое размножение в более раннем stage означает,
	// что часть jobs этого stage ещё не существует.
	for _, mult := range s.MultiplierJobs() {
		if s.TemplateStageOrder(mult.ID) >= stage.Order {
			continue
		}
		if ExpansionPending(s, mult) {
			return false
		}
	}

	return true
}

// depsSatisfied проверяет все рёбра зависимостей job.
func depsSatisfied(s *Snapshot, job *domain.Job) bool {
	for _, dep := range s.DepsOf(job.ID) {
		if !edgeSatisfied(s, dep) {
			return false
		}
	}
	return true
}

// edgeSatisfied проверяет одно ребро.
func edgeSatisfied(s *Snapshot, dep *domain.JobDependency) bool {
	if dep.DependsOnJobID != nil {
		up := s.JobByID(*dep.DependsOnJobID)
		return up != nil && dep.Type.Satisfied(up.Status)
	}
	if dep.DependsOnTemplateJobID != nil {
		return templateEdgeSatisfied(s, dep)
	}
	return false
}

// templateEdgeSatisfied разрешает template-уровневое ребро.
//
// Ребро на multiplier template job M означает "все текущие инстансы M
// должны удовлетворить семантике ребра". Пока source job M не завершён
// и размножение не записано, ширина fan-out неизвестна — ребро не
// удовлетворено. Ноль инстансов при выполненном размножении
// удовлетворяет ребро вакуумно.
func templateEdgeSatisfied(s *Snapshot, dep *domain.JobDependency) bool {
	tjID := *dep.DependsOnTemplateJobID

	var tj *domain.TemplateJob
	if s.Template != nil {
		tj = s.Template.FindJob(tjID)
	}

	if tj != nil && tj.Multiplier != nil {
		sources := s.InstancesOf(tj.Multiplier.SourceTemplateJobID)
		if len(sources) == 0 {
			return false
		}
		for _, src := range sources {
			if src.Status != domain.JobStatusCompleted {
				return false
			}
			if s.ExpandedFrom(tjID, src.ID) == nil {
				return false
			}
		}
	}

	for _, inst := range s.InstancesOf(tjID) {
		if !dep.Type.Satisfied(inst.Status) {
			return false
		}
	}
	return true
}

// edgeUnsatisfiable проверяет, что ребро уже никогда не будет
// удовлетворено. Используется при propagation падений: job с хотя бы
// одним невыполнимым ребром помечается skipped.
func edgeUnsatisfiable(s *Snapshot, dep *domain.JobDependency) bool {
	if dep.DependsOnJobID != nil {
		up := s.JobByID(*dep.DependsOnJobID)
		return up != nil && dep.Type.Unsatisfiable(up.Status)
	}
	if dep.DependsOnTemplateJobID != nil {
		tjID := *dep.DependsOnTemplateJobID

		// Ребро на multiplier невыполнимо, если source уже не завершится
		// успешно: размножения не будет.
		if s.Template != nil {
			if tj := s.Template.FindJob(tjID); tj != nil && tj.Multiplier != nil {
				for _, src := range s.InstancesOf(tj.Multiplier.SourceTemplateJobID) {
					if domain.DependencySuccess.Unsatisfiable(src.Status) {
						return true
					}
				}
			}
		}

		for _, inst := range s.InstancesOf(tjID) {
			if dep.Type.Unsatisfiable(inst.Status) {
				return true
			}
		}
	}
	return false
}

// ExpansionPending проверяет, ожидается ли размножение: есть хотя бы
// один успешно завершённый source job без записанного маркера.
// Упавший source размножения не даст — это не pending, а путь
// propagation.
func ExpansionPending(s *Snapshot, mult *domain.TemplateJob) bool {
	if mult.Multiplier == nil {
		return false
	}
	for _, src := range s.InstancesOf(mult.Multiplier.SourceTemplateJobID) {
		if src.Status == domain.JobStatusCompleted && s.ExpandedFrom(mult.ID, src.ID) == nil {
			return true
		}
	}
	return false
}
