package engine

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// Snapshot — консистентный снимок состояния одного pipeline.
//
// Загружается из БД один раз за цикл polling; все решения цикла
// (готовность, агрегаты, propagation) принимаются по этому снимку,
// поэтому два job, зависящие от третьего, никогда не будут
// dispatched до того, как третий наблюдается терминальным.
type Snapshot struct {
	// Pipeline — данные pipeline.
	Pipeline *domain.Pipeline

	// Template — template pipeline (nil для ad hoc).
	Template *domain.Template

	// Stages — все stages pipeline.
	Stages []domain.Stage

	// Jobs — все jobs pipeline.
	Jobs []domain.Job

	// Dependencies — все рёбра зависимостей pipeline.
	Dependencies []domain.JobDependency

	// Expansions — маркеры выполненных размножений.
	Expansions []domain.MultiplierExpansion

	jobByID   map[uuid.UUID]*domain.Job
	stageByID map[uuid.UUID]*domain.Stage
	depsByJob map[uuid.UUID][]*domain.JobDependency
}

// Index строит внутренние индексы. Вызывается после заполнения полей;
// идемпотентен.
func (s *Snapshot) Index() {
	s.jobByID = make(map[uuid.UUID]*domain.Job, len(s.Jobs))
	for i := range s.Jobs {
		s.jobByID[s.Jobs[i].ID] = &s.Jobs[i]
	}

	s.stageByID = make(map[uuid.UUID]*domain.Stage, len(s.Stages))
	for i := range s.Stages {
		s.stageByID[s.Stages[i].ID] = &s.Stages[i]
	}

	s.depsByJob = make(map[uuid.UUID][]*domain.JobDependency)
	for i := range s.Dependencies {
		dep := &s.Dependencies[i]
		s.depsByJob[dep.JobID] = append(s.depsByJob[dep.JobID], dep)
	}
}

// JobByID возвращает job по ID (или nil).
func (s *Snapshot) JobByID(id uuid.UUID) *domain.Job {
	return s.jobByID[id]
}

// StageByID возвращает stage по ID (или nil).
func (s *Snapshot) StageByID(id uuid.UUID) *domain.Stage {
	return s.stageByID[id]
}

// StageByName возвращает stage по имени (или nil).
func (s *Snapshot) StageByName(name string) *domain.Stage {
	for i := range s.Stages {
		if s.Stages[i].Name == name {
			return &s.Stages[i]
		}
	}
	return nil
}

// StageByOrder возвращает stage по порядковому номеру (или nil).
func (s *Snapshot) StageByOrder(order int) *domain.Stage {
	for i := range s.Stages {
		if s.Stages[i].Order == order {
			return &s.Stages[i]
		}
	}
	return nil
}

// DepsOf возвращает рёбра зависимостей job.
func (s *Snapshot) DepsOf(jobID uuid.UUID) []*domain.JobDependency {
	return s.depsByJob[jobID]
}

// JobsOfStage возвращает jobs указанного stage.
func (s *Snapshot) JobsOfStage(stageID uuid.UUID) []*domain.Job {
	var jobs []*domain.Job
	for i := range s.Jobs {
		if s.Jobs[i].StageID == stageID {
			jobs = append(jobs, &s.Jobs[i])
		}
	}
	return jobs
}

// InstancesOf возвращает все runtime-инстансы template job,
// отсортированные по времени создания.
func (s *Snapshot) InstancesOf(templateJobID uuid.UUID) []*domain.Job {
	var jobs []*domain.Job
	for i := range s.Jobs {
		if s.Jobs[i].TemplateJobID != nil && *s.Jobs[i].TemplateJobID == templateJobID {
			jobs = append(jobs, &s.Jobs[i])
		}
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
	})
	return jobs
}

// ExpandedFrom возвращает маркер размножения для пары
// (multiplier template job, source job), или nil.
func (s *Snapshot) ExpandedFrom(templateJobID, sourceJobID uuid.UUID) *domain.MultiplierExpansion {
	for i := range s.Expansions {
		e := &s.Expansions[i]
		if e.TemplateJobID == templateJobID && e.SourceJobID == sourceJobID {
			return e
		}
	}
	return nil
}

// Expanded проверяет, было ли хоть одно размножение для multiplier
// template job.
func (s *Snapshot) Expanded(templateJobID uuid.UUID) bool {
	for i := range s.Expansions {
		if s.Expansions[i].TemplateJobID == templateJobID {
			return true
		}
	}
	return false
}

// MultiplierJobs возвращает template jobs с multiplier spec.
func (s *Snapshot) MultiplierJobs() []*domain.TemplateJob {
	if s.Template == nil {
		return nil
	}
	var out []*domain.TemplateJob
	for si := range s.Template.Stages {
		for ji := range s.Template.Stages[si].Jobs {
			tj := &s.Template.Stages[si].Jobs[ji]
			if tj.Multiplier != nil {
				out = append(out, tj)
			}
		}
	}
	return out
}

// TemplateStageOrder возвращает порядковый номер template stage,
// которому принадлежит template job. Возвращает 0, если job не найден.
func (s *Snapshot) TemplateStageOrder(templateJobID uuid.UUID) int {
	if s.Template == nil {
		return 0
	}
	for si := range s.Template.Stages {
		for ji := range s.Template.Stages[si].Jobs {
			if s.Template.Stages[si].Jobs[ji].ID == templateJobID {
				return s.Template.Stages[si].Order
			}
		}
	}
	return 0
}

// sortedByCreation возвращает jobs в порядке создания (FIFO).
// При равных временах порядок стабилизируется по ID,
// чтобы планирование было воспроизводимым.
func (s *Snapshot) sortedByCreation() []*domain.Job {
	jobs := make([]*domain.Job, 0, len(s.Jobs))
	for i := range s.Jobs {
		jobs = append(jobs, &s.Jobs[i])
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID.String() < jobs[b].ID.String()
		}
		return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
	})
	return jobs
}
