package engine

import (
	"github.com/google/uuid"
)

// ArtifactSourceJobs возвращает прямые upstream jobs указанного job:
// ровно один уровень объявленных зависимостей, без транзитивного
// замыкания. Template-уровневые рёбра разрешаются во все текущие
// инстансы этого template job внутри pipeline. Именно артефакты этих
// jobs job видит на входе при dispatch.
//
// Тип ребра роли не играет: failure- и always-рёбра тоже дают доступ
// к артефактам upstream — диагностический job читает то, что успел
// произвести упавший.
func ArtifactSourceJobs(s *Snapshot, jobID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var sources []uuid.UUID

	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		sources = append(sources, id)
	}

	for _, dep := range s.DepsOf(jobID) {
		if dep.DependsOnJobID != nil {
			add(*dep.DependsOnJobID)
			continue
		}
		if dep.DependsOnTemplateJobID != nil {
			for _, inst := range s.InstancesOf(*dep.DependsOnTemplateJobID) {
				add(inst.ID)
			}
		}
	}

	return sources
}
