package engine

import (
	"github.com/google/uuid"
	"github.com/shaiso/Colony/internal/domain"
)

// Ancestors возвращает множество jobs, достижимых из start по рёбрам
// depends_on. Template-уровневые рёбра разворачиваются в текущие
// инстансы.
func Ancestors(s *Snapshot, start uuid.UUID) map[uuid.UUID]struct{} {
	seen := make(map[uuid.UUID]struct{})
	stack := []uuid.UUID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range s.DepsOf(cur) {
			for _, up := range resolveEdge(s, dep) {
				if _, ok := seen[up]; ok {
					continue
				}
				seen[up] = struct{}{}
				stack = append(stack, up)
			}
		}
	}
	return seen
}

// WouldCreateCycle проверяет, создаст ли цикл новое ребро
// "dependent depends_on upstream". Ребро допустимо, если dependent
// не является предком upstream.
func WouldCreateCycle(s *Snapshot, dependent, upstream uuid.UUID) bool {
	if dependent == upstream {
		return true
	}
	_, ok := Ancestors(s, upstream)[dependent]
	return ok
}

// resolveEdge возвращает конкретные job IDs, на которые указывает ребро.
func resolveEdge(s *Snapshot, dep *domain.JobDependency) []uuid.UUID {
	if dep.DependsOnJobID != nil {
		return []uuid.UUID{*dep.DependsOnJobID}
	}
	if dep.DependsOnTemplateJobID != nil {
		insts := s.InstancesOf(*dep.DependsOnTemplateJobID)
		ids := make([]uuid.UUID, 0, len(insts))
		for _, inst := range insts {
			ids = append(ids, inst.ID)
		}
		return ids
	}
	return nil
}
