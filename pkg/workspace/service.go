package workspace

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/synergyhub/pkg/docstore"
)

// Collections bundles the record stores of a workspace
type Collections struct {
	Projects docstore.Collection[*Project]
	Tasks    docstore.Collection[*Task]
	Clients  docstore.Collection[*Client]
}

// NewMemoryCollections returns in-memory stores for every record type
func NewMemoryCollections() Collections {
	return Collections{
		Projects: docstore.NewMemoryCollection[*Project](),
		Tasks:    docstore.NewMemoryCollection[*Task](),
		Clients:  docstore.NewMemoryCollection[*Client](),
	}
}

// DetachResult counts the records a detachment changed
type DetachResult struct {
	Projects int `json:"projects"`
	Tasks    int `json:"tasks"`
}

// Service applies membership side effects to workspace records
type Service struct {
	colls Collections
}

// NewService creates a workspace service
func NewService(colls Collections) *Service {
	return &Service{colls: colls}
}

// DetachUser removes userID from every project team and task assignee list
// in businessID. Records are updated one by one; a failure stops the pass and
// leaves already-updated records changed.
func (s *Service) DetachUser(ctx context.Context, businessID, userID string) (DetachResult, error) {
	var result DetachResult

	tasks, err := s.colls.Tasks.List(ctx, businessID)
	if err != nil {
		return result, fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, task := range tasks {
		if _, ok := without(task.Assignees, userID); !ok {
			continue
		}
		changed, err := detach(ctx, s.colls.Tasks, task.ID, func(t *Task) bool {
			var ok bool
			t.Assignees, ok = without(t.Assignees, userID)
			return ok
		})
		if err != nil {
			return result, fmt.Errorf("failed to detach user from task %s: %w", task.ID, err)
		}
		if changed {
			result.Tasks++
		}
	}

	projects, err := s.colls.Projects.List(ctx, businessID)
	if err != nil {
		return result, fmt.Errorf("failed to list projects: %w", err)
	}
	for _, project := range projects {
		if _, ok := without(project.Team, userID); !ok {
			continue
		}
		changed, err := detach(ctx, s.colls.Projects, project.ID, func(p *Project) bool {
			var ok bool
			p.Team, ok = without(p.Team, userID)
			return ok
		})
		if err != nil {
			return result, fmt.Errorf("failed to detach user from project %s: %w", project.ID, err)
		}
		if changed {
			result.Projects++
		}
	}

	return result, nil
}

// detach reloads the record on every attempt so concurrent edits are kept
func detach[T docstore.Entity](ctx context.Context, coll docstore.Collection[T], id string, fn func(T) bool) (bool, error) {
	changed := false
	err := docstore.RetryOnConflict(ctx, 0, func(ctx context.Context, _ int) error {
		doc, err := coll.Get(ctx, id)
		if err != nil {
			return err
		}
		changed = fn(doc)
		if !changed {
			return nil
		}
		return coll.Replace(ctx, doc)
	})
	if docstore.IsNotFound(err) {
		return false, nil
	}
	return changed, err
}

// DeleteCounts reports how many records a business deletion removed
type DeleteCounts struct {
	Projects int64 `json:"projects"`
	Tasks    int64 `json:"tasks"`
	Clients  int64 `json:"clients"`
}

// DeleteBusiness removes every project, task and client of businessID
func (s *Service) DeleteBusiness(ctx context.Context, businessID string) (DeleteCounts, error) {
	var counts DeleteCounts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.colls.Tasks.DeleteScope(gctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		counts.Tasks = n
		return nil
	})
	g.Go(func() error {
		n, err := s.colls.Projects.DeleteScope(gctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to delete projects: %w", err)
		}
		counts.Projects = n
		return nil
	})
	g.Go(func() error {
		n, err := s.colls.Clients.DeleteScope(gctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to delete clients: %w", err)
		}
		counts.Clients = n
		return nil
	})

	err := g.Wait()
	return counts, err
}
