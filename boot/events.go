package boot

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"ember/store"
)

// EventRepository records boot hand-offs.
type EventRepository interface {
	Append(ctx context.Context, event *Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// BoltEventRepository keeps the boot history in the internal store.
type BoltEventRepository struct {
	*store.GenericRepository[Event]
}

// NewEventRepository creates a boot event repository.
func NewEventRepository(database store.Database, bucket string) EventRepository {
	return &BoltEventRepository{
		GenericRepository: store.NewGenericRepository[Event](database, bucket),
	}
}

// Append stores an event, assigning an ID and timestamp when absent.
func (r *BoltEventRepository) Append(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	return r.GenericRepository.Save(ctx, event.ID, *event)
}

// Recent returns up to limit events, newest first.
func (r *BoltEventRepository) Recent(ctx context.Context, limit int) ([]Event, error) {
	all, err := r.GenericRepository.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(all))
	for _, ev := range all {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.After(events[j].At)
		}
		return events[i].ID < events[j].ID
	})

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
