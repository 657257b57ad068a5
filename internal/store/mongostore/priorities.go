package mongostore

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pressline/internal/jobs"
	"pressline/internal/priority"
)

// QueuedSlots returns the queued jobs of press ordered by priority, ties
// broken by insertion order.
func (s *Store) QueuedSlots(ctx context.Context, press string) ([]priority.Slot, error) {
	cursor, err := s.jobs.Find(ctx,
		bson.M{"press": press, "status": string(jobs.StatusQueued)},
		options.Find().
			SetSort(queueOrder).
			SetProjection(bson.M{"_id": 1, "priority": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("queued slots: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID       string `bson:"_id"`
		Priority int    `bson:"priority"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	slots := make([]priority.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, priority.Slot{JobID: row.ID, Priority: row.Priority})
	}
	return slots, nil
}

// ApplyPriorities writes slots as one ordered bulk write. Jobs that left the
// queue or the press since they were read are not matched.
func (s *Store) ApplyPriorities(ctx context.Context, press string, slots []priority.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(slots))
	for _, slot := range slots {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": slot.JobID, "press": press, "status": string(jobs.StatusQueued)}).
			SetUpdate(bson.M{
				"$set": bson.M{"priority": slot.Priority},
				"$inc": bson.M{"revision": 1},
			}))
	}
	if _, err := s.jobs.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("apply priorities for press %q: %w", press, err)
	}
	return nil
}

// QueuedPresses returns the distinct presses holding at least one queued job.
func (s *Store) QueuedPresses(ctx context.Context) ([]string, error) {
	values, err := s.jobs.Distinct(ctx, "press", bson.M{
		"status": string(jobs.StatusQueued),
		"press":  bson.M{"$ne": ""},
	})
	if err != nil {
		return nil, fmt.Errorf("queued presses: %w", err)
	}
	presses := make([]string, 0, len(values))
	for _, value := range values {
		if press, ok := value.(string); ok && press != "" {
			presses = append(presses, press)
		}
	}
	slices.Sort(presses)
	return presses, nil
}
