package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pressline/internal/jobs"
	"pressline/internal/store"
	"pressline/internal/timeline"
)

// queueOrder sorts by priority with insertion order breaking ties.
var queueOrder = bson.D{
	{Key: "priority", Value: 1},
	{Key: "createdAt", Value: 1},
	{Key: "_id", Value: 1},
}

// GetJob returns nil, nil when no job matches.
func (s *Store) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	var job jobs.Job
	err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	normalize(&job)
	return &job, nil
}

// FindJobs returns jobs matching filter ordered by priority, then insertion.
func (s *Store) FindJobs(ctx context.Context, filter jobs.Filter) ([]*jobs.Job, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Press != "" {
		query["press"] = filter.Press
	}

	cursor, err := s.jobs.Find(ctx, query, options.Find().SetSort(queueOrder))
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var found []*jobs.Job
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	for _, job := range found {
		normalize(job)
	}
	return found, nil
}

// InsertJob stores a new job document.
func (s *Store) InsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	doc := *job
	normalize(&doc)
	_, err := s.jobs.InsertOne(ctx, &doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert job %q: %w", job.OT, store.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob sets the scalar attributes of job and pushes the appended events
// in one document write. The write only matches while the stored revision is
// the one the caller read.
func (s *Store) UpdateJob(ctx context.Context, job *jobs.Job, appended []timeline.Event) error {
	if job == nil {
		return errors.New("job is nil")
	}
	filter := bson.M{"_id": job.ID, "revision": revisionMatch(job.Revision)}
	update := bson.M{
		"$set": bson.M{
			"ot":               job.OT,
			"client":           job.Client,
			"jobType":          job.JobType,
			"quantityPlanned":  job.QuantityPlanned,
			"comments":         job.Comments,
			"operatorComments": job.OperatorComments,
			"machineSpeed":     job.MachineSpeed,
			"pantone":          job.Pantone,
			"barniz":           job.Barniz,
			"is4x0":            job.Is4x0,
			"is4x4":            job.Is4x4,
			"status":           string(job.Status),
			"press":            job.Press,
			"priority":         job.Priority,
			"setupCount":       job.SetupCount,
			"totalSetupTime":   job.TotalSetupTime,
			"pauseCount":       job.PauseCount,
			"totalPauseTime":   job.TotalPauseTime,
			"startedByUserId":  job.StartedByUserID,
			"updatedAt":        job.UpdatedAt,
		},
		"$inc": bson.M{"revision": 1},
	}
	if len(appended) > 0 {
		update["$push"] = bson.M{"timeline": bson.M{"$each": appended}}
	}

	res, err := s.jobs.UpdateOne(ctx, filter, update)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("update job %q: %w", job.OT, store.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	exists, err := s.jobs.CountDocuments(ctx, bson.M{"_id": job.ID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if exists == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, store.ErrNotFound)
	}
	return fmt.Errorf("update job %s: %w", job.ID, store.ErrStale)
}

// revisionMatch also matches documents written before revisions were stored.
func revisionMatch(revision int64) any {
	if revision == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return revision
}

// DeleteJob reports whether a job existed.
func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := s.jobs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// MaxQueuedPriority returns the highest priority among queued jobs on press,
// or zero when the press has none.
func (s *Store) MaxQueuedPriority(ctx context.Context, press string) (int, error) {
	var top struct {
		Priority int `bson:"priority"`
	}
	err := s.jobs.FindOne(ctx,
		bson.M{"press": press, "status": string(jobs.StatusQueued)},
		options.FindOne().
			SetSort(bson.D{{Key: "priority", Value: -1}}).
			SetProjection(bson.M{"priority": 1}),
	).Decode(&top)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("max queued priority: %w", err)
	}
	return top.Priority, nil
}

func normalize(job *jobs.Job) {
	if job.Timeline == nil {
		job.Timeline = []timeline.Event{}
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	for i := range job.Timeline {
		job.Timeline[i].Timestamp = job.Timeline[i].Timestamp.UTC()
	}
}
