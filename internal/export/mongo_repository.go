package export

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository is a MongoDB implementation of Repository.
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a repository over the given collection.
func NewMongoRepository(collection *mongo.Collection) *MongoRepository {
	return &MongoRepository{collection: collection}
}

type jobDocument struct {
	ID         string             `bson:"_id"`
	UserID     string             `bson:"user_id"`
	EventID    string             `bson:"event_id"`
	Type       string             `bson:"type"`
	Format     string             `bson:"format"`
	Status     string             `bson:"status"`
	Processing processingDocument `bson:"processing"`
	FileInfo   *fileInfoDocument  `bson:"file_info,omitempty"`
	Downloads  downloadsDocument  `bson:"downloads"`
	Version    int64              `bson:"version"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

type processingDocument struct {
	StartedAt   *time.Time `bson:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	Progress    int        `bson:"progress"`
	Error       string     `bson:"error,omitempty"`
}

type fileInfoDocument struct {
	Filename        string `bson:"filename"`
	Size            int64  `bson:"size"`
	MIMEType        string `bson:"mime_type"`
	URL             string `bson:"url"`
	StorageProvider string `bson:"storage_provider"`
}

type downloadsDocument struct {
	Total          int        `bson:"total"`
	LastDownloaded *time.Time `bson:"last_downloaded,omitempty"`
}

func toDocument(j *Job) jobDocument {
	doc := jobDocument{
		ID:      j.ID,
		UserID:  j.UserID,
		EventID: j.EventID,
		Type:    string(j.Type),
		Format:  string(j.Format),
		Status:  string(j.Status),
		Processing: processingDocument{
			StartedAt:   j.Processing.StartedAt,
			CompletedAt: j.Processing.CompletedAt,
			Progress:    j.Processing.Progress,
			Error:       j.Processing.Error,
		},
		Downloads: downloadsDocument{
			Total:          j.Downloads.Total,
			LastDownloaded: j.Downloads.LastDownloaded,
		},
		Version:   j.Version,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if fi := j.FileInfo; fi != nil {
		doc.FileInfo = &fileInfoDocument{
			Filename:        fi.Filename,
			Size:            fi.Size,
			MIMEType:        fi.MIMEType,
			URL:             fi.URL,
			StorageProvider: fi.StorageProvider,
		}
	}
	return doc
}

func (d *jobDocument) toJob() *Job {
	j := &Job{
		ID:      d.ID,
		UserID:  d.UserID,
		EventID: d.EventID,
		Type:    Type(d.Type),
		Format:  Format(d.Format),
		Status:  Status(d.Status),
		Processing: Processing{
			StartedAt:   d.Processing.StartedAt,
			CompletedAt: d.Processing.CompletedAt,
			Progress:    d.Processing.Progress,
			Error:       d.Processing.Error,
		},
		Downloads: Downloads{
			Total:          d.Downloads.Total,
			LastDownloaded: d.Downloads.LastDownloaded,
		},
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if fi := d.FileInfo; fi != nil {
		j.FileInfo = &FileInfo{
			Filename:        fi.Filename,
			Size:            fi.Size,
			MIMEType:        fi.MIMEType,
			URL:             fi.URL,
			StorageProvider: fi.StorageProvider,
		}
	}
	return j
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Job, error) {
	var doc jobDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrExportNotFound
		}
		return nil, err
	}
	return doc.toJob(), nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Job, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(docs))
	for i := range docs {
		jobs = append(jobs, docs[i].toJob())
	}
	return jobs, nil
}

// Create stores a new job.
func (r *MongoRepository) Create(ctx context.Context, job *Job) error {
	job.Version = 1
	_, err := r.collection.InsertOne(ctx, toDocument(job))
	return err
}

// Get retrieves a job by ID.
func (r *MongoRepository) Get(ctx context.Context, id string) (*Job, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByUserAndID retrieves a visible job owned by userID.
func (r *MongoRepository) GetByUserAndID(ctx context.Context, userID, id string) (*Job, error) {
	return r.findOne(ctx, bson.M{
		"_id":     id,
		"user_id": userID,
		"status":  bson.M{"$ne": string(StatusDeleting)},
	})
}

// List returns a user's visible jobs, newest first.
func (r *MongoRepository) List(ctx context.Context, userID string, filter ListFilter) ([]*Job, error) {
	query := listQuery(userID, filter)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, query, opts)
}

// listQuery selects a user's jobs matching filter. Jobs being deleted stay
// hidden even when the filter asks for them.
func listQuery(userID string, filter ListFilter) bson.M {
	status := bson.M{"$ne": string(StatusDeleting)}
	if filter.Status != "" {
		status["$eq"] = string(filter.Status)
	}
	query := bson.M{"user_id": userID, "status": status}
	if filter.EventID != "" {
		query["event_id"] = filter.EventID
	}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	return query
}

// ListByStatus returns jobs in status updated before the cutoff.
func (r *MongoRepository) ListByStatus(ctx context.Context, status Status, updatedBefore time.Time) ([]*Job, error) {
	query := bson.M{"status": string(status), "updated_at": bson.M{"$lt": updatedBefore}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	return r.find(ctx, query, opts)
}

// Update performs a compare-and-swap on version.
func (r *MongoRepository) Update(ctx context.Context, job *Job) error {
	doc := toDocument(job)
	set := bson.M{
		"status":     doc.Status,
		"processing": doc.Processing,
		"downloads":  doc.Downloads,
		"updated_at": doc.UpdatedAt,
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if doc.FileInfo != nil {
		set["file_info"] = doc.FileInfo
	} else {
		update["$unset"] = bson.M{"file_info": ""}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": job.ID, "version": job.Version}, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": job.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrExportNotFound
		}
		return ErrVersionConflict
	}

	job.Version++
	return nil
}

// IncrementDownloads records a download on a completed job.
func (r *MongoRepository) IncrementDownloads(ctx context.Context, id string, at time.Time) (*Job, error) {
	update := bson.M{
		"$inc": bson.M{"downloads.total": 1, "version": 1},
		"$set": bson.M{"downloads.last_downloaded": at, "updated_at": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc jobDocument
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": string(StatusCompleted)}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrExportNotFound
		}
		return nil, err
	}
	return doc.toJob(), nil
}

// Delete removes a job.
func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrExportNotFound
	}
	return nil
}

// Ensure MongoRepository implements Repository.
var _ Repository = (*MongoRepository)(nil)
