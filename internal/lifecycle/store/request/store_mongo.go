package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"lifeline/internal/lifecycle/models"
	"lifeline/pkg/platform/sentinel"
)

// CollectionName is the MongoDB collection holding requests.
const CollectionName = "requests"

// CountersCollection holds the insertion sequence used to order requests
// created within the same millisecond.
const CountersCollection = "counters"

const maxExecuteAttempts = 5

type requestDoc struct {
	RequestID       string    `bson:"_id"`
	RequesterID     string    `bson:"requesterId"`
	Name            string    `bson:"name"`
	Phone           string    `bson:"phone"`
	UserRole        string    `bson:"userRole"`
	PinCode         string    `bson:"pinCode"`
	BloodTypeNeeded string    `bson:"bloodTypeNeeded"`
	Status          string    `bson:"status"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
	Seq             int64     `bson:"seq"`
	Version         int64     `bson:"version"`
}

type counterDoc struct {
	Seq int64 `bson:"seq"`
}

// MongoStore persists requests as documents keyed by requestId.
type MongoStore struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll:     db.Collection(CollectionName),
		counters: db.Collection(CountersCollection),
	}
}

// EnsureIndexes creates the one-pending-per-requester partial unique index
// and the listing index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "requesterId", Value: 1}},
			Options: options.Index().
				SetName("requests_one_pending_idx").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: string(models.RequestStatusPending)}}),
		},
		{
			Keys:    bson.D{{Key: "pinCode", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}},
			Options: options.Index().SetName("requests_pin_newest_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create request indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateIfNoPending(ctx context.Context, r *models.Request) error {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, toRequestDoc(r, seq, 1)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, requestID string) (*models.Request, error) {
	doc, err := s.findOne(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoStore) List(ctx context.Context, pinCode string) ([]*models.Request, error) {
	filter := bson.D{}
	if pinCode != "" {
		filter = bson.D{{Key: "pinCode", Value: pinCode}}
	}
	cur, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find requests: %w", err)
	}
	var docs []requestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	out := make([]*models.Request, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// Execute replaces the document only when its version is unchanged since it
// was read, retrying a bounded number of times.
func (s *MongoStore) Execute(ctx context.Context, requestID string, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	for attempt := 0; attempt < maxExecuteAttempts; attempt++ {
		doc, err := s.findOne(ctx, requestID)
		if err != nil {
			return nil, err
		}
		r := doc.toModel()
		if err := validate(r); err != nil {
			return nil, err
		}
		mutate(r)

		res, err := s.coll.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: requestID}, {Key: "version", Value: doc.Version}},
			toRequestDoc(r, doc.Seq, doc.Version+1),
		)
		if err != nil {
			return nil, fmt.Errorf("replace request: %w", err)
		}
		if res.MatchedCount == 1 {
			return r, nil
		}
	}
	return nil, fmt.Errorf("replace request %s: %w", requestID, sentinel.ErrUnavailable)
}

func (s *MongoStore) findOne(ctx context.Context, requestID string) (*requestDoc, error) {
	var doc requestDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: requestID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &doc, nil
}

// nextSeq atomically increments the request counter. Gaps left by failed
// inserts are harmless; only the order matters.
func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var c counterDoc
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: CollectionName}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next request seq: %w", err)
	}
	return c.Seq, nil
}

func toRequestDoc(r *models.Request, seq, version int64) requestDoc {
	return requestDoc{
		RequestID:       r.RequestID,
		RequesterID:     r.RequesterID,
		Name:            r.Name,
		Phone:           r.Phone,
		UserRole:        string(r.UserRole),
		PinCode:         r.PinCode,
		BloodTypeNeeded: r.BloodTypeNeeded,
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Seq:             seq,
		Version:         version,
	}
}

func (d *requestDoc) toModel() *models.Request {
	return &models.Request{
		RequestID:       d.RequestID,
		RequesterID:     d.RequesterID,
		Name:            d.Name,
		Phone:           d.Phone,
		UserRole:        models.Role(d.UserRole),
		PinCode:         d.PinCode,
		BloodTypeNeeded: d.BloodTypeNeeded,
		Status:          models.RequestStatus(d.Status),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}
