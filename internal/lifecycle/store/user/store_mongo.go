package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"lifeline/internal/lifecycle/models"
	"lifeline/pkg/platform/sentinel"
)

// CollectionName is the MongoDB collection holding users.
const CollectionName = "users"

// maxExecuteAttempts bounds optimistic retries when a concurrent writer
// bumps the document version between read and replace.
const maxExecuteAttempts = 5

type userDoc struct {
	UserID           string    `bson:"_id"`
	Phone            string    `bson:"phone"`
	Name             string    `bson:"name"`
	UserRole         string    `bson:"userRole"`
	PinCode          string    `bson:"pinCode"`
	BloodType        string    `bson:"bloodType"`
	Age              int       `bson:"age"`
	Weight           float64   `bson:"weight"`
	Gender           string    `bson:"gender"`
	Address          string    `bson:"address"`
	Status           string    `bson:"status"`
	LastDonationTime int64     `bson:"lastDonationTime"`
	BloodReportLink  string    `bson:"bloodReportLink"`
	IsRequestActive  bool      `bson:"isRequestActive"`
	BloodTypeNeeded  string    `bson:"bloodTypeNeeded"`
	RequestPinCode   string    `bson:"requestPinCode"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
	Version          int64     `bson:"version"`
}

// MongoStore persists users as documents keyed by userId. A unique index on
// phone backs the duplicate phone rule.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the phone and donor lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetName("users_phone_key").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("users_status_idx"),
		},
		{
			Keys: bson.D{
				{Key: "userRole", Value: 1},
				{Key: "status", Value: 1},
				{Key: "pinCode", Value: 1},
				{Key: "bloodType", Value: 1},
			},
			Options: options.Index().SetName("users_donor_lookup_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateIfPhoneAvailable(ctx context.Context, u *models.User) error {
	if _, err := s.coll.InsertOne(ctx, toUserDoc(u, 1)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if duplicateOnIndex(err, "_id_") {
				return sentinel.ErrDuplicateID
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// duplicateOnIndex reports whether a duplicate key error was raised by index.
// The server names the index only in the error message.
func duplicateOnIndex(err error, index string) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if strings.Contains(e.Message, "index: "+index+" ") {
			return true
		}
	}
	return false
}

func (s *MongoStore) FindByID(ctx context.Context, userID string) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoStore) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	doc, err := s.findOne(ctx, bson.D{{Key: "phone", Value: phone}})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ListByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error) {
	return s.find(ctx, bson.D{{Key: "status", Value: string(status)}})
}

func (s *MongoStore) ListDonors(ctx context.Context, filter models.DonorFilter) ([]*models.User, error) {
	q := bson.D{
		{Key: "userRole", Value: string(models.RoleDonor)},
		{Key: "status", Value: string(models.UserStatusVerified)},
		{Key: "pinCode", Value: filter.PinCode},
	}
	if filter.BloodType != "" {
		q = append(q, bson.E{Key: "bloodType", Value: filter.BloodType})
	}
	return s.find(ctx, q)
}

func (s *MongoStore) ListAll(ctx context.Context) ([]*models.User, error) {
	return s.find(ctx, bson.D{})
}

// Execute reads the document, applies validate and mutate, and replaces it
// only if its version is unchanged. A lost race is retried.
func (s *MongoStore) Execute(ctx context.Context, userID string, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	for attempt := 0; attempt < maxExecuteAttempts; attempt++ {
		doc, err := s.findOne(ctx, bson.D{{Key: "_id", Value: userID}})
		if err != nil {
			return nil, err
		}
		u := doc.toModel()
		if err := validate(u); err != nil {
			return nil, err
		}
		mutate(u)

		res, err := s.coll.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: userID}, {Key: "version", Value: doc.Version}},
			toUserDoc(u, doc.Version+1),
		)
		if err != nil {
			return nil, fmt.Errorf("replace user: %w", err)
		}
		if res.MatchedCount == 1 {
			return u, nil
		}
	}
	return nil, fmt.Errorf("replace user %s: %w", userID, sentinel.ErrUnavailable)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*userDoc, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.D) ([]*models.User, error) {
	cur, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	out := make([]*models.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func toUserDoc(u *models.User, version int64) userDoc {
	return userDoc{
		UserID:           u.UserID,
		Phone:            u.Phone,
		Name:             u.Name,
		UserRole:         string(u.UserRole),
		PinCode:          u.PinCode,
		BloodType:        u.BloodType,
		Age:              u.Age,
		Weight:           u.Weight,
		Gender:           u.Gender,
		Address:          u.Address,
		Status:           string(u.Status),
		LastDonationTime: u.LastDonationTime,
		BloodReportLink:  u.BloodReportLink,
		IsRequestActive:  u.IsRequestActive,
		BloodTypeNeeded:  u.BloodTypeNeeded,
		RequestPinCode:   u.RequestPinCode,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		Version:          version,
	}
}

func (d *userDoc) toModel() *models.User {
	return &models.User{
		UserID:           d.UserID,
		Name:             d.Name,
		Phone:            d.Phone,
		UserRole:         models.Role(d.UserRole),
		PinCode:          d.PinCode,
		BloodType:        d.BloodType,
		Age:              d.Age,
		Weight:           d.Weight,
		Gender:           d.Gender,
		Address:          d.Address,
		Status:           models.UserStatus(d.Status),
		LastDonationTime: d.LastDonationTime,
		BloodReportLink:  d.BloodReportLink,
		IsRequestActive:  d.IsRequestActive,
		BloodTypeNeeded:  d.BloodTypeNeeded,
		RequestPinCode:   d.RequestPinCode,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}
