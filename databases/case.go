package databases

// go generate: mockery --name CaseDatabase

import (
	"context"
	"errors"
	"math"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/resolveit-api/models"
)

const caseName = "cases"

// ErrStaleVersion is returned by Save when the stored document changed since it was loaded
var ErrStaleVersion = errors.New("document version changed since it was loaded")

// CaseDatabase contains the methods to use with the case database
type CaseDatabase interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Case, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Insert(ctx context.Context, c *models.Case) error
	Save(ctx context.Context, c *models.Case) error
	List(ctx context.Context, filter models.CaseFilter, page, limit int) (*models.CaseList, error)
	Breakdown(ctx context.Context, field string) ([]models.CountBucket, error)
	EnsureIndexes(ctx context.Context) error
}

type caseDatabase struct {
	db DatabaseHelper
}

// NewCaseDatabase initializes a new instance of case database with the provided db connection
func NewCaseDatabase(db DatabaseHelper) CaseDatabase {
	return &caseDatabase{
		db: db,
	}
}

func (c *caseDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Case, error) {
	return c.FindOne(ctx, bson.M{"_id": id})
}

func (c *caseDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error) {
	mCase := &models.Case{}
	err := c.db.Collection(caseName).FindOne(ctx, filter, opts...).Decode(&mCase)
	if err != nil {
		return nil, err
	}
	return mCase, nil
}

func (c *caseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error) {
	var cases []models.Case
	curr, err := c.db.Collection(caseName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &cases)
	if err != nil {
		return nil, err
	}
	return cases, nil
}

func (c *caseDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(caseName).CountDocuments(ctx, filter, opts...)
}

// Insert stores a new case at version zero
func (c *caseDatabase) Insert(ctx context.Context, mCase *models.Case) error {
	if mCase.ID.IsZero() {
		mCase.ID = primitive.NewObjectID()
	}
	mCase.Version = 0
	_, err := c.db.Collection(caseName).InsertOne(ctx, mCase)
	return err
}

// Save replaces the case details if nobody else has written the document since it
// was loaded, and bumps the version on success
func (c *caseDatabase) Save(ctx context.Context, mCase *models.Case) error {
	res, err := c.db.Collection(caseName).UpdateOne(ctx,
		bson.M{"_id": mCase.ID, "__v": mCase.Version},
		bson.M{
			"$set": bson.M{"case": mCase.Details},
			"$inc": bson.M{"__v": 1},
		},
	)
	if err != nil {
		return err
	}
	if res == nil || res.MatchedCount == 0 {
		return ErrStaleVersion
	}
	mCase.Version++
	return nil
}

// List returns one page of cases, newest first
func (c *caseDatabase) List(ctx context.Context, filter models.CaseFilter, page, limit int) (*models.CaseList, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	query := caseFilterQuery(filter)

	type findResult struct {
		cases []models.Case
		err   error
	}
	type countResult struct {
		count int64
		err   error
	}

	findChan := make(chan findResult, 1)
	countChan := make(chan countResult, 1)

	go func() {
		cases, err := c.Find(ctx, query, pageOptions(page, limit, newestFirst))
		findChan <- findResult{cases: cases, err: err}
	}()

	go func() {
		count, err := c.CountDocuments(ctx, query)
		countChan <- countResult{count: count, err: err}
	}()

	findRes := <-findChan
	countRes := <-countChan

	if findRes.err != nil {
		return nil, findRes.err
	}
	if countRes.err != nil {
		return nil, countRes.err
	}

	cases := findRes.cases
	if len(cases) == 0 {
		cases = []models.Case{}
	}
	totalPages := int(math.Ceil(float64(countRes.count) / float64(limit)))

	return &models.CaseList{
		Cases:       cases,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCases:  countRes.count,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

func caseFilterQuery(filter models.CaseFilter) bson.M {
	query := bson.M{}
	if filter.Complainant != "" {
		query["case.complainant"] = filter.Complainant
	}
	if filter.Status != "" {
		query["case.status"] = filter.Status
	}
	if filter.CaseType != "" {
		query["case.caseType"] = filter.CaseType
	}
	if filter.Priority != "" {
		query["case.priority"] = filter.Priority
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"case.title": pattern},
			bson.M{"case.caseNumber": pattern},
			bson.M{"case.oppositeParty.name": pattern},
		}
	}
	return query
}

// Breakdown groups every case by one of its detail fields (status, caseType, priority)
func (c *caseDatabase) Breakdown(ctx context.Context, field string) ([]models.CountBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$case." + field, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	curr, err := c.db.Collection(caseName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)

	var buckets []models.CountBucket
	if err := curr.All(ctx, &buckets); err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []models.CountBucket{}
	}
	return buckets, nil
}

// EnsureIndexes creates the unique case number index and the listing indexes
func (c *caseDatabase) EnsureIndexes(ctx context.Context) error {
	coll := c.db.Collection(caseName)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "case.caseNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "case.complainant", Value: 1}, {Key: "case.createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "case.status", Value: 1}}},
	}
	for _, idx := range indexes {
		if _, err := coll.CreateIndex(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
