package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/databases/mocks"
	"github.com/linesmerrill/resolveit-api/models"
)

func TestNewCaseDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf, err := config.New()
	require.NoError(t, err)

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	caseDB := databases.NewCaseDatabase(db)

	assert.NotEmpty(t, caseDB)
}

func TestCaseDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Case)
		(*arg).Details.CaseNumber = "RIT-2024-000001"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "cases").Return(collectionHelper)

	caseDba := databases.NewCaseDatabase(dbHelper)

	mCase, err := caseDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, mCase)
	assert.EqualError(t, err, "mocked-error")

	mCase, err = caseDba.FindOne(context.Background(), bson.M{"error": false})

	assert.NoError(t, err)
	assert.Equal(t, "RIT-2024-000001", mCase.Details.CaseNumber)
}

func TestCaseDatabase_Save(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	fresh := &models.Case{ID: primitive.NewObjectID(), Version: 2}
	stale := &models.Case{ID: primitive.NewObjectID(), Version: 1}

	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": fresh.ID, "__v": int32(2)}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"_id": stale.ID, "__v": int32(1)}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	caseDba := databases.NewCaseDatabase(dbHelper)

	err := caseDba.Save(context.Background(), fresh)
	assert.NoError(t, err)
	assert.Equal(t, int32(3), fresh.Version)

	err = caseDba.Save(context.Background(), stale)
	assert.ErrorIs(t, err, databases.ErrStaleVersion)
	assert.Equal(t, int32(1), stale.Version)
}

func TestCaseDatabase_Insert(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	dbHelper.On("Collection", "cases").Return(collectionHelper)
	collectionHelper.On("InsertOne", context.Background(), mock.Anything).
		Return(&mocks.InsertOneResultHelper{}, nil)

	mCase := &models.Case{Version: 4}
	err := databases.NewCaseDatabase(dbHelper).Insert(context.Background(), mCase)

	assert.NoError(t, err)
	assert.False(t, mCase.ID.IsZero())
	assert.Equal(t, int32(0), mCase.Version)
}

func TestCaseDatabase_List(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	query := bson.M{"case.status": "registered"}
	collectionHelper.On("Find", mock.Anything, query, mock.MatchedBy(func(o *options.FindOptions) bool {
		return *o.Skip == 10 && *o.Limit == 10 && o.Sort != nil
	})).Return(cursorHelper, nil)
	collectionHelper.On("CountDocuments", mock.Anything, query).Return(int64(25), nil)
	cursorHelper.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Case)
		*arg = []models.Case{{Details: models.CaseDetails{Title: "Boundary wall"}}}
	})
	cursorHelper.On("Close", mock.Anything).Return(nil)

	list, err := databases.NewCaseDatabase(dbHelper).
		List(context.Background(), models.CaseFilter{Status: "registered"}, 2, 10)

	require.NoError(t, err)
	assert.Len(t, list.Cases, 1)
	assert.Equal(t, 2, list.CurrentPage)
	assert.Equal(t, 3, list.TotalPages)
	assert.Equal(t, int64(25), list.TotalCases)
	assert.True(t, list.HasNextPage)
	assert.True(t, list.HasPrevPage)
}

func TestCaseDatabase_ListCountError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	collectionHelper.On("Find", mock.Anything, bson.M{}, mock.Anything).Return(cursorHelper, nil)
	collectionHelper.On("CountDocuments", mock.Anything, bson.M{}).Return(int64(0), errors.New("mocked-error"))
	cursorHelper.On("All", mock.Anything, mock.Anything).Return(nil)
	cursorHelper.On("Close", mock.Anything).Return(nil)

	list, err := databases.NewCaseDatabase(dbHelper).List(context.Background(), models.CaseFilter{}, 0, 0)

	assert.Nil(t, list)
	assert.EqualError(t, err, "mocked-error")
}

func TestCaseDatabase_Breakdown(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	collectionHelper.On("Aggregate", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	cursorHelper.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.CountBucket)
		*arg = []models.CountBucket{{Key: "registered", Count: 4}, {Key: "resolved", Count: 1}}
	})
	cursorHelper.On("Close", mock.Anything).Return(nil)

	buckets, err := databases.NewCaseDatabase(dbHelper).Breakdown(context.Background(), "status")

	assert.NoError(t, err)
	assert.Equal(t, []models.CountBucket{{Key: "registered", Count: 4}, {Key: "resolved", Count: 1}}, buckets)
}

func TestCaseDatabase_EnsureIndexes(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	dbHelper.On("Collection", "cases").Return(collectionHelper)
	collectionHelper.On("CreateIndex", mock.Anything, mock.Anything).Return("idx", nil)

	err := databases.NewCaseDatabase(dbHelper).EnsureIndexes(context.Background())

	assert.NoError(t, err)
	collectionHelper.AssertNumberOfCalls(t, "CreateIndex", 3)
}
