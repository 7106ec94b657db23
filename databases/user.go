package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/resolveit-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database. It is also the
// directory the panel service resolves members against.
type UserDatabase interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	ResolveUsers(ctx context.Context, ids []string) (map[string]string, error)
	FindByRole(ctx context.Context, role string) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) findOne(ctx context.Context, filter interface{}) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	var users []models.User
	curr, err := u.db.Collection(userName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	if err := curr.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return u.findOne(ctx, bson.M{"_id": id})
}

func (u *userDatabase) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.findOne(ctx, bson.M{"user.email": strings.ToLower(strings.TrimSpace(email))})
}

func (u *userDatabase) Insert(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Details.Email = strings.ToLower(strings.TrimSpace(user.Details.Email))
	_, err := u.db.Collection(userName).InsertOne(ctx, user)
	return err
}

// ResolveUsers maps each id that exists to its account role. Ids that are not valid
// object ids or do not exist are left out of the result.
func (u *userDatabase) ResolveUsers(ctx context.Context, ids []string) (map[string]string, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	roles := make(map[string]string, len(oids))
	if len(oids) == 0 {
		return roles, nil
	}
	users, err := u.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		roles[user.ID.Hex()] = user.Details.Role
	}
	return roles, nil
}

func (u *userDatabase) FindByRole(ctx context.Context, role string) ([]models.User, error) {
	users, err := u.find(ctx, bson.M{"user.role": role},
		options.Find().SetSort(bson.D{{Key: "user.name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (u *userDatabase) Count(ctx context.Context) (int64, error) {
	return u.db.Collection(userName).CountDocuments(ctx, bson.M{})
}

func (u *userDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := u.db.Collection(userName).CreateIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user.email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
