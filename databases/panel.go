package databases

// go generate: mockery --name PanelDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/resolveit-api/models"
)

const panelName = "panels"

// PanelDatabase contains the methods to use with the panel database
type PanelDatabase interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Panel, error)
	FindByCase(ctx context.Context, caseID primitive.ObjectID) (*models.Panel, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Panel, error)
	Insert(ctx context.Context, p *models.Panel) error
	Save(ctx context.Context, p *models.Panel) error
	EnsureIndexes(ctx context.Context) error
}

type panelDatabase struct {
	db DatabaseHelper
}

// NewPanelDatabase initializes a new instance of panel database with the provided db connection
func NewPanelDatabase(db DatabaseHelper) PanelDatabase {
	return &panelDatabase{
		db: db,
	}
}

func (p *panelDatabase) findOne(ctx context.Context, filter interface{}) (*models.Panel, error) {
	panel := &models.Panel{}
	err := p.db.Collection(panelName).FindOne(ctx, filter).Decode(&panel)
	if err != nil {
		return nil, err
	}
	return panel, nil
}

func (p *panelDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Panel, error) {
	return p.findOne(ctx, bson.M{"_id": id})
}

func (p *panelDatabase) FindByCase(ctx context.Context, caseID primitive.ObjectID) (*models.Panel, error) {
	return p.findOne(ctx, bson.M{"panel.case": caseID})
}

func (p *panelDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Panel, error) {
	var panels []models.Panel
	curr, err := p.db.Collection(panelName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &panels)
	if err != nil {
		return nil, err
	}
	return panels, nil
}

func (p *panelDatabase) Insert(ctx context.Context, panel *models.Panel) error {
	if panel.ID.IsZero() {
		panel.ID = primitive.NewObjectID()
	}
	panel.Version = 0
	_, err := p.db.Collection(panelName).InsertOne(ctx, panel)
	return err
}

// Save writes the panel details back with the same version check used for cases
func (p *panelDatabase) Save(ctx context.Context, panel *models.Panel) error {
	res, err := p.db.Collection(panelName).UpdateOne(ctx,
		bson.M{"_id": panel.ID, "__v": panel.Version},
		bson.M{
			"$set": bson.M{"panel": panel.Details},
			"$inc": bson.M{"__v": 1},
		},
	)
	if err != nil {
		return err
	}
	if res == nil || res.MatchedCount == 0 {
		return ErrStaleVersion
	}
	panel.Version++
	return nil
}

// EnsureIndexes enforces the one panel per case rule at the storage layer
func (p *panelDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := p.db.Collection(panelName).CreateIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "panel.case", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
