package repository

import (
	"context"
	"time"

	"order-workflow-service/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoEpisodeRepository struct {
	col *mongo.Collection
}

func NewMongoEpisodeRepository(db *mongo.Database) *MongoEpisodeRepository {
	return &MongoEpisodeRepository{col: db.Collection("episodes")}
}

func (m *MongoEpisodeRepository) Save(ctx context.Context, e *model.Episode) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := m.col.InsertOne(ctx, e)
	return err
}

func (m *MongoEpisodeRepository) Update(ctx context.Context, e *model.Episode) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"episode_id": e.EpisodeID}, bson.M{"$set": e})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoEpisodeRepository) FindByID(ctx context.Context, episodeID string) (*model.Episode, error) {
	var res model.Episode
	err := m.col.FindOne(ctx, bson.M{"episode_id": episodeID}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	return &res, err
}

func (m *MongoEpisodeRepository) FindAll(ctx context.Context) ([]*model.Episode, error) {
	return m.find(ctx, bson.M{})
}

func (m *MongoEpisodeRepository) FindByStatus(ctx context.Context, status model.EpisodeStatus) ([]*model.Episode, error) {
	return m.find(ctx, bson.M{"status": status})
}

func (m *MongoEpisodeRepository) find(ctx context.Context, filter bson.M) ([]*model.Episode, error) {
	cur, err := m.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.Episode
	for cur.Next(ctx) {
		var v model.Episode
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}
