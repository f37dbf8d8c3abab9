package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection      = "rooms"
	playerRoomCollection = "player_room_map"
)

type MongoBackend struct {
	client  *mongo.Client
	rooms   *mongo.Collection
	players *mongo.Collection
}

func NewMongoBackend(ctx context.Context, uri, database string) (*MongoBackend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	return &MongoBackend{
		client:  client,
		rooms:   db.Collection(roomsCollection),
		players: db.Collection(playerRoomCollection),
	}, nil
}

func (m *MongoBackend) SaveRoom(ctx context.Context, doc RoomDocument) error {
	_, err := m.rooms.ReplaceOne(ctx, bson.M{"_id": doc.Code}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoBackend) DeleteRoom(ctx context.Context, code string) error {
	_, err := m.rooms.DeleteOne(ctx, bson.M{"_id": code})
	return err
}

func (m *MongoBackend) SetPlayerRoom(ctx context.Context, playerID, code string) error {
	doc := PlayerRoomDocument{PlayerID: playerID, RoomCode: code}
	_, err := m.players.ReplaceOne(ctx, bson.M{"_id": playerID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoBackend) DeletePlayerRoom(ctx context.Context, playerID string) error {
	_, err := m.players.DeleteOne(ctx, bson.M{"_id": playerID})
	return err
}

func (m *MongoBackend) LoadRooms(ctx context.Context) ([]RoomDocument, error) {
	cur, err := m.rooms.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var docs []RoomDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *MongoBackend) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
