package storage

import (
	"context"
	"crypto/tls"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSlotStore persists the word map in a Mongo collection, one document
// per non-zero slot, keyed by the hex slot address.
type MongoSlotStore struct {
	client   *mongo.Client
	db       *mongo.Database
	slotsCol *mongo.Collection
}

type slotDoc struct {
	Slot string `bson:"_id"`
	Word []byte `bson:"word"`
}

func NewMongoSlotStore(ctx context.Context, mongoURI, dbName string) (*MongoSlotStore, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	return &MongoSlotStore{
		client:   client,
		db:       db,
		slotsCol: db.Collection("slots"),
	}, nil
}

func (s *MongoSlotStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoSlotStore) Get(ctx context.Context, slot Slot) (Word, error) {
	var doc slotDoc
	err := s.slotsCol.FindOne(ctx, bson.M{"_id": slot.Hex()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Word{}, nil
	}
	if err != nil {
		return Word{}, err
	}
	var w Word
	copy(w[:], doc.Word)
	return w, nil
}

func (s *MongoSlotStore) Set(ctx context.Context, slot Slot, word Word) error {
	if word.IsZero() {
		_, err := s.slotsCol.DeleteOne(ctx, bson.M{"_id": slot.Hex()})
		return err
	}
	_, err := s.slotsCol.UpdateOne(
		ctx,
		bson.M{"_id": slot.Hex()},
		bson.M{"$set": bson.M{"word": word[:]}},
		options.Update().SetUpsert(true),
	)
	return err
}
