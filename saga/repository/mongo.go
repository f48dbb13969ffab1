package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/LerianStudio/lib-saga/saga"
)

// Mongo is an append-only store backed by one Mongo collection.
type Mongo[T any] struct {
	collection *mongo.Collection
	toDocument func(T) any
}

// MongoOption configures a Mongo store.
type MongoOption[T any] func(*Mongo[T])

// WithDocumentMapper sets a mapper converting items to a bson-friendly
// document before insertion. Types carrying decimal amounts need one,
// since decimal.Decimal has no bson representation of its own.
func WithDocumentMapper[T any](toDocument func(T) any) MongoOption[T] {
	return func(m *Mongo[T]) {
		if toDocument != nil {
			m.toDocument = toDocument
		}
	}
}

// NewMongo creates a Mongo-backed append-only store over a collection.
func NewMongo[T any](collection *mongo.Collection, opts ...MongoOption[T]) (*Mongo[T], error) {
	if collection == nil {
		return nil, ErrNilCollection
	}

	m := &Mongo[T]{
		collection: collection,
		toDocument: func(item T) any { return item },
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m, nil
}

// Add inserts one document.
func (m *Mongo[T]) Add(ctx context.Context, item T) error {
	if _, err := m.collection.InsertOne(ctx, m.toDocument(item)); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}

	return nil
}

// transactionDocument is the bson shape of a saga transaction. The amount
// is stored as its canonical decimal string.
type transactionDocument struct {
	ID            string `bson:"_id"`
	AccountFromID string `bson:"accountFromId"`
	AccountToID   string `bson:"accountToId"`
	Amount        string `bson:"amount"`
	State         string `bson:"state"`
}

// MongoTransactionStore persists saga transaction records in a collection
// keyed by the correlation id.
type MongoTransactionStore struct {
	collection *mongo.Collection
}

// NewMongoTransactionStore creates a transaction store over a collection.
func NewMongoTransactionStore(collection *mongo.Collection) (*MongoTransactionStore, error) {
	if collection == nil {
		return nil, ErrNilCollection
	}

	return &MongoTransactionStore{collection: collection}, nil
}

// Save upserts the full transaction record.
func (s *MongoTransactionStore) Save(ctx context.Context, transaction saga.Transaction) error {
	document := transactionDocument{
		ID:            transaction.ID,
		AccountFromID: transaction.AccountFromID,
		AccountToID:   transaction.AccountToID,
		Amount:        transaction.Amount.String(),
		State:         string(transaction.State),
	}

	_, err := s.collection.ReplaceOne(
		ctx,
		bson.M{"_id": transaction.ID},
		document,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo save transaction: %w", err)
	}

	return nil
}

// UpdateState rewrites only the state of an existing record.
func (s *MongoTransactionStore) UpdateState(ctx context.Context, id string, state saga.State) error {
	result, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"state": string(state)}},
	)
	if err != nil {
		return fmt.Errorf("mongo update state: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// FindByID returns the record for the given transaction id.
func (s *MongoTransactionStore) FindByID(ctx context.Context, id string) (saga.Transaction, error) {
	var document transactionDocument

	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return saga.Transaction{}, ErrNotFound
		}

		return saga.Transaction{}, fmt.Errorf("mongo find transaction: %w", err)
	}

	amount, err := decimal.NewFromString(document.Amount)
	if err != nil {
		return saga.Transaction{}, fmt.Errorf("decode stored amount: %w", err)
	}

	return saga.Transaction{
		ID:            document.ID,
		AccountFromID: document.AccountFromID,
		AccountToID:   document.AccountToID,
		Amount:        amount,
		State:         saga.State(document.State),
	}, nil
}
