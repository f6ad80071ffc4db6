package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const transactionsCollection = "transactions"

type transactionDocument struct {
	ID             string    `bson:"_id"`
	Kind           string    `bson:"type"`
	AmountCents    int64     `bson:"amountCents"`
	ActorAccountID string    `bson:"actorAccountId"`
	FromAccountID  string    `bson:"fromAccountId,omitempty"`
	ToAccountID    string    `bson:"toAccountId,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func (d transactionDocument) toTransaction() Transaction {
	return Transaction{
		ID:             d.ID,
		Kind:           Kind(d.Kind),
		AmountCents:    d.AmountCents,
		ActorAccountID: d.ActorAccountID,
		FromAccountID:  d.FromAccountID,
		ToAccountID:    d.ToAccountID,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

// MongoLedger persists ledger records in a MongoDB collection.
type MongoLedger struct {
	coll *mongo.Collection
}

// NewMongoLedger builds a ledger over the transactions collection of db.
func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{coll: db.Collection(transactionsCollection)}
}

// EnsureIndexes creates one participant index per role.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	models := make([]mongo.IndexModel, 0, 3)
	for _, field := range []string{"actorAccountId", "fromAccountId", "toAccountId"} {
		models = append(models, mongo.IndexModel{
			Keys: bson.D{{Key: field, Value: 1}, {Key: "createdAt", Value: -1}},
		})
	}
	if _, err := l.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}
	return nil
}

// Record appends a ledger record.
func (l *MongoLedger) Record(ctx context.Context, entry Entry) (Transaction, error) {
	if err := entry.Validate(); err != nil {
		return Transaction{}, err
	}
	doc := transactionDocument{
		ID:             uuid.NewString(),
		Kind:           string(entry.Kind),
		AmountCents:    entry.AmountCents,
		ActorAccountID: entry.ActorAccountID,
		FromAccountID:  entry.FromAccountID,
		ToAccountID:    entry.ToAccountID,
		// BSON dates carry millisecond precision.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := l.coll.InsertOne(ctx, doc); err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return doc.toTransaction(), nil
}

// ListForAccount returns the newest records the account participated in.
func (l *MongoLedger) ListForAccount(ctx context.Context, accountID string, q Query) ([]Transaction, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"actorAccountId": accountID},
		bson.M{"fromAccountId": accountID},
		bson.M{"toAccountId": accountID},
	}}
	if q.Kind != "" {
		filter["type"] = string(q.Kind)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(ClampLimit(q.Limit)))

	cursor, err := l.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	out := make([]Transaction, len(docs))
	for i, doc := range docs {
		out[i] = doc.toTransaction()
	}
	return out, nil
}
