package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountsCollection = "accounts"
	illegalOperation   = 20
)

type accountDocument struct {
	ID           string    `bson:"_id"`
	FirstName    string    `bson:"firstName"`
	LastName     string    `bson:"lastName"`
	Email        string    `bson:"email"`
	BalanceCents int64     `bson:"balanceCents"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d accountDocument) toAccount() Account {
	return Account{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		BalanceCents: d.BalanceCents,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// MongoStore persists accounts in MongoDB.
//
// TransferBalance runs inside a multi-document transaction. A standalone
// server rejects transactions; the first such rejection is remembered and
// every later transfer uses the compensating debit/credit sequence instead.
type MongoStore struct {
	client         *mongo.Client
	coll           *mongo.Collection
	logger         *slog.Logger
	noTransactions atomic.Bool
}

// NewMongoStore builds a store over the accounts collection of db.
func NewMongoStore(db *mongo.Database, logger *slog.Logger) *MongoStore {
	return &MongoStore{
		client: db.Client(),
		coll:   db.Collection(accountsCollection),
		logger: logger,
	}
}

// EnsureIndexes creates the unique email index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create accounts email index: %w", err)
	}
	return nil
}

// Create inserts a new account with a zero balance.
func (s *MongoStore) Create(ctx context.Context, input CreateInput) (Account, error) {
	now := time.Now().UTC()
	doc := accountDocument{
		ID:        uuid.NewString(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     NormalizeEmail(input.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return doc.toAccount(), nil
}

// FindByEmail fetches an account by normalized email.
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

// FindByID fetches an account by identifier.
func (s *MongoStore) FindByID(ctx context.Context, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": id})
}

// IncrementBalance credits an account.
func (s *MongoStore) IncrementBalance(ctx context.Context, id string, amount int64) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrNotFound
	}
	acc, err := s.applyDelta(ctx, bson.M{"_id": id}, amount)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, ErrNotFound
	}
	return acc, err
}

// DecrementBalance debits an account only if the balance covers the amount.
func (s *MongoStore) DecrementBalance(ctx context.Context, id string, amount int64) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrInsufficientFunds
	}
	acc, err := s.applyDelta(ctx, bson.M{"_id": id, "balanceCents": bson.M{"$gte": amount}}, -amount)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, ErrInsufficientFunds
	}
	return acc, err
}

// TransferBalance moves funds between two accounts atomically.
func (s *MongoStore) TransferBalance(ctx context.Context, fromID, toID string, amount int64) (Transfer, error) {
	if _, err := uuid.Parse(fromID); err != nil {
		return Transfer{}, ErrInsufficientFunds
	}
	if _, err := uuid.Parse(toID); err != nil {
		return Transfer{}, ErrNotFound
	}

	if s.noTransactions.Load() {
		return transferWithCompensation(ctx, s, fromID, toID, amount)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return Transfer{}, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		sender, err := s.DecrementBalance(sc, fromID, amount)
		if err != nil {
			return nil, err
		}
		recipient, err := s.IncrementBalance(sc, toID, amount)
		if err != nil {
			return nil, err
		}
		return Transfer{Sender: sender, Recipient: recipient}, nil
	})
	if err != nil {
		if isTransactionUnsupported(err) {
			if s.noTransactions.CompareAndSwap(false, true) && s.logger != nil {
				s.logger.Warn("mongo transactions unavailable, using compensating transfers", slog.Any("error", err))
			}
			return transferWithCompensation(ctx, s, fromID, toID, amount)
		}
		return Transfer{}, err
	}
	return res.(Transfer), nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (Account, error) {
	var doc accountDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("find account: %w", err)
	}
	return doc.toAccount(), nil
}

func (s *MongoStore) applyDelta(ctx context.Context, filter bson.M, delta int64) (Account, error) {
	update := bson.M{
		"$inc": bson.M{"balanceCents": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDocument
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return Account{}, err
	}
	return doc.toAccount(), nil
}

func isTransactionUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == illegalOperation {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction numbers are only allowed") ||
		strings.Contains(msg, "Transaction support")
}
