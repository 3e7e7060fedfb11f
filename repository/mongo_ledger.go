/*
wallets:      _id = address, balance (Decimal128)
transactions: address + timestamp desc index, see script/mongodb
*/
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linlinbupt123-crypto/mock_wallet/db"
	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
)

type walletDoc struct {
	Address   string               `bson:"_id"`
	Balance   primitive.Decimal128 `bson:"balance"`
	CreatedAt time.Time            `bson:"created_at"`
}

type transactionDoc struct {
	ID        string               `bson:"_id"`
	Address   string               `bson:"address"`
	Sender    string               `bson:"sender"`
	Recipient string               `bson:"recipient"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Type      string               `bson:"type"`
	Timestamp time.Time            `bson:"timestamp"`
}

// MongoLedger keeps balances in the wallets collection and the log in transactions.
type MongoLedger struct {
	client  *mongo.Client
	wallets *mongo.Collection
	txs     *mongo.Collection
}

func NewMongoLedger(repo *db.MongoRepo) *MongoLedger {
	return &MongoLedger{client: repo.Client, wallets: repo.WalletColl, txs: repo.TxColl}
}

func (r *MongoLedger) GetBalance(ctx context.Context, address string) (decimal.Decimal, bool, error) {
	var w walletDoc
	err := r.wallets.FindOne(ctx, bson.M{"_id": address}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	b, err := fromDecimal128(w.Balance)
	if err != nil {
		return decimal.Zero, false, err
	}
	return b, true, nil
}

func (r *MongoLedger) SetBalance(ctx context.Context, address string, amount decimal.Decimal) error {
	d, err := toDecimal128(amount)
	if err != nil {
		return err
	}
	_, err = r.wallets.UpdateOne(ctx,
		bson.M{"_id": address},
		bson.M{
			"$set":         bson.M{"balance": d},
			"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoLedger) EnsureAccount(ctx context.Context, address string, initial decimal.Decimal) (bool, error) {
	d, err := toDecimal128(initial)
	if err != nil {
		return false, err
	}
	res, err := r.wallets.UpdateOne(ctx,
		bson.M{"_id": address},
		bson.M{"$setOnInsert": bson.M{"balance": d, "created_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *MongoLedger) AppendRecord(ctx context.Context, rec entity.TransactionRecord) error {
	amount, err := toDecimal128(rec.Amount)
	if err != nil {
		return err
	}
	_, err = r.txs.InsertOne(ctx, transactionDoc{
		ID:        rec.ID,
		Address:   rec.Address,
		Sender:    rec.Sender,
		Recipient: rec.Recipient,
		Amount:    amount,
		Type:      string(rec.Type),
		Timestamp: rec.Timestamp,
	})
	return err
}

func (r *MongoLedger) ListRecords(ctx context.Context, address string) ([]entity.TransactionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cur, err := r.txs.Find(ctx, bson.M{"address": address}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]entity.TransactionRecord, 0, len(docs))
	for _, d := range docs {
		amount, err := fromDecimal128(d.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.TransactionRecord{
			ID:        d.ID,
			Address:   d.Address,
			Sender:    d.Sender,
			Recipient: d.Recipient,
			Amount:    amount,
			Type:      entity.RecordType(d.Type),
			Timestamp: d.Timestamp,
		})
	}
	return out, nil
}

// WithinTx runs fn in a multi-document transaction. Operations issued with the
// session context fn receives join the transaction; transient conflicts are retried by the driver.
func (r *MongoLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, r)
	})
	return err
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

var _ domain.Ledger = (*MongoLedger)(nil)
