package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	WalletCollection      = "wallets"
	TransactionCollection = "transactions"
)

type MongoRepo struct {
	Client     *mongo.Client
	DB         *mongo.Database
	WalletColl *mongo.Collection
	TxColl     *mongo.Collection
}

// NewMongoRepo connects and pings. Ledger transactions need a replica set or sharded cluster.
func NewMongoRepo(ctx context.Context, uri, dbName string) (*MongoRepo, error) {
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	// ping
	ctx2, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx2, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(dbName)
	return &MongoRepo{
		Client:     client,
		DB:         db,
		WalletColl: db.Collection(WalletCollection),
		TxColl:     db.Collection(TransactionCollection),
	}, nil
}

func (r *MongoRepo) Close(ctx context.Context) error {
	return r.Client.Disconnect(ctx)
}
