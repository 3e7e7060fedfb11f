package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linlinbupt123-crypto/mock_wallet/db"
)

func main() {
	// MongoDB connection config
	uri := flag.String("uri", "mongodb://localhost:27017/?replicaSet=rs0", "MongoDB connection string")
	dbName := flag.String("db", "mock_wallet", "database name")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := db.NewMongoRepo(ctx, *uri, *dbName)
	if err != nil {
		log.Fatal("MongoDB connect error:", err)
	}
	defer func() {
		if err := repo.Close(ctx); err != nil {
			log.Printf("MongoDB disconnect error: %v", err)
		}
	}()

	if err := initIndexes(ctx, repo.DB); err != nil {
		log.Fatal("Init indexes failed:", err)
	}

	fmt.Println("All indexes initialized successfully.")
}

// 安全创建索引函数
func createIndexSafe(ctx context.Context, col *mongo.Collection, index mongo.IndexModel) error {
	_, err := col.Indexes().CreateOne(ctx, index)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil // 忽略已存在索引
		}
		return err
	}
	return nil
}

// 初始化 ledger collection 索引; wallets are keyed by _id = address
func initIndexes(ctx context.Context, database *mongo.Database) error {
	txCol := database.Collection(db.TransactionCollection)
	txIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "address", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.M{"sender": 1}},
		{Keys: bson.M{"recipient": 1}},
	}
	for _, idx := range txIndexes {
		if err := createIndexSafe(ctx, txCol, idx); err != nil {
			return fmt.Errorf("transactions index error: %w", err)
		}
	}

	walletCol := database.Collection(db.WalletCollection)
	walletIndexes := []mongo.IndexModel{
		{Keys: bson.M{"created_at": -1}},
	}
	for _, idx := range walletIndexes {
		if err := createIndexSafe(ctx, walletCol, idx); err != nil {
			return fmt.Errorf("wallets index error: %w", err)
		}
	}

	return nil
}
