package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dinesync/dinesync/pkg/enums/orderstatus"
	"github.com/dinesync/dinesync/services/order/internal/order"
)

type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{
		collection: db.Collection("orders"),
	}
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("cannot create order: %w", err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var o order.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepo) List(ctx context.Context, limit int) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	return result, nil
}

func (r *OrderRepo) ListByTable(ctx context.Context, tableKey string) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"table_key": tableKey}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders by table: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	return result, nil
}

// FindOpenByTable returns the table's single non-terminal order, or nil when
// the table is free. Newest first guards against legacy data predating the
// one-open-order invariant.
func (r *OrderRepo) FindOpenByTable(ctx context.Context, tableKey string) (*order.Order, error) {
	filter := bson.M{
		"table_key": tableKey,
		"status":    bson.M{"$nin": terminalStatusCodes()},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var o order.Order
	err := r.collection.FindOne(ctx, filter, opts).Decode(&o)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot find open order: %w", err)
	}
	return &o, nil
}

// FindBySubmissionToken looks the token up across all of the table's orders,
// terminal ones included; a replayed submission must not mint a new order
// just because the original was already served.
func (r *OrderRepo) FindBySubmissionToken(ctx context.Context, tableKey, token string) (*order.Order, error) {
	if token == "" {
		return nil, nil
	}

	filter := bson.M{
		"table_key":         tableKey,
		"submission_tokens": token,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var o order.Order
	err := r.collection.FindOne(ctx, filter, opts).Decode(&o)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot find order by submission token: %w", err)
	}
	return &o, nil
}

func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	filter := bson.M{"_id": o.ID}
	update := bson.M{"$set": o}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update order: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("order not found")
	}

	return nil
}

func terminalStatusCodes() []string {
	var codes []string
	for _, s := range orderstatus.All {
		if s.Terminal() {
			codes = append(codes, s.Code())
		}
	}
	return codes
}
