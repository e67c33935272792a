package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dinesync/dinesync/services/order/internal/order"
)

type BillRepo struct {
	collection *mongo.Collection
}

func NewBillRepo(db *mongo.Database) *BillRepo {
	return &BillRepo{
		collection: db.Collection("bills"),
	}
}

func (r *BillRepo) GetByOrderRef(ctx context.Context, orderRef uuid.UUID) (*order.Bill, error) {
	var b order.Bill
	err := r.collection.FindOne(ctx, bson.M{"order_ref": orderRef}).Decode(&b)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get bill: %w", err)
	}
	return &b, nil
}

// Upsert writes the bill keyed by its order reference so a merge updates the
// existing invoice instead of inserting a sibling. Identity and creation time
// are only set on insert; the document _id never changes.
func (r *BillRepo) Upsert(ctx context.Context, b *order.Bill) error {
	if b == nil {
		return fmt.Errorf("bill is nil")
	}

	filter := bson.M{"order_ref": b.OrderRef}
	if b.OrderRef == uuid.Nil {
		filter = bson.M{"_id": b.ID}
	}

	update := bson.M{
		"$set": bson.M{
			"table_key":    b.TableKey,
			"bill_details": b.Totals,
			"updated_at":   b.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        b.ID,
			"order_ref":  b.OrderRef,
			"created_at": b.CreatedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("cannot upsert bill: %w", err)
	}

	return nil
}

func (r *BillRepo) List(ctx context.Context, limit int) ([]*order.Bill, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list bills: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Bill
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode bills: %w", err)
	}

	return result, nil
}
