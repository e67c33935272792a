package seeding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dinesync/dinesync/pkg"
	"github.com/dinesync/dinesync/pkg/event"
)

// SeedOrders creates demo orders and their bills across a few tables and a
// takeaway, with a realistic spread of statuses.
func SeedOrders(ctx context.Context, db *mongo.Database) error {
	ordersCollection := db.Collection("orders")
	billsCollection := db.Collection("bills")

	now := time.Now()

	scenarios := []struct {
		tableKey string
		status   string
		notes    string
		age      time.Duration
		items    []event.Item
	}{
		{
			// Table 7: fresh order still in the kitchen
			tableKey: "7",
			status:   "preparing",
			notes:    "less spicy",
			age:      10 * time.Minute,
			items: []event.Item{
				{ProductRef: "paneer-tikka", Name: "Paneer Tikka", UnitPrice: 180, Quantity: 2},
				{ProductRef: "dal-makhani", Name: "Dal Makhani", UnitPrice: 150, Quantity: 1},
			},
		},
		{
			// Table 12: mid-meal, items being cooked
			tableKey: "12",
			status:   "cooking",
			age:      25 * time.Minute,
			items: []event.Item{
				{ProductRef: "butter-naan", Name: "Butter Naan", UnitPrice: 40, Quantity: 4},
				{ProductRef: "shahi-paneer", Name: "Shahi Paneer", UnitPrice: 220, Quantity: 1},
				{ProductRef: "jeera-rice", Name: "Jeera Rice", UnitPrice: 120, Quantity: 2},
			},
		},
		{
			// Table 3: finished meal, order closed
			tableKey: "3",
			status:   "served",
			age:      90 * time.Minute,
			items: []event.Item{
				{ProductRef: "masala-dosa", Name: "Masala Dosa", UnitPrice: 110, Quantity: 2},
				{ProductRef: "filter-coffee", Name: "Filter Coffee", UnitPrice: 45, Quantity: 2},
			},
		},
		{
			// Takeaway waiting for pickup
			tableKey: pkg.Takeaway,
			status:   "ready",
			age:      15 * time.Minute,
			items: []event.Item{
				{ProductRef: "veg-biryani", Name: "Veg Biryani", UnitPrice: 190, Quantity: 1},
			},
		},
	}

	for i, sc := range scenarios {
		orderID := uuid.New()
		billID := uuid.New()
		createdAt := now.Add(-sc.age)
		totals := event.ComputeBillTotals(sc.items)

		order := bson.M{
			"_id":          orderID,
			"table_key":    sc.tableKey,
			"items":        sc.items,
			"status":       sc.status,
			"notes":        sc.notes,
			"bill_details": totals,
			"created_at":   createdAt,
			"updated_at":   createdAt,
			"created_by":   "demo-seed",
		}

		_, err := ordersCollection.UpdateOne(ctx,
			bson.M{"_id": orderID},
			bson.M{"$setOnInsert": order},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("cannot create demo order %d: %w", i+1, err)
		}

		bill := bson.M{
			"_id":          billID,
			"order_ref":    orderID,
			"table_key":    sc.tableKey,
			"bill_details": totals,
			"created_at":   createdAt,
			"updated_at":   createdAt,
			"created_by":   "demo-seed",
		}

		_, err = billsCollection.UpdateOne(ctx,
			bson.M{"order_ref": orderID},
			bson.M{"$setOnInsert": bill},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("cannot create demo bill %d: %w", i+1, err)
		}
	}

	return nil
}
