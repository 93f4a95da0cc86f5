package mongo

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/dfryer1193/storefront/catalog/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToBSON_ExtendedJSON(t *testing.T) {
	doc := domain.Document{
		"_id":       map[string]any{"$oid": "65a0000000000000000000aa"},
		"name":      "Shirt",
		"stock":     json.Number("12"),
		"createdAt": map[string]any{"$date": "2026-01-02T03:04:05Z"},
	}

	d, err := toBSON(doc)
	if err != nil {
		t.Fatalf("toBSON() error = %v", err)
	}

	m := d.Map()
	if _, ok := m["_id"].(primitive.ObjectID); !ok {
		t.Errorf("_id = %T, want primitive.ObjectID", m["_id"])
	}
	if _, ok := m["createdAt"].(primitive.DateTime); !ok {
		t.Errorf("createdAt = %T, want primitive.DateTime", m["createdAt"])
	}
	if m["stock"] != int32(12) {
		t.Errorf("stock = %#v, want int32(12)", m["stock"])
	}
}

func TestFromBSON_PreservesFields(t *testing.T) {
	oid, _ := primitive.ObjectIDFromHex("65a0000000000000000000bb")
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "Hat"},
		{Key: "price", Value: 19.5},
		{Key: "images", Value: bson.A{"/assets/a-large.webp"}},
	})
	if err != nil {
		t.Fatalf("bson.Marshal() error = %v", err)
	}

	doc, err := fromBSON(raw)
	if err != nil {
		t.Fatalf("fromBSON() error = %v", err)
	}

	id, ok := doc["_id"].(map[string]any)
	if !ok || id["$oid"] != "65a0000000000000000000bb" {
		t.Errorf("_id = %#v, want extended JSON oid", doc["_id"])
	}
	if doc["price"] != json.Number("19.5") {
		t.Errorf("price = %#v", doc["price"])
	}
	if imgs, ok := doc["images"].([]any); !ok || len(imgs) != 1 {
		t.Errorf("images = %#v", doc["images"])
	}
}

// TestDocumentStore_Live runs against a real server when MONGO_URI is set.
func TestDocumentStore_Live(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	store, err := Connect(ctx, uri, "storefront_test")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer store.Close(ctx)

	if _, err := store.DeleteAll(ctx, "products"); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}

	docs := []domain.Document{{"_id": "a"}, {"_id": "a"}, {"_id": "b"}}
	n, err := store.InsertMany(ctx, "products", docs)
	if err == nil || n != 2 {
		t.Errorf("InsertMany() = %d, %v; want 2 and a duplicate key error", n, err)
	}

	got, err := store.FindAll(ctx, "products")
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FindAll() returned %d documents, want 2", len(got))
	}
}
