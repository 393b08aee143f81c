package exporter

import (
	"context"
	"testing"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
	"github.com/baldanca/mongo-ddb-export/encoder"
)

func TestCollectionKeyFunc(t *testing.T) {
	kf := CollectionKeyFunc[attrvalue.Record](encoder.NDJSONEncoder[attrvalue.Record]{})
	for part := 0; part < 3; part++ {
		key, err := kf(context.Background(), Batch[attrvalue.Record]{Database: "shop", Collection: "orders", Part: part})
		if err != nil {
			t.Fatal(err)
		}
		if key != "shop_orders.json" {
			t.Fatalf("part %d key = %q", part, key)
		}
	}
}

func TestPartKeyFunc(t *testing.T) {
	kf := PartKeyFunc[attrvalue.Record](encoder.ParquetEncoder[attrvalue.Record]{})
	key, err := kf(context.Background(), Batch[attrvalue.Record]{Database: "shop", Collection: "orders", Part: 12})
	if err != nil {
		t.Fatal(err)
	}
	if key != "shop_orders/part-00012.parquet" {
		t.Fatalf("key = %q", key)
	}
}

func TestKeyFunc_FallbackExtension(t *testing.T) {
	kf := PartKeyFunc[int](&fakeEnc[int]{ext: "bin"})
	key, _ := kf(context.Background(), Batch[int]{Database: "a", Collection: "b"})
	if key != "a_b/part-00000.bin" {
		t.Fatalf("key = %q", key)
	}
}
