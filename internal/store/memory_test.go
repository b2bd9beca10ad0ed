package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsertAndFind(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	inserted, err := m.Insert(ctx, "things", Doc{"thingId": "t1", "size": 3})
	require.NoError(t, err)
	assert.NotNil(t, inserted["_id"])

	found, err := m.FindOne(ctx, "things", Query{"thingId": "t1"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "t1", found["thingId"])

	missing, err := m.FindOne(ctx, "things", Query{"thingId": "nope"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc := Doc{"thingId": "t1", "name": "original"}
	_, err := m.Insert(ctx, "things", doc)
	require.NoError(t, err)

	// Mutating the caller's map after insert does not leak into the store.
	doc["name"] = "mutated"
	found, err := m.FindOne(ctx, "things", Query{"thingId": "t1"})
	require.NoError(t, err)
	assert.Equal(t, "original", found["name"])

	// Mutating a read result does not leak back either.
	found["name"] = "mutated again"
	again, err := m.FindOne(ctx, "things", Query{"thingId": "t1"})
	require.NoError(t, err)
	assert.Equal(t, "original", again["name"])
}

func TestMemoryNumericQueryMatching(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "things", Doc{"thingId": "t1", "count": 3})
	require.NoError(t, err)

	// Ints survive the JSON round trip as float64; queries with int values
	// still match.
	found, err := m.FindOne(ctx, "things", Query{"count": 3})
	require.NoError(t, err)
	assert.NotNil(t, found)

	found, err = m.FindOne(ctx, "things", Query{"count": 3.0})
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestMemoryUpdateManyAndDeleteMany(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Insert(ctx, "things", Doc{"thingId": id, "group": "g1"})
		require.NoError(t, err)
	}
	_, err := m.Insert(ctx, "things", Doc{"thingId": "d", "group": "g2"})
	require.NoError(t, err)

	changed, err := m.UpdateMany(ctx, "things", Query{"group": "g1"}, Doc{"flag": true})
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	flagged, err := m.FindMany(ctx, "things", Query{"flag": true})
	require.NoError(t, err)
	assert.Len(t, flagged, 3)

	deleted, err := m.DeleteMany(ctx, "things", Query{"group": "g1"})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := m.List(ctx, "things")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "d", remaining[0]["thingId"])
}

func TestMemoryUpdateByID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Insert(ctx, "things", Doc{"thingId": "t1", "name": "before"})
	require.NoError(t, err)

	updated, err := m.UpdateByID(ctx, "things", "thingId", "t1", Doc{"name": "after"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "after", updated["name"])

	absent, err := m.UpdateByID(ctx, "things", "thingId", "nope", Doc{"name": "x"})
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestMemoryUpsertOne(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := Query{"projectId": "P1", "period": "2025-07"}

	created, err := m.UpsertOne(ctx, "revenue", key, Doc{"amount": 500.0}, Doc{"recordId": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "r1", created["recordId"])
	assert.Equal(t, 500.0, created["amount"])

	// Second upsert patches in place; create defaults do not reapply.
	updated, err := m.UpsertOne(ctx, "revenue", key, Doc{"amount": 750.0}, Doc{"recordId": "r2"})
	require.NoError(t, err)
	assert.Equal(t, "r1", updated["recordId"])
	assert.Equal(t, 750.0, updated["amount"])

	all, err := m.List(ctx, "revenue")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type widget struct {
		WidgetID string  `json:"widgetId"`
		Weight   float64 `json:"weight"`
	}

	doc, err := Encode(widget{WidgetID: "w1", Weight: 2.5})
	require.NoError(t, err)
	assert.Equal(t, "w1", doc["widgetId"])

	var out widget
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, widget{WidgetID: "w1", Weight: 2.5}, out)

	many, err := DecodeAll[widget]([]Doc{doc, doc})
	require.NoError(t, err)
	assert.Len(t, many, 2)
}
