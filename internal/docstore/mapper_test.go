package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromRecordConvertsTimestamps(t *testing.T) {
	created := time.Date(2024, 3, 9, 10, 30, 0, 123000000, time.UTC)
	visited := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	raw := Document{
		"id":            "stale",
		"name":          "Rajesh Kumar",
		"createdAt":     primitive.NewDateTimeFromTime(created),
		"lastVisitDate": visited,
		"totalDue":      400.0,
		"date":          "not-a-timestamp",
	}

	got := FromRecord("abc123", raw)

	assert.Equal(t, "abc123", got["id"])
	assert.Equal(t, "Rajesh Kumar", got["name"])
	assert.Equal(t, 400.0, got["totalDue"])
	assert.Equal(t, "2024-03-09T10:30:00.123Z", got["createdAt"])
	assert.Equal(t, "2024-03-01T00:00:00Z", got["lastVisitDate"])
	assert.Equal(t, "not-a-timestamp", got["date"], "non timestamp values pass through")
	assert.Equal(t, "stale", raw["id"], "input must not be mutated")
}

func TestFromRecordMissingTimestamps(t *testing.T) {
	got := FromRecord("f1", Document{"name": "Anil"})

	_, hasDate := got["lastVisitDate"]
	assert.False(t, hasDate)
	assert.Equal(t, "f1", got["id"])
}

func TestMapperRoundTrip(t *testing.T) {
	created := time.Date(2023, 12, 31, 23, 59, 59, 987654321, time.UTC)
	raw := Document{
		"name":      "Suresh",
		"phone":     "+919800000000",
		"createdAt": created,
		"crops":     []any{map[string]any{"id": "c1", "name": "Cotton"}},
		"totalDue":  12.5,
	}

	back := ToRecord(FromRecord("x", raw))

	require.IsType(t, time.Time{}, back["createdAt"])
	assert.True(t, created.Equal(back["createdAt"].(time.Time)))
	_, hasID := back["id"]
	assert.False(t, hasID)
	for _, field := range []string{"name", "phone", "crops", "totalDue"} {
		assert.Equal(t, raw[field], back[field], field)
	}
}

func TestDecodeOntoStruct(t *testing.T) {
	type farmer struct {
		ID            string  `bson:"id"`
		Name          string  `bson:"name"`
		TotalDue      float64 `bson:"totalDue"`
		LastVisitDate string  `bson:"lastVisitDate,omitempty"`
	}

	got, err := Decode[farmer]("f9", Document{
		"name":          "Meena",
		"totalDue":      int32(250),
		"lastVisitDate": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, farmer{ID: "f9", Name: "Meena", TotalDue: 250, LastVisitDate: "2024-01-02T03:04:05Z"}, got)
}

func TestEncodeParsesTimestampStrings(t *testing.T) {
	type visit struct {
		ID        string   `bson:"id,omitempty"`
		FarmerID  string   `bson:"farmerId"`
		Date      string   `bson:"date"`
		Images    []string `bson:"images,omitempty"`
		CreatedAt string   `bson:"createdAt,omitempty"`
	}

	doc, err := Encode(visit{ID: "ignored", FarmerID: "f1", Date: "2024-05-06", Images: []string{"a"}})
	require.NoError(t, err)

	assert.Equal(t, "f1", doc["farmerId"])
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), doc["date"])
	assert.Equal(t, []any{"a"}, doc["images"])
	assert.NotContains(t, doc, "id")
	assert.NotContains(t, doc, "createdAt")
}

func TestPrefixRange(t *testing.T) {
	r := PrefixRange("name", "Raj")
	assert.Equal(t, "name", r.Field)
	assert.Equal(t, "Raj", r.Start)
	assert.Equal(t, "Raj\uf8ff", r.End)
}
