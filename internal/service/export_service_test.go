package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/export"
)

func TestExportServiceItemsCSV(t *testing.T) {
	items := newFakeItems()
	price := 19.5
	notes := "gift"
	shirt := casual(models.SlotShirt, red)
	shirt.Price = &price
	shirt.Notes = &notes
	shirt.Tags = []string{"summer", "linen"}
	items.put(shirt)
	items.put(casual(models.SlotShoes, black))
	items.put(models.ClothingItem{UserID: bob.UserID, Slot: models.SlotPants})

	svc := NewExportService(items, newFakeOutfits(items), newTestStorage(t), export.NewCSVExporter(), export.NewPDFExporter(), zap.NewNop())
	data, err := svc.ItemsCSV(context.Background(), alice)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, itemColumns, records[0])
	assert.Equal(t, "shirt", records[1][1])
	assert.Equal(t, "255,0,0", records[1][2])
	assert.Equal(t, "#ff0000", records[1][3])
	assert.Equal(t, "summer;linen", records[1][7])
	assert.Equal(t, "19.50", records[1][9])
	assert.Equal(t, "gift", records[1][10])
	assert.Equal(t, "", records[2][9])
}

func TestExportServiceLookbook(t *testing.T) {
	f := newOutfitFixture(t)
	saved, err := f.svc.SaveOutfit(context.Background(), alice, f.request(""))
	require.NoError(t, err)
	require.NotEmpty(t, saved.OutfitID)

	svc := NewExportService(f.items, f.outfits, f.store, export.NewCSVExporter(), export.NewPDFExporter(), nil)
	data, err := svc.Lookbook(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	empty, err := svc.Lookbook(context.Background(), bob)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF")))
}
