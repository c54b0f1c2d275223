package crops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/repository/memory"
)

func TestEnsureCreatesOnDemand(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil)

	first, err := svc.Ensure(ctx, models.CropRef{Name: "  Cotton "}, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "Cotton", first.Name)

	second, err := svc.Ensure(ctx, models.CropRef{Name: "Cotton"}, "u2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "existing crop is reused")

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].CreatedBy)
	assert.NotEmpty(t, all[0].CreatedAt)
}

func TestEnsureKeepsExplicitID(t *testing.T) {
	svc := NewService(memory.NewStore(), nil)
	ref, err := svc.Ensure(context.Background(), models.CropRef{ID: "c9", Name: "Wheat"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.CropRef{ID: "c9", Name: "Wheat"}, ref)
}

func TestEnsureRejectsEmpty(t *testing.T) {
	svc := NewService(memory.NewStore(), nil)
	_, err := svc.Ensure(context.Background(), models.CropRef{Name: " "}, "u1")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGetAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil)

	id, err := svc.Create(ctx, "Soybean", "u1")
	require.NoError(t, err)

	crop, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, crop)
	assert.Equal(t, "Soybean", crop.Name)
	assert.Equal(t, models.CropRef{ID: id, Name: "Soybean"}, crop.Ref())

	require.NoError(t, svc.Delete(ctx, id))
	require.NoError(t, svc.Delete(ctx, id))

	crop, err = svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, crop)
}
