package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
)

func TestRemoveMemberReturnsPostUpdateState(t *testing.T) {
	ctx := context.Background()
	convs := New().Conversations()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	c := &models.Conversation{Users: []primitive.ObjectID{a, b}}
	require.NoError(t, convs.Create(ctx, c))

	after, err := convs.RemoveMember(ctx, c.ID, a)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{b}, after.Users)

	_, err = convs.RemoveMember(ctx, c.ID, a)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, convs.DeleteIfEmpty(ctx, c.ID), repository.ErrNotFound)
	_, err = convs.RemoveMember(ctx, c.ID, b)
	require.NoError(t, err)
	require.NoError(t, convs.DeleteIfEmpty(ctx, c.ID))
	_, ok := convs.Get(c.ID)
	assert.False(t, ok)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	convs := New().Conversations()
	a := primitive.NewObjectID()
	c := &models.Conversation{Users: []primitive.ObjectID{a}}
	require.NoError(t, convs.Create(ctx, c))

	got, err := convs.FindForMember(ctx, c.ID, a)
	require.NoError(t, err)
	got.Users[0] = primitive.NewObjectID()

	again, err := convs.FindForMember(ctx, c.ID, a)
	require.NoError(t, err)
	assert.Equal(t, a, again.Users[0])
}

func TestUserSearchIsLiteralAndCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	users := New().Users()
	for i, name := range []string{"Alice", "alina", "Bob", "a.b"} {
		require.NoError(t, users.Create(ctx, &models.User{Name: name, PhoneNumber: string(rune('0' + i))}))
	}

	got, err := users.SearchByName(ctx, "AL", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = users.SearchByName(ctx, ".", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.b", got[0].Name)

	err = users.Create(ctx, &models.User{Name: "dup", PhoneNumber: "0"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}
