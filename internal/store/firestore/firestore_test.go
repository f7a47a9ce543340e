package firestore

import (
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/developerashishcanada/carpoolreact/internal/store"
)

func TestCollectionPath(t *testing.T) {
	assert.Equal(t, "artifacts/app-1/public/data/rides", CollectionPath("app-1", store.CollectionRides))
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(status.Error(codes.NotFound, "missing"), "rides", "r1"), store.ErrNotFound)

	boom := errors.New("boom")
	err := translate(boom, "rides", "r1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestUpdates(t *testing.T) {
	got := updates(store.Data{"status": "completed"})
	assert.Equal(t, []firestore.Update{{Path: "status", Value: "completed"}}, got)
}
