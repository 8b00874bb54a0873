package multi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/interfaces/mock"
	"fhir-gateway/internal/models"
)

func testEntry() *models.CacheEntry {
	return &models.CacheEntry{Data: []byte(`{"resourceType":"Patient"}`), CreatedAt: time.Now(), TTL: time.Minute}
}

func TestNewMultiStore(t *testing.T) {
	logger := zap.NewNop()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	stores := []interfaces.Store{store1, store2}

	multiStore := NewMultiStore(stores, false, logger)

	assert.NotNil(t, multiStore)
	ms := multiStore.(*MultiStore)
	assert.Equal(t, 2, ms.GetStoreCount())
	assert.Equal(t, store1, ms.stores[0])
	assert.Equal(t, store2, ms.stores[1])
}

func TestMultiStore_Get_FirstStoreHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, true, zap.NewNop())

	expected := testEntry()
	store1.EXPECT().Get("test-key").Return(expected, true).Times(1)
	// store2.Get should not be called since store1 has the entry

	entry, found := multiStore.Get("test-key")

	assert.True(t, found)
	assert.Equal(t, expected, entry)
}

func TestMultiStore_Get_SecondStoreHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, false, zap.NewNop())

	expected := testEntry()
	store1.EXPECT().Get("test-key").Return(nil, false).Times(1)
	store2.EXPECT().Get("test-key").Return(expected, true).Times(1)

	entry, found := multiStore.Get("test-key")

	assert.True(t, found)
	assert.Equal(t, expected, entry)
}

func TestMultiStore_Get_SecondStoreHitPromotes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, true, zap.NewNop())

	expected := testEntry()
	gomock.InOrder(
		store1.EXPECT().Get("test-key").Return(nil, false),
		store2.EXPECT().Get("test-key").Return(expected, true),
		store1.EXPECT().Set("test-key", expected),
	)

	entry, found := multiStore.Get("test-key")

	assert.True(t, found)
	assert.Equal(t, expected, entry)
}

func TestMultiStore_Get_Miss(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, true, zap.NewNop())

	store1.EXPECT().Get("test-key").Return(nil, false)
	store2.EXPECT().Get("test-key").Return(nil, false)

	entry, found := multiStore.Get("test-key")

	assert.False(t, found)
	assert.Nil(t, entry)
}

func TestMultiStore_Get_NoStores(t *testing.T) {
	multiStore := NewMultiStore(nil, false, zap.NewNop())

	entry, found := multiStore.Get("test-key")

	assert.False(t, found)
	assert.Nil(t, entry)
	assert.Equal(t, 0, multiStore.Len())
}

func TestMultiStore_Set_AllStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, false, zap.NewNop())

	entry := testEntry()
	store1.EXPECT().Set("test-key", entry).Times(1)
	store2.EXPECT().Set("test-key", entry).Times(1)

	multiStore.Set("test-key", entry)
}

func TestMultiStore_DeleteAndClear_AllStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, false, zap.NewNop())

	store1.EXPECT().Delete("test-key")
	store2.EXPECT().Delete("test-key")
	store1.EXPECT().Clear()
	store2.EXPECT().Clear()

	multiStore.Delete("test-key")
	multiStore.Clear()
}

func TestMultiStore_PurgeSumsAndLenUsesFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store1 := mock.NewMockStore(ctrl)
	store2 := mock.NewMockStore(ctrl)
	multiStore := NewMultiStore([]interfaces.Store{store1, store2}, false, zap.NewNop())

	now := time.Now()
	store1.EXPECT().Purge(now).Return(2)
	store2.EXPECT().Purge(now).Return(3)
	store1.EXPECT().Len().Return(7)

	assert.Equal(t, 5, multiStore.Purge(now))
	assert.Equal(t, 7, multiStore.Len())
}
