// package testing contains shared test doubles
package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/avoronov/saved-sorter/internal/shared"
	"github.com/avoronov/saved-sorter/internal/vk"
)

// MockGateway is a scriptable test double for [vk.Service]. Unset function
// fields fall back to fixed defaults.
type MockGateway struct {
	NameFunc         func(ctx context.Context, token string) (string, error)
	AlbumsFunc       func(ctx context.Context, token string) ([]vk.Album, error)
	SavedPhotoAtFunc func(ctx context.Context, token string, index int, newestFirst bool) (*vk.Photo, error)
	CountSavedFunc   func(ctx context.Context, token string) (int, error)
	MovePhotoFunc    func(ctx context.Context, token string, photoID, targetAlbumID int64) error
	DeletePhotoFunc  func(ctx context.Context, token string, photoID int64) error
	CreateAlbumFunc  func(ctx context.Context, token, title string) (int64, error)

	Moved   []MovedPhoto
	Deleted []int64
}

// MovedPhoto records one MovePhoto call.
type MovedPhoto struct {
	PhotoID int64
	AlbumID int64
}

func (m *MockGateway) Name(ctx context.Context, token string) (string, error) {
	if m.NameFunc != nil {
		return m.NameFunc(ctx, token)
	}
	return "Test User", nil
}

func (m *MockGateway) Albums(ctx context.Context, token string) ([]vk.Album, error) {
	if m.AlbumsFunc != nil {
		return m.AlbumsFunc(ctx, token)
	}
	return []vk.Album{{ID: 1, Title: "Котики"}, {ID: 2, Title: "Мемы"}}, nil
}

func (m *MockGateway) SavedPhotoAt(ctx context.Context, token string, index int, newestFirst bool) (*vk.Photo, error) {
	if m.SavedPhotoAtFunc != nil {
		return m.SavedPhotoAtFunc(ctx, token, index, newestFirst)
	}
	return &vk.Photo{
		ID:        int64(100 + index),
		URL:       fmt.Sprintf("https://example.com/photo/%d.jpg", index),
		CreatedAt: time.Unix(1600000000, 0),
		Position:  index + 1,
		Total:     10,
	}, nil
}

func (m *MockGateway) CountSaved(ctx context.Context, token string) (int, error) {
	if m.CountSavedFunc != nil {
		return m.CountSavedFunc(ctx, token)
	}
	return 10, nil
}

func (m *MockGateway) MovePhoto(ctx context.Context, token string, photoID, targetAlbumID int64) error {
	if m.MovePhotoFunc != nil {
		return m.MovePhotoFunc(ctx, token, photoID, targetAlbumID)
	}
	m.Moved = append(m.Moved, MovedPhoto{PhotoID: photoID, AlbumID: targetAlbumID})
	return nil
}

func (m *MockGateway) DeletePhoto(ctx context.Context, token string, photoID int64) error {
	if m.DeletePhotoFunc != nil {
		return m.DeletePhotoFunc(ctx, token, photoID)
	}
	m.Deleted = append(m.Deleted, photoID)
	return nil
}

func (m *MockGateway) CreateAlbum(ctx context.Context, token, title string) (int64, error) {
	if m.CreateAlbumFunc != nil {
		return m.CreateAlbumFunc(ctx, token, title)
	}
	return 42, nil
}

// UnauthorizedGateway always rejects the token, for exercising the re-auth
// path.
type UnauthorizedGateway struct {
	MockGateway
}

func (g *UnauthorizedGateway) CountSaved(ctx context.Context, token string) (int, error) {
	return 0, shared.ErrNotAuthenticated
}

func (g *UnauthorizedGateway) Albums(ctx context.Context, token string) ([]vk.Album, error) {
	return nil, shared.ErrNotAuthenticated
}
