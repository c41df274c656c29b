package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/avoronov/saved-sorter/internal/shared"
	"github.com/avoronov/saved-sorter/internal/store"
	"github.com/avoronov/saved-sorter/internal/vk"
)

// User-facing texts, escaped once for MarkdownV2.
var (
	msgGreeting = shared.EscapeMarkdown("При помощи этого бота можно отсортировать альбом \"Сохраненные фотографии\" по альбомам.\n" +
		"Для продолжения нажмите кнопку \"" + BtnStartAuth + "\"")
	msgAuthTimeout   = shared.EscapeMarkdown("Истекло время ожидания авторизации. Отправьте /start для перезапуска бота")
	msgAuthPending   = shared.EscapeMarkdown("Авторизация уже запущена, откройте ссылку из предыдущего сообщения")
	msgUnexpected    = shared.EscapeMarkdown("Неожиданная команда. Попробуйте еще раз или отправьте /start для перезапуска бота")
	msgReauth        = shared.EscapeMarkdown("Не удалось войти ВКонтакте. Отправьте /start, чтобы авторизоваться заново")
	msgFailure       = shared.EscapeMarkdown("Что-то пошло не так. Попробуйте еще раз")
	msgMainMenu      = shared.EscapeMarkdown("Главное меню")
	msgPickSortMode  = shared.EscapeMarkdown("Выберите порядок показа фотографий")
	msgSortModeSet   = shared.EscapeMarkdown("Порядок сортировки сохранен")
	msgUnknownMode   = shared.EscapeMarkdown("Выберите один из режимов на клавиатуре")
	msgLoggedOut     = shared.EscapeMarkdown("Вы вышли из аккаунта. Отправьте /start, чтобы начать заново")
	msgAlbumPrompt   = shared.EscapeMarkdown("Отправьте название нового альбома")
	msgNoSavedPhotos = shared.EscapeMarkdown("В альбоме \"Сохраненные фотографии\" нет фотографий")
	msgAlbumMissing  = shared.EscapeMarkdown("Такого альбома нет. Выберите альбом кнопкой или создайте новый")
)

// handleStart resets the dialog and greets the user. The stored token is
// cleared so an unauthenticated state never carries a credential.
func (b *Bot) handleStart(user *store.User) error {
	user.Token = ""
	user.PhotoIndex = 0
	user.State = store.AwaitingAuthStart
	b.sendKeyboard(user.SenderID, msgGreeting, startKeyboard())
	return nil
}

// handleStartAuth sends the OAuth link and blocks this user's worker until
// the token is captured, the wait times out or the process shuts down.
func (b *Bot) handleStartAuth(ctx context.Context, user *store.User) error {
	link := vk.AuthURL(b.appID, b.authBase, user.SenderID)
	linkText := shared.EscapeMarkdown("Чтобы войти ВКонтакте, нажмите ") +
		"[сюда](" + shared.EscapeMarkdown(link) + ")"
	b.send(user.SenderID, linkText)

	token, err := b.auth.WaitForAuth(ctx, user.SenderID, b.authTimeout)
	if errors.Is(err, shared.ErrTimeout) {
		user.State = store.AwaitingStart
		b.send(user.SenderID, msgAuthTimeout)
		return nil
	}
	if errors.Is(err, shared.ErrAuthPending) {
		b.send(user.SenderID, msgAuthPending)
		return nil
	}
	if err != nil {
		return err
	}

	user.Token = token
	user.State = store.MainMenu

	greeting := "Успешная авторизация!"
	if name, err := b.gateway.Name(ctx, token); err == nil {
		greeting = "Успешная авторизация, " + name + "!"
	}
	b.sendKeyboard(user.SenderID, shared.EscapeMarkdown(greeting), mainMenuKeyboard())
	return nil
}

func (b *Bot) handleStartSorting(ctx context.Context, user *store.User) error {
	user.State = store.AwaitingAlbumName
	return b.sendCurrentPhoto(ctx, user)
}

// handleSkip advances the cursor past the current photo.
func (b *Bot) handleSkip(ctx context.Context, user *store.User) error {
	user.PhotoIndex++
	return b.sendCurrentPhoto(ctx, user)
}

// handleDelete removes the current photo. The cursor stays put: the next
// photo shifts into the freed position.
func (b *Bot) handleDelete(ctx context.Context, user *store.User) error {
	photo, err := b.currentPhoto(ctx, user)
	if err != nil {
		return err
	}
	if err := b.gateway.DeletePhoto(ctx, user.Token, photo.ID); err != nil {
		return err
	}
	return b.sendCurrentPhoto(ctx, user)
}

// handleAlbumName moves the current photo into the album named by the user.
func (b *Bot) handleAlbumName(ctx context.Context, user *store.User, title string) error {
	albums, err := b.gateway.Albums(ctx, user.Token)
	if err != nil {
		return err
	}

	var target *vk.Album
	for i := range albums {
		if strings.EqualFold(albums[i].Title, title) {
			target = &albums[i]
			break
		}
	}
	if target == nil {
		b.send(user.SenderID, msgAlbumMissing)
		return nil
	}

	photo, err := b.currentPhoto(ctx, user)
	if err != nil {
		return err
	}
	if err := b.gateway.MovePhoto(ctx, user.Token, photo.ID, target.ID); err != nil {
		return err
	}
	return b.sendCurrentPhoto(ctx, user)
}

func (b *Bot) handleNewAlbum(user *store.User) error {
	user.State = store.AwaitingNewAlbumName
	b.sendKeyboard(user.SenderID, msgAlbumPrompt, nil)
	return nil
}

// handleNewAlbumName creates the album and files the current photo into it.
func (b *Bot) handleNewAlbumName(ctx context.Context, user *store.User, title string) error {
	albumID, err := b.gateway.CreateAlbum(ctx, user.Token, title)
	if err != nil {
		return err
	}

	photo, err := b.currentPhoto(ctx, user)
	if err != nil {
		return err
	}
	if err := b.gateway.MovePhoto(ctx, user.Token, photo.ID, albumID); err != nil {
		return err
	}

	user.State = store.AwaitingAlbumName
	return b.sendCurrentPhoto(ctx, user)
}

func (b *Bot) handleMainMenu(user *store.User) error {
	user.State = store.MainMenu
	b.sendKeyboard(user.SenderID, msgMainMenu, mainMenuKeyboard())
	return nil
}

func (b *Bot) handleSettings(user *store.User) error {
	user.State = store.AwaitingSortMode
	b.sendKeyboard(user.SenderID, msgPickSortMode, settingsKeyboard())
	return nil
}

func (b *Bot) handleSortMode(user *store.User, text string) error {
	mode, ok := parseSortMode(text)
	if !ok {
		b.send(user.SenderID, msgUnknownMode)
		return nil
	}

	user.SortMode = mode
	user.PhotoIndex = 0
	user.State = store.MainMenu
	b.sendKeyboard(user.SenderID, msgSortModeSet, mainMenuKeyboard())
	return nil
}

func (b *Bot) handleLogOut(user *store.User) error {
	user.Token = ""
	user.PhotoIndex = 0
	user.State = store.AwaitingStart
	b.sendKeyboard(user.SenderID, msgLoggedOut, nil)
	return nil
}

// currentPhoto resolves the user's cursor to a concrete saved photo, fixing
// a random-mode cursor and clamping an out-of-range one first.
func (b *Bot) currentPhoto(ctx context.Context, user *store.User) (*vk.Photo, error) {
	count, err := b.gateway.CountSaved(ctx, user.Token)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: saved album is empty", shared.ErrNotFound)
	}

	if user.SortMode == store.SortRandom {
		user.PhotoIndex = rand.IntN(count)
	}
	if user.PhotoIndex < 0 {
		user.PhotoIndex = 0
	}
	if user.PhotoIndex >= count {
		user.PhotoIndex = count - 1
	}

	newestFirst := user.SortMode != store.SortToNewer
	return b.gateway.SavedPhotoAt(ctx, user.Token, user.PhotoIndex, newestFirst)
}

// sendCurrentPhoto shows the photo under the cursor with the album keyboard.
// An empty saved album drops the user back into the main menu.
func (b *Bot) sendCurrentPhoto(ctx context.Context, user *store.User) error {
	photo, err := b.currentPhoto(ctx, user)
	if errors.Is(err, shared.ErrNotFound) {
		user.State = store.MainMenu
		b.sendKeyboard(user.SenderID, msgNoSavedPhotos, mainMenuKeyboard())
		return nil
	}
	if err != nil {
		return err
	}

	albums, err := b.gateway.Albums(ctx, user.Token)
	if err != nil {
		return err
	}

	caption := shared.EscapeMarkdown(fmt.Sprintf("%d из %d", photo.Position, photo.Total))
	if err := b.transport.SendPhoto(user.SenderID, photo.URL, caption, sortingKeyboard(albums)); err != nil {
		b.logger.Error("failed to send photo", "sender_id", user.SenderID, "error", err)
	}
	return nil
}
