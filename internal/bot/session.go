package bot

import (
	"github.com/avoronov/saved-sorter/internal/store"
	"github.com/avoronov/saved-sorter/internal/vk"
)

// Button labels shown on reply keyboards. The dispatcher matches inbound
// text against these literals before falling through to state-gated free
// text.
const (
	BtnStartAuth    = "Войти ВКонтакте"
	BtnStartSorting = "Начать сортировку"
	BtnSkip         = "Пропустить"
	BtnDelete       = "Удалить"
	BtnNewAlbum     = "В новый альбом"
	BtnMainMenu     = "В главное меню"
	BtnSettings     = "Настройки"
	BtnLogOut       = "Выйти из аккаунта"
)

// Sort mode labels for the settings keyboard.
const (
	LabelSortRandom  = "Случайный порядок"
	LabelSortToOlder = "От новых к старым"
	LabelSortToNewer = "От старых к новым"
)

// Command is a classified inbound message.
type Command int

const (
	CmdUnknown Command = iota
	CmdStart
	CmdStartAuth
	CmdStartSorting
	CmdSkip
	CmdDelete
	CmdNewAlbum
	CmdMainMenu
	CmdSettings
	CmdLogOut
	// Free-text commands, reached only when the text matched no button.
	CmdAlbumName
	CmdSortMode
	CmdNewAlbumName
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdStartAuth:
		return "start_auth"
	case CmdStartSorting:
		return "start_sorting"
	case CmdSkip:
		return "skip"
	case CmdDelete:
		return "delete"
	case CmdNewAlbum:
		return "new_album"
	case CmdMainMenu:
		return "main_menu"
	case CmdSettings:
		return "settings"
	case CmdLogOut:
		return "log_out"
	case CmdAlbumName:
		return "album_name"
	case CmdSortMode:
		return "sort_mode"
	case CmdNewAlbumName:
		return "new_album_name"
	}
	return "unknown"
}

// Classify maps inbound text to a command: the /start command and button
// literals first, then free text interpreted by the user's current state.
func Classify(user *store.User, text string) Command {
	switch text {
	case "/start":
		return CmdStart
	case BtnStartAuth:
		return CmdStartAuth
	case BtnStartSorting:
		return CmdStartSorting
	case BtnSkip:
		return CmdSkip
	case BtnDelete:
		return CmdDelete
	case BtnNewAlbum:
		return CmdNewAlbum
	case BtnMainMenu:
		return CmdMainMenu
	case BtnSettings:
		return CmdSettings
	case BtnLogOut:
		return CmdLogOut
	}

	switch user.State {
	case store.AwaitingAlbumName:
		return CmdAlbumName
	case store.AwaitingSortMode:
		return CmdSortMode
	case store.AwaitingNewAlbumName:
		return CmdNewAlbumName
	}
	return CmdUnknown
}

// CanRespond reports whether cmd is legal in the given state. It is a pure
// predicate: handlers must not run, and the session must not change, when it
// returns false. Every (state, command) pair is defined; anything not listed
// falls through to the uniform reject.
func CanRespond(state store.State, cmd Command) bool {
	switch cmd {
	case CmdStart:
		// /start restarts the dialog from anywhere.
		return true
	case CmdStartAuth:
		return state == store.AwaitingAuthStart
	case CmdStartSorting, CmdSettings, CmdLogOut:
		return state == store.MainMenu
	case CmdSkip, CmdDelete, CmdNewAlbum, CmdAlbumName:
		return state == store.AwaitingAlbumName
	case CmdMainMenu:
		return state == store.AwaitingAlbumName || state == store.AwaitingSortMode
	case CmdSortMode:
		return state == store.AwaitingSortMode
	case CmdNewAlbumName:
		return state == store.AwaitingNewAlbumName
	}
	return false
}

// parseSortMode maps a settings keyboard label to a sort mode.
func parseSortMode(text string) (store.SortMode, bool) {
	switch text {
	case LabelSortRandom:
		return store.SortRandom, true
	case LabelSortToOlder:
		return store.SortToOlder, true
	case LabelSortToNewer:
		return store.SortToNewer, true
	}
	return store.SortRandom, false
}

func startKeyboard() [][]string {
	return [][]string{{BtnStartAuth}}
}

func mainMenuKeyboard() [][]string {
	return [][]string{{BtnStartSorting}, {BtnSettings, BtnLogOut}}
}

func settingsKeyboard() [][]string {
	return [][]string{{LabelSortRandom}, {LabelSortToOlder}, {LabelSortToNewer}, {BtnMainMenu}}
}

// sortingKeyboard lists album titles two per row, then the control buttons.
func sortingKeyboard(albums []vk.Album) [][]string {
	var rows [][]string
	for i := 0; i < len(albums); i += 2 {
		row := []string{albums[i].Title}
		if i+1 < len(albums) {
			row = append(row, albums[i+1].Title)
		}
		rows = append(rows, row)
	}
	rows = append(rows, []string{BtnSkip, BtnDelete})
	rows = append(rows, []string{BtnNewAlbum, BtnMainMenu})
	return rows
}
