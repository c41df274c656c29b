// Package store persists per-user bot sessions: the current dialog state,
// the captured VK token, the sorting mode and the photo cursor.
//
// Two backends implement [Store]: a JSON file keyed by sender id that is
// rewritten wholesale on every change, and a SQLite table. Both hand out
// copies; callers mutate a record and persist it back with Put.
package store

// State is the dialog position of a user. It gates which inbound commands
// are accepted.
type State int

const (
	AwaitingStart State = iota
	AwaitingAuthStart
	MainMenu
	AwaitingAlbumName
	AwaitingSortMode
	AwaitingNewAlbumName
)

func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting_start"
	case AwaitingAuthStart:
		return "awaiting_auth_start"
	case MainMenu:
		return "main_menu"
	case AwaitingAlbumName:
		return "awaiting_album_name"
	case AwaitingSortMode:
		return "awaiting_sort_mode"
	case AwaitingNewAlbumName:
		return "awaiting_new_album_name"
	}
	return "unknown"
}

// SortMode selects the order photos are presented in.
type SortMode int

const (
	SortRandom SortMode = iota
	SortToOlder
	SortToNewer
)

func (m SortMode) String() string {
	switch m {
	case SortRandom:
		return "random"
	case SortToOlder:
		return "to_older"
	case SortToNewer:
		return "to_newer"
	}
	return "unknown"
}

// User is one persisted session record.
type User struct {
	SenderID   int64    `json:"sender_id"`
	Token      string   `json:"token"`
	SortMode   SortMode `json:"sort_mode"`
	PhotoIndex int      `json:"photo_index"`
	State      State    `json:"state"`
}

// Authorized reports whether the user holds a VK token.
func (u *User) Authorized() bool {
	return u.Token != ""
}

// NewUser returns the default record created on first contact.
func NewUser(senderID int64) *User {
	return &User{SenderID: senderID, State: AwaitingStart, SortMode: SortRandom}
}

// Store is the user record persistence contract. Get creates a default
// record when none exists yet; it never fails with "not found".
type Store interface {
	Get(senderID int64) (*User, error)
	Put(user *User) error
	Remove(senderID int64) error
	Close() error
}
