// Package vk is the gateway to the VK photos API: bearer-token calls,
// paginated album listing, offset-addressed saved-photo access and the
// move/delete/create mutations the sorting flow needs.
//
// Error taxonomy: quota exhaustion maps to [shared.ErrRateLimited] and is
// absorbed by [Fetcher]; rejected tokens map to [shared.ErrNotAuthenticated];
// an addressed item the server does not return maps to [shared.ErrNotFound].
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/avoronov/saved-sorter/internal/shared"
)

const (
	defaultAPIBase = "https://api.vk.com"
	apiVersion     = "5.131"

	// albumPageSize is how many albums one photos.getAlbums page requests.
	albumPageSize = 1000

	// savedAlbumID is VK's system album of saved photos.
	savedAlbumID = "saved"
)

// VK API error codes.
const (
	codeAuthFailed      = 5
	codeTooManyRequests = 6
	codeAccessDenied    = 15
)

// Album is a user-created photo album.
type Album struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Size  int    `json:"size"`
}

// Photo is one saved photo addressed by its offset in the album.
type Photo struct {
	ID        int64
	URL       string
	CreatedAt time.Time
	// Position counts from the newest photo, 1-based; shown to the user as
	// "Position of Total".
	Position int
	Total    int
}

// Service is the photo-service capability the bot handlers call.
type Service interface {
	Name(ctx context.Context, token string) (string, error)
	Albums(ctx context.Context, token string) ([]Album, error)
	SavedPhotoAt(ctx context.Context, token string, index int, newestFirst bool) (*Photo, error)
	CountSaved(ctx context.Context, token string) (int, error)
	MovePhoto(ctx context.Context, token string, photoID, targetAlbumID int64) error
	DeletePhoto(ctx context.Context, token string, photoID int64) error
	CreateAlbum(ctx context.Context, token, title string) (int64, error)
}

// Client implements Service over the VK HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	fetcher    *Fetcher
	logger     *log.Logger
}

// NewClient creates a VK API client. An empty baseURL targets api.vk.com,
// a nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, fetcher *Fetcher, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if fetcher == nil {
		fetcher = NewFetcher(0, logger)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		fetcher:    fetcher,
		logger:     logger,
	}
}

// oauthEndpoint is VK's implicit-grant authorization endpoint. The token
// comes back in the redirect fragment, so there is no token URL to exchange
// a code against.
var oauthEndpoint = oauth2.Endpoint{AuthURL: "https://oauth.vk.com/oauth/authorize"}

// AuthURL builds the implicit-grant authorization link for one sender. The
// sender id rides along on the redirect URI so the callback can be matched to
// the waiting user.
func AuthURL(appID int64, redirectBase string, senderID int64) string {
	conf := &oauth2.Config{
		ClientID:    strconv.FormatInt(appID, 10),
		Scopes:      []string{"65540"},
		RedirectURL: fmt.Sprintf("%s?sender_id=%d", redirectBase, senderID),
		Endpoint:    oauthEndpoint,
	}
	return conf.AuthCodeURL("",
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("display", "page"),
		oauth2.SetAuthURLParam("revoke", "1"))
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *apiError) toError() error {
	switch e.Code {
	case codeTooManyRequests:
		return fmt.Errorf("%w: %s", shared.ErrRateLimited, e.Message)
	case codeAuthFailed, codeAccessDenied:
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, e.Message)
	}
	return fmt.Errorf("%w: code %d: %s", shared.ErrAPIRequest, e.Code, e.Message)
}

// call performs one authenticated API method call through the fetcher, so
// quota errors are retried before the caller sees anything.
func (c *Client) call(ctx context.Context, token, method string, params url.Values, result any) error {
	if token == "" {
		return shared.ErrNotAuthenticated
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	params.Set("v", apiVersion)

	endpoint := c.baseURL + "/method/" + method

	return c.fetcher.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		var envelope struct {
			Error    *apiError       `json:"error"`
			Response json.RawMessage `json:"response"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if envelope.Error != nil {
			return envelope.Error.toError()
		}
		if result != nil {
			if err := json.Unmarshal(envelope.Response, result); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", method, err)
			}
		}
		return nil
	})
}

// Name returns the first and last name of the token owner. Doubles as the
// cheapest authentication check.
func (c *Client) Name(ctx context.Context, token string) (string, error) {
	var users []struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.call(ctx, token, "users.get", nil, &users); err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("%w: empty users.get response", shared.ErrAPIRequest)
	}
	return users[0].FirstName + " " + users[0].LastName, nil
}

// Albums lists the user's custom albums, paging until the server returns an
// empty page. System albums carry non-positive ids and are excluded.
func (c *Client) Albums(ctx context.Context, token string) ([]Album, error) {
	var all []Album
	for offset := 0; ; offset += albumPageSize {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("count", strconv.Itoa(albumPageSize))

		var page struct {
			Count int     `json:"count"`
			Items []Album `json:"items"`
		}
		if err := c.call(ctx, token, "photos.getAlbums", params, &page); err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			return all, nil
		}
		for _, album := range page.Items {
			if album.ID > 0 {
				all = append(all, album)
			}
		}
	}
}

type photoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type photoItem struct {
	ID    int64       `json:"id"`
	Date  int64       `json:"date"`
	Sizes []photoSize `json:"sizes"`
}

// savedPage fetches one photo of the saved album at the given offset together
// with the album's total count.
func (c *Client) savedPage(ctx context.Context, token string, offset int, newestFirst bool) (int, []photoItem, error) {
	params := url.Values{}
	params.Set("album_id", savedAlbumID)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("count", "1")
	params.Set("photo_sizes", "1")
	if newestFirst {
		params.Set("rev", "1")
	} else {
		params.Set("rev", "0")
	}

	var page struct {
		Count int         `json:"count"`
		Items []photoItem `json:"items"`
	}
	if err := c.call(ctx, token, "photos.get", params, &page); err != nil {
		return 0, nil, err
	}
	return page.Count, page.Items, nil
}

// SavedPhotoAt returns the saved photo at the given offset, or
// [shared.ErrNotFound] when the offset is past the end of the album.
func (c *Client) SavedPhotoAt(ctx context.Context, token string, index int, newestFirst bool) (*Photo, error) {
	count, items, err := c.savedPage(ctx, token, index, newestFirst)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no saved photo at offset %d", shared.ErrNotFound, index)
	}

	item := items[0]
	position := index + 1
	if !newestFirst {
		position = count - index
	}
	return &Photo{
		ID:        item.ID,
		URL:       pickSize(item.Sizes),
		CreatedAt: time.Unix(item.Date, 0),
		Position:  position,
		Total:     count,
	}, nil
}

// CountSaved returns the number of saved photos, taken from the total-count
// metadata of a one-item fetch.
func (c *Client) CountSaved(ctx context.Context, token string) (int, error) {
	count, _, err := c.savedPage(ctx, token, 0, true)
	return count, err
}

// MovePhoto re-files a photo into the target album.
func (c *Client) MovePhoto(ctx context.Context, token string, photoID, targetAlbumID int64) error {
	params := url.Values{}
	params.Set("photo_id", strconv.FormatInt(photoID, 10))
	params.Set("target_album_id", strconv.FormatInt(targetAlbumID, 10))
	return c.call(ctx, token, "photos.move", params, nil)
}

// DeletePhoto removes a photo.
func (c *Client) DeletePhoto(ctx context.Context, token string, photoID int64) error {
	params := url.Values{}
	params.Set("photo_id", strconv.FormatInt(photoID, 10))
	return c.call(ctx, token, "photos.delete", params, nil)
}

// CreateAlbum creates a new album and returns its id.
func (c *Client) CreateAlbum(ctx context.Context, token, title string) (int64, error) {
	params := url.Values{}
	params.Set("title", title)

	var album struct {
		ID int64 `json:"id"`
	}
	if err := c.call(ctx, token, "photos.createAlbum", params, &album); err != nil {
		return 0, err
	}
	return album.ID, nil
}

// pickSize chooses a display size: the smallest one larger than 500px on the
// photo's shorter edge, falling back to the largest available.
func pickSize(sizes []photoSize) string {
	if len(sizes) == 0 {
		return ""
	}

	sorted := make([]photoSize, len(sizes))
	copy(sorted, sizes)

	portrait := sorted[0].Width <= sorted[0].Height
	sort.Slice(sorted, func(i, j int) bool {
		if portrait {
			return sorted[i].Width < sorted[j].Width
		}
		return sorted[i].Height < sorted[j].Height
	})

	for _, s := range sorted {
		if portrait && s.Width > 500 {
			return s.URL
		}
		if !portrait && s.Height > 500 {
			return s.URL
		}
	}
	return sorted[len(sorted)-1].URL
}
