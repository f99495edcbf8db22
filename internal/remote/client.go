// Package remote provides the client for the remote authoritative record store.
package remote

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
	"github.com/chronicle-app/chronicle/internal/logging"
	"github.com/chronicle-app/chronicle/internal/models"
)

// RecordStore is the remote store contract consumed by the engine and the
// mutation gateway. Every operation is independently failable; callers
// decide retry.
type RecordStore interface {
	// Save upserts a record keyed by its remote identity and returns the
	// remote reference.
	Save(ctx context.Context, record models.Record) (string, error)

	// FetchAll reads the full remote snapshot, optionally filtered by kind.
	// Records that fail to decode are skipped, not fatal.
	FetchAll(ctx context.Context, kind models.RecordKind) ([]models.Record, error)

	// DeleteByRef deletes a single record by remote reference.
	DeleteByRef(ctx context.Context, ref string) error

	// DeleteAllByAuthor deletes every record created by the given author.
	DeleteAllByAuthor(ctx context.Context, authorID string) error

	// SaveProfile upserts the author profile and returns the remote reference.
	SaveProfile(ctx context.Context, profile models.Profile) (string, error)

	// FetchProfile reads the profile for an author. Returns nil if none exists.
	FetchProfile(ctx context.Context, authorID string) (*models.Profile, error)

	// UserID resolves the authenticated account identity.
	UserID(ctx context.Context) (string, error)
}

// Config holds record store connection configuration.
type Config struct {
	BaseURL   string
	AccessKey string
	SecretKey string
}

// Client implements RecordStore over the store's HTTP API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Client.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Save upserts a record. The remote identity defaults to the record ID for
// records that have never been pushed, so repeated saves of the same record
// land on the same remote object.
func (c *Client) Save(ctx context.Context, record models.Record) (string, error) {
	ref := record.RemoteRef
	if ref == "" {
		ref = record.ID.String()
	}

	body, err := json.Marshal(record)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalid, "failed to encode record", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/records/"+url.PathEscape(ref), "", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError("save", resp)
	}

	return ref, nil
}

// FetchAll reads the full remote snapshot. The store returns records sorted
// by created_at descending, but the engine treats the result as a set.
func (c *Client) FetchAll(ctx context.Context, kind models.RecordKind) ([]models.Record, error) {
	query := ""
	if kind != "" {
		query = "kind=" + url.QueryEscape(string(kind))
	}

	resp, err := c.do(ctx, http.MethodGet, "/records", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("fetch", resp)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecodeFailure, "failed to parse snapshot", err)
	}

	records := make([]models.Record, 0, len(raw))
	for _, msg := range raw {
		var record models.Record
		if err := json.Unmarshal(msg, &record); err != nil {
			logging.Warn("Skipping undecodable remote record",
				map[string]interface{}{"error": err.Error()})
			continue
		}
		if record.ID == "" {
			logging.Warn("Skipping remote record without id", nil)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// DeleteByRef deletes a record by remote reference. A record that is
// already gone is not an error.
func (c *Client) DeleteByRef(ctx context.Context, ref string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/records/"+url.PathEscape(ref), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return c.statusError("delete", resp)
	}
}

// DeleteAllByAuthor deletes every record created by the given author.
func (c *Client) DeleteAllByAuthor(ctx context.Context, authorID string) error {
	query := "author_id=" + url.QueryEscape(authorID)
	resp, err := c.do(ctx, http.MethodDelete, "/records", query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.statusError("delete-by-author", resp)
	}
	return nil
}

// SaveProfile upserts the author profile.
func (c *Client) SaveProfile(ctx context.Context, profile models.Profile) (string, error) {
	ref := profile.RemoteRef
	if ref == "" {
		ref = profile.ID.String()
	}

	body, err := json.Marshal(profile)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalid, "failed to encode profile", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/profiles/"+url.PathEscape(ref), "", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError("save-profile", resp)
	}

	return ref, nil
}

// FetchProfile reads the profile for an author. Returns nil if the author
// has no profile yet.
func (c *Client) FetchProfile(ctx context.Context, authorID string) (*models.Profile, error) {
	query := "author_id=" + url.QueryEscape(authorID)
	resp, err := c.do(ctx, http.MethodGet, "/profiles", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("fetch-profile", resp)
	}

	var profiles []models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profiles); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecodeFailure, "failed to parse profile", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// UserID resolves the authenticated account identity from the store.
func (c *Client) UserID(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/account", "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError("account", resp)
	}

	var account struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return "", apperrors.Wrap(apperrors.ErrDecodeFailure, "failed to parse account", err)
	}
	if account.UserID == "" {
		return "", apperrors.New(apperrors.ErrIdentityUnresolved, "account response missing user_id")
	}
	return account.UserID, nil
}

// do builds, signs, and executes a request.
func (c *Client) do(ctx context.Context, method, path, query string, body []byte) (*http.Response, error) {
	urlStr := c.config.BaseURL + path
	if query != "" {
		urlStr += "?" + query
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to build request", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	req.Header.Set("X-Chronicle-Date", timestamp)
	req.Header.Set("Authorization", c.authorization(method, path, timestamp))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, method+" "+path+" failed", err)
	}
	return resp, nil
}

// authorization computes the HMAC-SHA256 request signature header.
func (c *Client) authorization(method, path, timestamp string) string {
	stringToSign := fmt.Sprintf("%s\n%s\n%s", method, path, timestamp)

	mac := hmac.New(sha256.New, []byte(c.config.SecretKey))
	mac.Write([]byte(stringToSign))
	signature := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("CHRONICLE-HMAC-SHA256 Credential=%s, Signature=%s",
		c.config.AccessKey, signature)
}

// statusError converts a non-success response into an AppError, draining
// the body for the message.
func (c *Client) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	code := apperrors.ErrRemoteUnavailable
	msg := fmt.Sprintf("%s failed with status %d: %s", op, resp.StatusCode, string(body))
	return apperrors.New(code, msg)
}

// TestConnection verifies the store is reachable and the credentials work.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.UserID(ctx)
	return err
}
