// Package remote implements the hosted row-store contract over its REST interface.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kantongapp/kantong/internal/model"
)

const (
	transactionsTable = "transactions"
	categoriesTable   = "categories"

	dateLayout = "2006-01-02"
)

// Client talks to a PostgREST-compatible endpoint (the wire protocol of the
// hosted relational service the app syncs against).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a client for the given REST base URL and API key.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Wire row types. The REST store keeps dates as bare calendar strings and
// timestamps in RFC 3339.
type transactionRow struct {
	CategoryID *string `json:"category_id"`
	Note       *string `json:"note"`
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Kind       string  `json:"kind"`
	Date       string  `json:"date"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at,omitempty"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
	Amount     int64   `json:"amount"`
}

type categoryRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// InsertTransaction inserts a row with the client-chosen identifier, forcing
// the status to confirmed.
func (c *Client) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	row := transactionToRow(txn)
	row.Status = string(model.StatusSuccess)
	return c.do(ctx, http.MethodPost, transactionsTable, nil, []transactionRow{row}, nil)
}

// UpdateTransaction updates the row's mutable fields by identifier and
// refreshes its update timestamp.
func (c *Client) UpdateTransaction(ctx context.Context, txn model.Transaction) error {
	patch := map[string]any{
		"category_id": txn.CategoryID,
		"amount":      txn.Amount,
		"kind":        string(txn.Kind),
		"date":        txn.Date.Format(dateLayout),
		"note":        txn.Note,
		"updated_at":  time.Now().UTC().Format(time.RFC3339),
	}
	filter := url.Values{"id": []string{"eq." + txn.ID}}
	return c.do(ctx, http.MethodPatch, transactionsTable, filter, patch, nil)
}

// DeleteTransaction deletes the row by identifier.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	filter := url.Values{"id": []string{"eq." + id}}
	return c.do(ctx, http.MethodDelete, transactionsTable, filter, nil, nil)
}

// ListTransactions returns one page of a user's transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, error) {
	query := url.Values{
		"select":  []string{"*"},
		"user_id": []string{"eq." + userID},
		"order":   []string{"date.desc,created_at.desc"},
		"limit":   []string{strconv.Itoa(limit)},
		"offset":  []string{strconv.Itoa(offset)},
	}

	var rows []transactionRow
	if err := c.do(ctx, http.MethodGet, transactionsTable, query, nil, &rows); err != nil {
		return nil, err
	}

	txns := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		txn, err := rowToTransaction(row)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// InsertCategory inserts a row with the client-chosen identifier.
func (c *Client) InsertCategory(ctx context.Context, cat model.Category) error {
	return c.do(ctx, http.MethodPost, categoriesTable, nil, []categoryRow{categoryToRow(cat)}, nil)
}

// UpdateCategory updates the row by identifier and refreshes its update
// timestamp.
func (c *Client) UpdateCategory(ctx context.Context, cat model.Category) error {
	patch := map[string]any{
		"name":       cat.Name,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	filter := url.Values{"id": []string{"eq." + cat.ID}}
	return c.do(ctx, http.MethodPatch, categoriesTable, filter, patch, nil)
}

// DeleteCategory deletes the row by identifier.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	filter := url.Values{"id": []string{"eq." + id}}
	return c.do(ctx, http.MethodDelete, categoriesTable, filter, nil, nil)
}

// ListCategories returns all of a user's categories.
func (c *Client) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	query := url.Values{
		"select":  []string{"*"},
		"user_id": []string{"eq." + userID},
		"order":   []string{"name.asc"},
	}

	var rows []categoryRow
	if err := c.do(ctx, http.MethodGet, categoriesTable, query, nil, &rows); err != nil {
		return nil, err
	}

	cats := make([]model.Category, 0, len(rows))
	for _, row := range rows {
		cat, err := rowToCategory(row)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// do performs one REST call. All non-2xx responses are returned as errors; the
// sync engine treats every failure the same, so no classification happens here.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body, out any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", table, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", table, err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if out == nil {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, table, resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", table, err)
		}
	}

	return nil
}

func transactionToRow(txn model.Transaction) transactionRow {
	return transactionRow{
		ID:         txn.ID,
		UserID:     txn.UserID,
		CategoryID: txn.CategoryID,
		Amount:     txn.Amount,
		Kind:       string(txn.Kind),
		Date:       txn.Date.Format(dateLayout),
		Note:       txn.Note,
		Status:     string(txn.Status),
		CreatedAt:  txn.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  txn.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func rowToTransaction(row transactionRow) (model.Transaction, error) {
	date, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid date %q for transaction %s: %w", row.Date, row.ID, err)
	}

	txn := model.Transaction{
		ID:         row.ID,
		UserID:     row.UserID,
		CategoryID: row.CategoryID,
		Amount:     row.Amount,
		Kind:       model.TransactionKind(row.Kind),
		Date:       date,
		Note:       row.Note,
		Status:     model.SyncStatus(row.Status),
	}
	txn.CreatedAt = parseTimestamp(row.CreatedAt)
	txn.UpdatedAt = parseTimestamp(row.UpdatedAt)
	return txn, nil
}

func categoryToRow(cat model.Category) categoryRow {
	return categoryRow{
		ID:        cat.ID,
		UserID:    cat.UserID,
		Name:      cat.Name,
		CreatedAt: cat.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: cat.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func rowToCategory(row categoryRow) (model.Category, error) {
	return model.Category{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		CreatedAt: parseTimestamp(row.CreatedAt),
		UpdatedAt: parseTimestamp(row.UpdatedAt),
	}, nil
}

// parseTimestamp tolerates the fractional-second variants the service emits.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
