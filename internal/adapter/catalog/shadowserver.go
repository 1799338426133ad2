package catalog

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/domain"
	"github.com/hive-corporation/reportsync/internal/core/ports"
)

// requestTimeout matches the bound the upstream API wrapper applies.
const requestTimeout = 45 * time.Second

const listMethod = "reports/list"

// Client talks to the Shadowserver-style reports API: HMAC-SHA256 signed
// JSON calls for enumeration, plain downloads by remote id.
type Client struct {
	http        *ResilientClient
	baseURL     string
	downloadURL string
	apiKey      string
	secret      string
}

func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		http:        NewResilientClient(requestTimeout, DefaultResilientConfig()),
		baseURL:     cfg.BaseURL,
		downloadURL: cfg.DownloadURL,
		apiKey:      cfg.Key,
		secret:      cfg.Secret,
	}
}

type listRequest struct {
	Date    string   `json:"date"`
	Reports []string `json:"reports,omitempty"`
	Types   []string `json:"type,omitempty"`
	APIKey  string   `json:"apikey"`
}

type listItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Report    string `json:"report"`
	File      string `json:"file"`
	URL       string `json:"url"`
}

// List enumerates every report the catalog offers inside the window, one
// signed call per calendar day.
func (c *Client) List(ctx context.Context, window domain.SyncWindow, types, mailingLists []string) ([]domain.ReportDescriptor, error) {
	var descriptors []domain.ReportDescriptor
	for _, date := range window.Dates() {
		items, err := c.listDate(ctx, date, types, mailingLists)
		if err != nil {
			return nil, fmt.Errorf("failed to list reports for %s: %w", date, err)
		}
		for _, item := range items {
			descriptors = append(descriptors, domain.ReportDescriptor{
				ReportType:  item.Type,
				MailingList: item.Report,
				ReportDate:  item.Timestamp,
				RemoteID:    item.ID,
			})
		}
	}
	return descriptors, nil
}

func (c *Client) listDate(ctx context.Context, date string, types, mailingLists []string) ([]listItem, error) {
	body, err := json.Marshal(listRequest{
		Date:    date,
		Reports: mailingLists,
		Types:   types,
		APIKey:  c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+listMethod, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HMAC2", c.sign(body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog API error: status %d", resp.StatusCode)
	}

	var items []listItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return items, nil
}

// Fetch downloads one report's bytes. A 404 maps to ports.ErrReportNotFound;
// everything else non-200 is treated as transient.
func (c *Client) Fetch(ctx context.Context, d domain.ReportDescriptor) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.downloadURL+d.RemoteID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ports.ErrReportNotFound, d.RemoteID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download error for %s: status %d", d.RemoteID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", d.RemoteID, err)
	}
	return data, nil
}

// sign computes the HMAC2 header: hex SHA-256 HMAC of the exact request
// body under the shared API secret.
func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
