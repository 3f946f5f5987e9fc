// client/client.go
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fixity/internal/archive"
	"fixity/internal/check"
	"fixity/internal/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// hashing a large tree server-side can take a while
			Timeout: time.Minute * 5,
		},
	}
}

// Check asks the server to compare root with the latest baseline archived
// under name and returns the stored report.
func (c *Client) Check(name, root string, excludes []string) (*archive.ReportRecord, error) {
	data, err := json.Marshal(check.Request{Name: name, Root: root, Excludes: excludes})
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(
		fmt.Sprintf("%s/api/checks", c.baseURL),
		"application/json",
		bytes.NewBuffer(data),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}

	var result archive.ReportRecord
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) GetReport(id string) (*archive.ReportRecord, error) {
	var result archive.ReportRecord
	if err := c.get(fmt.Sprintf("%s/api/reports/%s", c.baseURL, url.PathEscape(id)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListBaselines() ([]*archive.SnapshotRecord, error) {
	var records []*archive.SnapshotRecord
	if err := c.get(fmt.Sprintf("%s/api/baselines", c.baseURL), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) get(u string, v any) error {
	resp, err := c.httpClient.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// decodeError returns the server's *errors.Error when the body carries one.
func decodeError(resp *http.Response) error {
	var e errors.Error
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if e.Code == 0 {
		e.Code = resp.StatusCode
	}
	return &e
}
