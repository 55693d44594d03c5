// client/client.go
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trix/internal/api"
	trixerrors "trix/internal/errors"
)

// Client reads history from a running trix API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

func (c *Client) Health() error {
	resp, err := c.httpClient.Get(fmt.Sprintf("%s/health", c.baseURL))
	if err != nil {
		return trixerrors.IOFailure("health check failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Log returns up to limit commits, newest first. A zero limit uses the
// server default.
func (c *Client) Log(limit int) ([]api.CommitView, error) {
	target := fmt.Sprintf("%s/api/log", c.baseURL)
	if limit > 0 {
		target += "?limit=" + strconv.Itoa(limit)
	}

	var commits []api.CommitView
	if err := c.getJSON(target, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// Commit returns the classified report for a commit reference.
func (c *Client) Commit(ref string) (*api.ReportView, error) {
	var report api.ReportView
	target := fmt.Sprintf("%s/api/commits/%s", c.baseURL, url.PathEscape(ref))
	if err := c.getJSON(target, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Object returns raw object bytes.
func (c *Client) Object(ref string) ([]byte, error) {
	resp, err := c.httpClient.Get(fmt.Sprintf("%s/api/objects/%s", c.baseURL, url.PathEscape(ref)))
	if err != nil {
		return nil, trixerrors.IOFailure("fetching object", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, trixerrors.IOFailure("reading object body", err)
	}
	return data, nil
}

func (c *Client) getJSON(target string, v interface{}) error {
	resp, err := c.httpClient.Get(target)
	if err != nil {
		return trixerrors.IOFailure("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return trixerrors.CorruptData("decoding response", err)
	}
	return nil
}

// decodeError rebuilds the server's typed error so errors.Is works on the
// client side. Bodies without a type fall back to the status code.
func decodeError(resp *http.Response) error {
	var body api.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		body.Error.Message = fmt.Sprintf("unexpected status: %s", resp.Status)
	}

	typ := body.Error.Type
	if typ == "" {
		typ = typeForStatus(resp.StatusCode)
	}
	return &trixerrors.Error{
		Type:    typ,
		Message: body.Error.Message,
		Code:    resp.StatusCode,
	}
}

func typeForStatus(status int) trixerrors.ErrorType {
	switch status {
	case http.StatusNotFound:
		return trixerrors.ErrorTypeNotFound
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return trixerrors.ErrorTypeValidation
	case http.StatusConflict:
		return trixerrors.ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return trixerrors.ErrorTypeLocked
	default:
		return trixerrors.ErrorTypeIOFailure
	}
}
