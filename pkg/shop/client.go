package shop

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/kotrzina/flower-cart/pkg/config"
)

// Client downloads shop pages and decodes them to UTF-8.
type Client struct {
	client  http.Client
	retries int
	charset string // forced charset, empty means Content-Type decides
	logger  *logrus.Logger
}

func NewClient(profile *config.Profile, logger *logrus.Logger) *Client {
	return &Client{
		client: http.Client{
			Timeout: profile.Timeouts.Long,
		},
		retries: 3,
		charset: profile.Charset,
		logger:  logger,
	}
}

// Fetch downloads url and parses it as HTML.
func (c *Client) Fetch(ctx context.Context, url string) (*html.Node, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := ParseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("could not parse html from %s: %w", url, err)
	}

	return doc, nil
}

// Get downloads url and returns the decoded body.
// Transport errors and non 200 responses are retried.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	var (
		err  error
		resp *http.Response
	)

	for attempt := 1; attempt <= c.retries; attempt++ {
		resp, err = c.get(ctx, url)
		if err == nil {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
		}).Debugf("Could not download page: %v", err)

		if ctx.Err() != nil {
			break
		}
	}

	if err != nil {
		return "", fmt.Errorf("could not get response from %s: %w", url, err)
	}

	defer resp.Body.Close() //nolint: errcheck

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read data from %s: %w", url, err)
	}

	charset := c.charset
	if charset == "" {
		charset = charsetFromContentType(resp.Header.Get("Content-Type"))
	}

	body, err := decode(content, charset)
	if err != nil {
		return "", fmt.Errorf("could not decode %s: %w", charset, err)
	}

	return body, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", "flower-cart/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp, nil
}

func charsetFromContentType(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// decode converts content in the given charset to utf-8
// some shops still serve windows-1250 or iso-8859-1
func decode(content []byte, charset string) (string, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(content), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unknown charset: %w", err)
	}

	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", err
	}

	return string(out), nil
}
