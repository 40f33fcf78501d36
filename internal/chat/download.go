package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// maxDownloadBytes caps a single downloaded attachment.
const maxDownloadBytes = 20 << 20

// Download fetches rawURL into destPath. Extra headers (for example a bearer
// token) are added to the request. A partially written file is removed on
// error. Returned errors never contain rawURL, which may embed a credential
// (Telegram file URLs carry the bot token).
func Download(ctx context.Context, client *http.Client, rawURL, destPath string, header http.Header) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("chat: download: %w", RedactURL(err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("chat: download: %w", RedactURL(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat: download: unexpected status %s", resp.Status)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("chat: download: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxDownloadBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxDownloadBytes {
		err = fmt.Errorf("attachment exceeds %d bytes", maxDownloadBytes)
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("chat: download: %w", err)
	}
	return nil
}

// RedactURL drops the request URL from a *url.Error, keeping the operation
// and the underlying cause. Bot APIs that put the token in the URL path
// (Telegram) pass their client errors through it before logging.
func RedactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s request: %w", ue.Op, ue.Err)
	}
	return err
}
