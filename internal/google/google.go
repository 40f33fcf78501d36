// Package google loads service-account credentials shared by the Sheets and
// Drive clients.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested for the service account: read/write spreadsheets and
// full Drive access. The photo folder is created by a person and shared with
// the service account, which the narrower drive.file scope cannot see.
var Scopes = []string{
	sheets.SpreadsheetsScope,
	drive.DriveScope,
}

// LoadJSON returns the service-account key. Inline JSON wins over a file
// path; with neither set it is an error.
func LoadJSON(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path == "" {
		return nil, fmt.Errorf("google: no credentials configured (set GOOGLE_CREDENTIALS_JSON or google.credentials_file)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("google: read credentials: %w", err)
	}
	return data, nil
}

// Credentials parses a service-account key into credentials for Scopes.
// Malformed JSON fails here, at startup, rather than on the first append.
func Credentials(ctx context.Context, keyJSON []byte) (*googleauth.Credentials, error) {
	creds, err := googleauth.CredentialsFromJSON(ctx, keyJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("google: parse credentials: %w", err)
	}
	return creds, nil
}

// ClientOptions returns the API client options for creds.
func ClientOptions(creds *googleauth.Credentials) []option.ClientOption {
	return []option.ClientOption{option.WithCredentials(creds)}
}

// NewSheetsService creates a Sheets API client authenticated with creds.
func NewSheetsService(ctx context.Context, creds *googleauth.Credentials) (*sheets.Service, error) {
	svc, err := sheets.NewService(ctx, ClientOptions(creds)...)
	if err != nil {
		return nil, fmt.Errorf("google: sheets client: %w", err)
	}
	return svc, nil
}

// NewDriveService creates a Drive API client authenticated with creds.
func NewDriveService(ctx context.Context, creds *googleauth.Credentials) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, ClientOptions(creds)...)
	if err != nil {
		return nil, fmt.Errorf("google: drive client: %w", err)
	}
	return svc, nil
}
