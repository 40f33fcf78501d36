// Package drive uploads report photos to a Google Drive folder and shares
// them by link.
package drive

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// filesAPI abstracts the Drive calls we use, enabling test mocks.
type filesAPI interface {
	Create(ctx context.Context, name, folderID string, media io.Reader) (*drive.File, error)
	ShareWithAnyone(ctx context.Context, fileID string) error
}

// serviceFiles implements filesAPI on the Drive v3 client.
type serviceFiles struct {
	svc *drive.Service
}

func (s *serviceFiles) Create(ctx context.Context, name, folderID string, media io.Reader) (*drive.File, error) {
	meta := &drive.File{Name: name}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}
	return s.svc.Files.Create(meta).
		Media(media, googleapi.ContentType("image/jpeg")).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

func (s *serviceFiles) ShareWithAnyone(ctx context.Context, fileID string) error {
	_, err := s.svc.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return err
}

// Uploader stores photos in one Drive folder.
type Uploader struct {
	files    filesAPI
	folderID string
}

// UploaderOpts holds parameters for creating an Uploader.
type UploaderOpts struct {
	Service  *drive.Service
	FolderID string
	// For testing: inject a mock instead of the Drive API.
	Files filesAPI
}

// New creates an Uploader.
func New(opts UploaderOpts) (*Uploader, error) {
	files := opts.Files
	if files == nil {
		if opts.Service == nil {
			return nil, fmt.Errorf("drive: service is required")
		}
		files = &serviceFiles{svc: opts.Service}
	}
	if opts.FolderID == "" {
		log.Printf("drive: no folder configured; photos go to the service account's root")
	}
	return &Uploader{files: files, folderID: opts.FolderID}, nil
}

// Upload sends the file at localPath to Drive under displayName, makes it
// readable by anyone with the link and returns that link.
func (u *Uploader) Upload(ctx context.Context, localPath, displayName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("drive: open %s: %w", localPath, err)
	}
	defer f.Close()

	created, err := u.files.Create(ctx, displayName, u.folderID, f)
	if err != nil {
		return "", fmt.Errorf("drive: upload %s: %w", displayName, err)
	}
	if err := u.files.ShareWithAnyone(ctx, created.Id); err != nil {
		return "", fmt.Errorf("drive: share %s: %w", created.Id, err)
	}
	link := created.WebViewLink
	if link == "" {
		link = fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id)
	}
	log.Printf("drive: uploaded %s (%s)", displayName, created.Id)
	return link, nil
}
