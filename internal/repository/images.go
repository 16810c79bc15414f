package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"catalog/internal/models"
	"catalog/internal/services/fakestore"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	imageTimeout  = 30 * time.Second
	maxImageBytes = 10 << 20
)

var errUnsupportedScheme = errors.New("image url must be http or https")

// ImageStore downloads remote product images into a local media directory and
// records them as attachments.
type ImageStore struct {
	dir        string
	httpClient *http.Client
}

func NewImageStore(dir string) *ImageStore {
	return &ImageStore{
		dir:        dir,
		httpClient: &http.Client{Timeout: imageTimeout},
	}
}

// Dir returns the media directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Attach downloads imageURL and sets it as the record's thumbnail.
func (s *ImageStore) Attach(ctx context.Context, db *gorm.DB, recordID uint, imageURL string) (*models.Attachment, error) {
	if !fakestore.IsHTTPURL(imageURL) {
		return nil, errUnsupportedScheme
	}

	tmp, mimeType, size, err := s.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	attachment := &models.Attachment{
		ID:        uuid.New().String(),
		RecordID:  recordID,
		SourceURL: imageURL,
		FileName:  fileNameFor(imageURL, mimeType),
		MimeType:  mimeType,
		Size:      size,
	}
	attachment.Path = filepath.Join(s.dir, attachment.ID+filepath.Ext(attachment.FileName))

	if err := os.Rename(tmp, attachment.Path); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attachment).Error; err != nil {
			return err
		}
		return tx.Model(&models.ContentRecord{}).
			Where("id = ?", recordID).
			Update("thumbnail_id", attachment.ID).Error
	})
	if err != nil {
		os.Remove(attachment.Path)
		return nil, fmt.Errorf("failed to attach image: %w", err)
	}

	return attachment, nil
}

// Remove deletes the stored file of an attachment. A missing file is not an error.
func (s *ImageStore) Remove(a models.Attachment) error {
	if a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *ImageStore) download(ctx context.Context, imageURL string) (string, string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", 0, fmt.Errorf("image download failed: %d", resp.StatusCode)
	}

	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		return "", "", 0, fmt.Errorf("unexpected content type %q", mimeType)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("failed to create media dir: %w", err)
	}
	f, err := os.CreateTemp(s.dir, "download-*")
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size > maxImageBytes {
		err = fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if err != nil {
		os.Remove(f.Name())
		return "", "", 0, fmt.Errorf("failed to save image: %w", err)
	}

	return f.Name(), mimeType, size, nil
}

func fileNameFor(imageURL, mimeType string) string {
	name := "image"
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	if filepath.Ext(name) == "" {
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}
