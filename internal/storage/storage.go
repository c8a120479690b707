// Package storage keeps uploaded media (profile photos, chat images, voice
// notes) and returns public references to them.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	svcErr "github.com/oggyb/campusknot/internal/errors"
)

// Upload is one file received from a client.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// Store persists an upload under key and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, up Upload) (string, error)
}

var (
	imageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/webp": true,
		"image/gif":  true,
	}
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}
)

// ObjectKey builds "<kind>/<userID>/<unix>_<uuid><ext>".
func ObjectKey(kind string, userID uint64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(kind, fmt.Sprint(userID), fmt.Sprintf("%d_%s%s", time.Now().Unix(), uuid.NewString(), ext))
}

// CheckPhoto accepts jpeg, png, and webp profile photos up to max bytes.
func CheckPhoto(up Upload, max int64) error {
	if up.ContentType == "image/gif" {
		return svcErr.InvalidInput("only jpeg, png and webp photos are allowed")
	}
	return checkImage(up, max, "only jpeg, png and webp photos are allowed")
}

// CheckImage accepts chat images up to max bytes.
func CheckImage(up Upload, max int64) error {
	return checkImage(up, max, "unsupported image type")
}

func checkImage(up Upload, max int64, msg string) error {
	if err := checkSize(up, max); err != nil {
		return err
	}
	ct := baseType(up.ContentType)
	if !imageTypes[ct] || !imageExts[strings.ToLower(filepath.Ext(up.Filename))] {
		return svcErr.InvalidInput(msg)
	}
	return nil
}

// CheckAudio accepts voice notes (any audio/* type) up to max bytes.
func CheckAudio(up Upload, max int64) error {
	if err := checkSize(up, max); err != nil {
		return err
	}
	if !strings.HasPrefix(baseType(up.ContentType), "audio/") {
		return svcErr.InvalidInput("unsupported audio type")
	}
	return nil
}

func checkSize(up Upload, max int64) error {
	if up.Size <= 0 {
		return svcErr.InvalidInput("file is empty")
	}
	if max > 0 && up.Size > max {
		return svcErr.InvalidInput(fmt.Sprintf("file exceeds %d MB", max>>20))
	}
	return nil
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
