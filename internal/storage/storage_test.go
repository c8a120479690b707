package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcErr "github.com/oggyb/campusknot/internal/errors"
)

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	key := ObjectKey("photos", 7, "Me.JPG")
	assert.True(t, strings.HasPrefix(key, "photos/7/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	url, err := store.Put(context.Background(), key, Upload{Body: strings.NewReader("jpegbytes"), Size: 9})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+key, url)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
}

func TestLocalStore_RejectsEscapingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../../etc/passwd", Upload{Body: strings.NewReader("x"), Size: 1})
	assert.Error(t, err)
}

func TestCheckPhoto(t *testing.T) {
	ok := Upload{Size: 100, ContentType: "image/png", Filename: "a.png"}
	assert.NoError(t, CheckPhoto(ok, 10<<20))

	for name, up := range map[string]Upload{
		"gif":     {Size: 100, ContentType: "image/gif", Filename: "a.gif"},
		"pdf":     {Size: 100, ContentType: "application/pdf", Filename: "a.pdf"},
		"too big": {Size: 11 << 20, ContentType: "image/jpeg", Filename: "a.jpg"},
		"bad ext": {Size: 100, ContentType: "image/jpeg", Filename: "a.exe"},
		"empty":   {Size: 0, ContentType: "image/jpeg", Filename: "a.jpg"},
	} {
		err := CheckPhoto(up, 10<<20)
		assert.True(t, svcErr.Is(err, svcErr.KindInvalidInput), name)
	}
}

func TestCheckAudio(t *testing.T) {
	assert.NoError(t, CheckAudio(Upload{Size: 10, ContentType: "audio/webm;codecs=opus"}, 15<<20))
	assert.Error(t, CheckAudio(Upload{Size: 10, ContentType: "text/plain"}, 15<<20))
}
