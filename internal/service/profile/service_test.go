package profile_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campusknot/internal/db"
	svcErr "github.com/oggyb/campusknot/internal/errors"
	"github.com/oggyb/campusknot/internal/service/profile"
	"github.com/oggyb/campusknot/internal/storage"
	"github.com/oggyb/campusknot/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestSanitize_NeverNilLists(t *testing.T) {
	p := profile.Sanitize(&db.User{ID: 1, Name: "A", PasswordHash: "hash"})
	require.NotNil(t, p)
	assert.NotNil(t, p.Interests)
	assert.NotNil(t, p.GreenFlags)
	assert.NotNil(t, p.RedFlags)
	assert.Nil(t, profile.Sanitize(nil))
}

func TestGet_UnknownUser(t *testing.T) {
	appCtx, _ := testutil.NewAppContext(t)
	svc := profile.NewProfileService(appCtx)

	_, err := svc.Get(context.Background(), 404)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}

func TestUpdate_PartialEdit(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := profile.NewProfileService(appCtx)
	u := testutil.CreateUser(t, appCtx, "Asha", "female", "Music")

	got, err := svc.Update(ctx, u.ID, profile.UpdateInput{
		Bio:       ptr("  coffee and code  "),
		ShowMe:    ptr(db.ShowMale),
		Interests: &[]string{"Art", " ", "Chess"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name, "untouched field")
	assert.Equal(t, "coffee and code", got.Bio)
	assert.Equal(t, db.ShowMale, got.ShowMe)
	assert.Equal(t, []string{"Art", "Chess"}, got.Interests)
}

func TestUpdate_Validation(t *testing.T) {
	appCtx, _ := testutil.NewAppContext(t)
	svc := profile.NewProfileService(appCtx)
	u := testutil.CreateUser(t, appCtx, "Ravi", "male")

	cases := map[string]profile.UpdateInput{
		"blank name":  {Name: ptr("   ")},
		"long name":   {Name: ptr(strings.Repeat("n", 101))},
		"long bio":    {Bio: ptr(strings.Repeat("b", 501))},
		"bad show_me": {ShowMe: ptr("everyone")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), u.ID, in)
			assert.True(t, svcErr.Is(err, svcErr.KindInvalidInput), "got %v", err)
		})
	}
}

func TestUploadPhoto(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := profile.NewProfileService(appCtx)
	u := testutil.CreateUser(t, appCtx, "Meera", "female")

	url, err := svc.UploadPhoto(ctx, u.ID, storage.Upload{
		Body:        strings.NewReader("png-bytes"),
		Size:        9,
		ContentType: "image/png",
		Filename:    "me.png",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/photos/"), url)

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, url, got.Photo)
}

func TestUploadPhoto_RejectsGIF(t *testing.T) {
	appCtx, _ := testutil.NewAppContext(t)
	svc := profile.NewProfileService(appCtx)
	u := testutil.CreateUser(t, appCtx, "Kiran", "male")

	_, err := svc.UploadPhoto(context.Background(), u.ID, storage.Upload{
		Body:        strings.NewReader("gif"),
		Size:        3,
		ContentType: "image/gif",
		Filename:    "a.gif",
	})
	assert.True(t, svcErr.Is(err, svcErr.KindInvalidInput))
}
