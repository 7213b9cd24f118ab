package filestore

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ihub/core"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir, "/media/")

	url, err := store.Save(ctx, "project_screenshots/a.txt", strings.NewReader("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, "/media/project_screenshots/a.txt", url)

	content, err := os.ReadFile(filepath.Join(dir, "project_screenshots", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	t.Run("keys cannot escape the directory", func(t *testing.T) {
		url, err := store.Save(ctx, "../../etc/x.txt", strings.NewReader("x"), "")
		require.NoError(t, err)
		assert.Equal(t, "/media/etc/x.txt", url)
		assert.FileExists(t, filepath.Join(dir, "etc", "x.txt"))
	})

	require.NoError(t, store.Delete(ctx, url))
	assert.NoFileExists(t, filepath.Join(dir, "project_screenshots", "a.txt"))
	assert.NoError(t, store.Delete(ctx, url), "deleting twice")
	assert.NoError(t, store.Delete(ctx, "https://elsewhere.test/a.txt"), "foreign url")
}

func TestImageStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewImageStore(NewLocalStore(dir, "/media"), 1600)

	t.Run("downscales wide images", func(t *testing.T) {
		url, err := store.Save(ctx, core.NewFileKey("shots", "wide.png"), bytes.NewReader(pngBytes(t, 2000, 100)), "")
		require.NoError(t, err)

		img, err := imaging.Open(filepath.Join(dir, strings.TrimPrefix(url, "/media/")))
		require.NoError(t, err)
		assert.Equal(t, 1600, img.Bounds().Dx())
		assert.Equal(t, 80, img.Bounds().Dy())
	})

	t.Run("keeps small images", func(t *testing.T) {
		url, err := store.Save(ctx, "shots/small.png", bytes.NewReader(pngBytes(t, 300, 200)), "")
		require.NoError(t, err)

		img, err := imaging.Open(filepath.Join(dir, "shots", "small.png"))
		require.NoError(t, err)
		assert.Equal(t, 300, img.Bounds().Dx())
		assert.NoError(t, store.Delete(ctx, url))
	})

	t.Run("rejects non images", func(t *testing.T) {
		_, err := store.Save(ctx, "shots/doc.png", strings.NewReader("not an image"), "")
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "file", verr.Fields[0].Field)

		_, err = store.Save(ctx, "shots/doc.pdf", bytes.NewReader(pngBytes(t, 10, 10)), "")
		require.ErrorAs(t, err, &verr)
	})
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := newS3Store(fake, "ihub", "/media/", "https://cdn.test/")

	url, err := store.Save(ctx, "avatars/me.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/media/avatars/me.png", url)
	assert.Equal(t, []byte("png"), fake.objects["media/avatars/me.png"])
	assert.Equal(t, "image/png", fake.types["media/avatars/me.png"])

	require.NoError(t, store.Delete(ctx, url))
	assert.Empty(t, fake.objects)
	assert.NoError(t, store.Delete(ctx, "/local/file.png"))
}
