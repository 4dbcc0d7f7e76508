package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	objects map[string][]byte
	keys    []string
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.keys = append(m.keys, *input.Key)
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	bundle, err := Load(context.Background(), nil, "en")
	require.NoError(t, err)

	assert.Equal(t, "embedded", bundle.Source)
	assert.NotEmpty(t, bundle.Persona)
	assert.NotEmpty(t, bundle.Reference)
	assert.NotEmpty(t, bundle.FAQ["en"])
	assert.NotEmpty(t, bundle.FAQ["ar"])
	assert.Empty(t, bundle.Replies.Missing(RequiredKeys...))
	assert.Contains(t, bundle.Replies.Render(KeyOnboardingComplete, "en", map[string]string{"name": "Ahmed"}), "Ahmed")
}

func TestLoadDirOverridesSomeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PersonaFile), []byte("  custom persona \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FAQFile), []byte(`{"en":[{"key":"k","keywords":["parking"],"answer":"Free"}]}`), 0o600))

	bundle, err := Load(context.Background(), DirSource(dir), "en")
	require.NoError(t, err)

	assert.Equal(t, "custom persona", bundle.Persona)
	require.Len(t, bundle.FAQ["en"], 1)
	assert.Equal(t, "Free", bundle.FAQ["en"][0].Answer)
	assert.True(t, bundle.Replies.Has(KeyWelcomeMenu))
}

func TestLoadRejectsIncompleteReplies(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RepliesFile), []byte(`{"welcome_menu":{"en":"hi"}}`), 0o600))

	_, err := Load(context.Background(), DirSource(dir), "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing keys")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FAQFile), []byte(`{not json`), 0o600))

	_, err := Load(context.Background(), DirSource(dir), "en")
	require.Error(t, err)
}

func TestS3SourceReadsUnderPrefix(t *testing.T) {
	client := &mockS3Client{objects: map[string][]byte{
		"clinics/riyadh/system_prompt.txt": []byte("s3 persona"),
	}}
	src := NewS3Source(client, "bucket", "/clinics/riyadh/")

	bundle, err := Load(context.Background(), src, "en")
	require.NoError(t, err)
	assert.Equal(t, "s3 persona", bundle.Persona)
	assert.Contains(t, client.keys, "clinics/riyadh/replies.json")
	assert.Equal(t, "s3://bucket/clinics/riyadh", bundle.Source)

	_, err = src.ReadFile(context.Background(), "missing.txt")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := ParseS3URI("s3://catalogs/clinic-a/v2/")
	require.NoError(t, err)
	assert.Equal(t, "catalogs", bucket)
	assert.Equal(t, "clinic-a/v2", prefix)

	_, _, err = ParseS3URI("/etc/catalog")
	assert.Error(t, err)
	_, _, err = ParseS3URI("s3:///x")
	assert.Error(t, err)
}
