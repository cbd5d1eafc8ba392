package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsssgooo/progress/internal/config"
	"github.com/letsssgooo/progress/internal/content"
	"github.com/letsssgooo/progress/internal/storage"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer

	log, err := SetupLogger(&buf, "warn")
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	_, err = SetupLogger(&buf, "verbose")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpenStorage_Memory(t *testing.T) {
	st, closeFn, err := OpenStorage(context.Background(), &config.Config{})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &storage.MemoryStorage{}, st)
}

func TestOpenDatabase_RequiresURL(t *testing.T) {
	st, err := OpenDatabase(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, st)
}

func TestOpenContent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "content.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"courses": [{"id": "go", "title": "Go", "points": 10, "lecture_ids": ["l1"]}],
		"lectures": [{"id": "l1", "course_id": "go", "title": "Intro"}]
	}`), 0o600))

	src, err := OpenContent(&config.Config{ContentFile: file})
	require.NoError(t, err)

	course, err := src.Course(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, course.LectureIDs)

	remote, err := OpenContent(&config.Config{CMSBaseURL: "http://cms.local/api/", ContentFile: file})
	require.NoError(t, err)
	assert.IsType(t, &content.HTTPSource{}, remote)

	_, err = OpenContent(&config.Config{ContentFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}
