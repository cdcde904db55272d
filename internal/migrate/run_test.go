package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_SortedAndEmbedded(t *testing.T) {
	files, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_create_users.sql", files[0])
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
}

func TestUsersMigration_NamesMatchErrorMapping(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/0001_create_users.sql")
	require.NoError(t, err)
	sql := string(data)
	// internal/errors maps these constraint names back to field names.
	for _, name := range []string{"users_pkey", "users_provider_subject_key", "users_role_check", "users_email_lower_idx"} {
		assert.True(t, strings.Contains(sql, name), name)
	}
}
