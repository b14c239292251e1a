package queryConfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_Defaults(t *testing.T) {
	qc := NewQueryConfig(zap.NewNop())

	t.Run("page size", func(t *testing.T) {
		assert.Equal(t, DefaultPageSize, qc.PageSize())
	})

	t.Run("session settings", func(t *testing.T) {
		settings := qc.AsyncInsertSettings()
		assert.Equal(t, 1, settings["async_insert"])
		assert.Equal(t, 0, settings["wait_for_async_insert"])
		assert.Equal(t, 4, settings["async_insert_threads"])
		assert.Equal(t, 100000000, settings["async_insert_max_data_size"])
		assert.Equal(t, 100000, settings["max_insert_block_size"])
	})
}

func Test_FormatLogStreamQuery(t *testing.T) {
	qc := NewQueryConfig(zap.NewNop())

	query := qc.FormatLogStreamQuery(100, 200, 25000, 50000)
	assert.Contains(t, query, "blockNumber >= 100")
	assert.Contains(t, query, "blockNumber <= 200")
	assert.Contains(t, query, "LIMIT 25000 OFFSET 50000")
	assert.NotContains(t, query, "{START_BLOCK}")
	assert.NotContains(t, query, "{END_BLOCK}")
	assert.NotContains(t, query, "{PAGE_SIZE}")
	assert.NotContains(t, query, "{OFFSET}")
}

func Test_FormatContractAbiQuery(t *testing.T) {
	qc := NewQueryConfig(zap.NewNop())

	t.Run("quotes and joins the address list", func(t *testing.T) {
		query := qc.FormatContractAbiQuery([]string{"0xaaa", "0xbbb"})
		assert.Contains(t, query, "'0xaaa','0xbbb'")
		assert.NotContains(t, query, "{ADDRESS_LIST}")
	})

	t.Run("escapes single quotes", func(t *testing.T) {
		query := qc.FormatContractAbiQuery([]string{"0xa'a"})
		assert.Contains(t, query, "'0xa''a'")
	})
}

func Test_LoadFromDir(t *testing.T) {
	t.Run("overrides from files", func(t *testing.T) {
		dir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"pagination": {"page_size": 500}}`), 0o644))
		assert.Nil(t, os.WriteFile(filepath.Join(dir, "log_stream.sql"), []byte("SELECT 1 FROM custom_logs LIMIT {PAGE_SIZE} OFFSET {OFFSET}"), 0o644))
		assert.Nil(t, os.WriteFile(filepath.Join(dir, "clickhouse_settings.sql"), []byte("SET async_insert = 0\nmax_insert_block_size = 5\n"), 0o644))

		qc := NewQueryConfigFromDir(dir, zap.NewNop())
		assert.Equal(t, 500, qc.PageSize())
		assert.Contains(t, qc.FormatLogStreamQuery(1, 2, 10, 0), "custom_logs")
		assert.Equal(t, 0, qc.AsyncInsertSettings()["async_insert"])
		assert.Equal(t, 5, qc.AsyncInsertSettings()["max_insert_block_size"])
	})

	t.Run("missing files fall back to defaults", func(t *testing.T) {
		qc := NewQueryConfigFromDir(t.TempDir(), zap.NewNop())
		assert.Equal(t, DefaultPageSize, qc.PageSize())
		assert.Contains(t, qc.FormatLogStreamQuery(1, 2, 10, 0), "FROM logs")
	})

	t.Run("empty dir keeps defaults entirely", func(t *testing.T) {
		qc := NewQueryConfigFromDir("", zap.NewNop())
		assert.Contains(t, qc.DecodedLogsInsertQuery(), "INSERT INTO decoded_logs")
	})
}

func Test_ParseSettings(t *testing.T) {
	t.Run("skips comments and blanks", func(t *testing.T) {
		settings, err := parseSettings("-- comment\n\nasync_insert = 1\n")
		assert.Nil(t, err)
		assert.Equal(t, 1, settings["async_insert"])
	})

	t.Run("keeps non-numeric values as strings", func(t *testing.T) {
		settings, err := parseSettings("insert_deduplication_token = abc\n")
		assert.Nil(t, err)
		assert.Equal(t, "abc", settings["insert_deduplication_token"])
	})

	t.Run("rejects malformed lines", func(t *testing.T) {
		_, err := parseSettings("not a setting\n")
		assert.NotNil(t, err)
	})
}
