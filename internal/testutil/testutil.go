// Package testutil はハンドラーやストアのテストで共通して使う補助関数を提供します。
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/blog-api/internal/config"
	"github.com/yourusername/blog-api/internal/database"
)

// NewSQLiteDB は一時ディレクトリにSQLiteを作成し、マイグレーション済みの接続を返します。
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(config.DatabaseDriverSQLite, path)
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	require.NoError(t, database.Migrate(db), "migrate")
	return db
}

// DiscardLogger は出力を捨てるロガーを返します。
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewJSONRequest は body をJSONにしたリクエストを作成します。
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON はレスポンスボディを v に読み込みます。
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decode body: %s", rec.Body.String())
}
