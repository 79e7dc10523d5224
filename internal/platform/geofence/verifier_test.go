package geofence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HMS-backend/internal/platform/db"
)

func lookupServer(t *testing.T, displayName string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"` + displayName + `","address":{"city":"Jaipur"}}`))
	}))
}

func campusConfig(lookupURL string) db.GeofenceConfig {
	return db.GeofenceConfig{
		LookupURL:      lookupURL,
		TimeoutSeconds: 1,
		AllowedTokens:  []string{"State University"},
		MinLat:         26.860, MaxLat: 26.875,
		MinLon: 75.800, MaxLon: 75.820,
	}
}

func TestVerifyRemoteHitAllows(t *testing.T) {
	srv := lookupServer(t, "Hostel 4, State University, Jaipur")
	defer srv.Close()

	v := FromConfig(campusConfig(srv.URL))
	// 座標は bbox の外。住所照合だけで通る。
	assert.NoError(t, v.Verify(context.Background(), 10.0, 10.0))
}

// 表記ゆれ（全角・大文字小文字）は NFKC 正規化で吸収する
func TestVerifyTokenMatchingFoldsWidthAndCase(t *testing.T) {
	srv := lookupServer(t, "ＳＴＡＴＥ　ＵＮＩＶＥＲＳＩＴＹ 構内")
	defer srv.Close()

	v := FromConfig(campusConfig(srv.URL))
	assert.NoError(t, v.Verify(context.Background(), 10.0, 10.0))
}

// 照会成功でトークン無しなら bbox 内でも拒否（照会結果を信頼する）
func TestVerifyRemoteMissDeniesEvenInsideBox(t *testing.T) {
	srv := lookupServer(t, "Some Cafe, Somewhere Else")
	defer srv.Close()

	v := FromConfig(campusConfig(srv.URL))
	err := v.Verify(context.Background(), 26.87, 75.81)
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestVerifyLookupDownFallsBackToBox(t *testing.T) {
	srv := lookupServer(t, "unused")
	srv.Close() // 即閉じて接続エラーを起こす

	v := FromConfig(campusConfig(srv.URL))

	assert.NoError(t, v.Verify(context.Background(), 26.87, 75.81))
	assert.ErrorIs(t, v.Verify(context.Background(), 20.0, 70.0), ErrNotVerified)
}

func TestVerifyLookupErrorStatusFallsBackToBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := FromConfig(campusConfig(srv.URL))
	assert.NoError(t, v.Verify(context.Background(), 26.87, 75.81))
}

// 何も設定されていなければ常に拒否（fail closed）
func TestVerifyNothingConfiguredDenies(t *testing.T) {
	v := FromConfig(db.GeofenceConfig{})
	err := v.Verify(context.Background(), 26.87, 75.81)
	require.ErrorIs(t, err, ErrNotVerified)
}
