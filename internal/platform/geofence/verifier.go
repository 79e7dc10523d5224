package geofence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"HMS-backend/internal/platform/db"
)

// 位置が構内として認められない場合のエラー。呼び出し側で 403 相当に変換する。
var ErrNotVerified = errors.New("location not verified")

type Verifier interface {
	Verify(ctx context.Context, lat, lon float64) error
}

// ===== bounding box =====

type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func (b BoundingBox) isZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLon == 0 && b.MaxLon == 0
}

func (b BoundingBox) contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ===== reverse geocoding client =====

// Nominatim互換の逆ジオコーディング応答（使う部分だけ）
type lookupResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

type LookupClient struct {
	baseURL string
	client  *http.Client
}

func NewLookupClient(baseURL string, timeout time.Duration) *LookupClient {
	return &LookupClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve: (lat,lon) を住所テキストに解決する。タイムアウト・非200はエラー。
func (lc *LookupClient) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	u, err := url.Parse(lc.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "HMS-backend")

	res, err := lc.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup status %d", res.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}

	// display_name と address の値を全部つなげて照合対象にする
	parts := []string{body.DisplayName}
	for _, v := range body.Address {
		parts = append(parts, v)
	}
	return strings.Join(parts, " "), nil
}

// ===== campus verifier =====

// CampusVerifier は二段構え:
//  1. 逆ジオコーディングの住所テキストに許可トークンが含まれるか
//  2. 照会が失敗（タイムアウト含む）したら bbox 判定にフォールバック
//
// どちらも通らなければ拒否。fail-open にはしない。
type CampusVerifier struct {
	lookup *LookupClient // nil なら bbox のみ
	tokens []string
	box    BoundingBox
}

func FromConfig(cfg db.GeofenceConfig) *CampusVerifier {
	var lc *LookupClient
	if cfg.LookupURL != "" {
		lc = NewLookupClient(cfg.LookupURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}
	return &CampusVerifier{
		lookup: lc,
		tokens: cfg.AllowedTokens,
		box: BoundingBox{
			MinLat: cfg.MinLat, MaxLat: cfg.MaxLat,
			MinLon: cfg.MinLon, MaxLon: cfg.MaxLon,
		},
	}
}

func (v *CampusVerifier) Verify(ctx context.Context, lat, lon float64) error {
	if v.lookup != nil && len(v.tokens) > 0 {
		addr, err := v.lookup.Resolve(ctx, lat, lon)
		if err == nil {
			if matchTokens(addr, v.tokens) {
				return nil
			}
			// 照会は成功していて構内トークンが無い → ここで確定拒否
			return ErrNotVerified
		}
		log.Printf("[WARN] geofence: lookup failed, falling back to bounding box: %v", err)
	}

	if !v.box.isZero() && v.box.contains(lat, lon) {
		return nil
	}
	return ErrNotVerified
}

// トークン照合。外部ジオコーダの表記ゆれ（全角・合成文字）を吸収するため
// NFKC正規化 + 小文字化してから部分一致を見る。
func matchTokens(addr string, tokens []string) bool {
	folded := strings.ToLower(norm.NFKC.String(addr))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if strings.Contains(folded, strings.ToLower(norm.NFKC.String(t))) {
			return true
		}
	}
	return false
}
