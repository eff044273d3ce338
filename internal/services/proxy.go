// YouTube Music proxy [RecommendationService] and [PlaylistService] implementation
//
// Communicates with the CrateDig API proxy (default port 8080), which wraps ytmusicapi search and radio
// lookups and creates playlists with the stored YouTube token.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

const defaultProxyURL string = "http://localhost:8080"

type proxyRollRequest struct {
	Seeds        []models.Seed `json:"seeds"`
	DesiredCount int           `json:"desired_count"`
}

type proxyRollResponse struct {
	Tracks      []models.RecommendedTrack `json:"tracks"`
	SeedsUsed   int                       `json:"seeds_used"`
	SeedsFailed int                       `json:"seeds_failed"`
	RawFound    int                       `json:"raw_found"`
	AfterDedup  int                       `json:"after_dedup"`
}

type proxyCreateRequest struct {
	Title    string   `json:"title"`
	VideoIDs []string `json:"video_ids"`
}

type proxyError struct {
	Detail string `json:"detail"`
}

// HealthStatus is the proxy's health response.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ProxyService implements [RecommendationService] and [PlaylistService] against the proxy.
type ProxyService struct {
	baseURL string
	client  *resty.Client
	tokens  oauth2.TokenSource
}

// NewProxyService creates a proxy client. A nil httpClient uses [http.DefaultClient].
func NewProxyService(baseURL string, httpClient *http.Client) *ProxyService {
	if baseURL == "" {
		baseURL = defaultProxyURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &ProxyService{baseURL: baseURL, client: client}
}

// WithTokenSource makes the proxy act on behalf of the token's account by sending it as a bearer token.
func (p *ProxyService) WithTokenSource(ts oauth2.TokenSource) *ProxyService {
	p.tokens = ts
	return p
}

// Name returns the service name.
func (p *ProxyService) Name() string {
	return "YouTube Music (proxy)"
}

func (p *ProxyService) request(ctx context.Context) (*resty.Request, error) {
	req := p.client.R().SetContext(ctx).SetError(&proxyError{})
	if p.tokens != nil {
		tok, err := p.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
		}
		req.SetAuthToken(tok.AccessToken)
	}
	return req, nil
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}

	if e, ok := resp.Error().(*proxyError); ok && e.Detail != "" {
		return fmt.Errorf("%w: youtube music proxy error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode(), e.Detail)
	}
	return fmt.Errorf("%w: youtube music proxy error: status %d", shared.ErrAPIRequest, resp.StatusCode())
}

// Recommend resolves seeds and gathers radio tracks.
//
// Calls POST /roll on the proxy.
func (p *ProxyService) Recommend(ctx context.Context, seeds []models.Seed, desired int) (*Recommendation, error) {
	req, err := p.request(ctx)
	if err != nil {
		return nil, err
	}

	var out proxyRollResponse
	resp, err := req.
		SetBody(proxyRollRequest{Seeds: seeds, DesiredCount: desired}).
		SetResult(&out).
		Post("/roll")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	raw := out.RawFound
	if raw == 0 {
		raw = len(out.Tracks)
	}

	return &Recommendation{
		SeedsUsed:   out.SeedsUsed,
		SeedsFailed: out.SeedsFailed,
		RawFound:    raw,
		Candidates:  out.Tracks,
	}, nil
}

// CreatePlaylist creates a private playlist with videoIDs.
//
// Calls POST /create-playlist on the proxy.
func (p *ProxyService) CreatePlaylist(ctx context.Context, title string, videoIDs []string) (*CreatedPlaylist, error) {
	req, err := p.request(ctx)
	if err != nil {
		return nil, err
	}

	var out CreatedPlaylist
	resp, err := req.
		SetBody(proxyCreateRequest{Title: title, VideoIDs: videoIDs}).
		SetResult(&out).
		Post("/create-playlist")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	if out.ID == "" {
		return nil, fmt.Errorf("%w: proxy returned no playlist id", shared.ErrAPIRequest)
	}
	if out.URL == "" {
		out.URL = PlaylistURL(out.ID)
	}
	return &out, nil
}

// Health checks that the proxy is reachable.
//
// Calls GET /health on the proxy.
func (p *ProxyService) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	resp, err := p.client.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode())
	}
	return &out, nil
}

var (
	_ RecommendationService = (*ProxyService)(nil)
	_ PlaylistService       = (*ProxyService)(nil)
)
