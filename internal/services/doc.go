// Package services implements the external collaborators of the roll pipeline.
//
// # Interfaces
//
//   - [RecommendationService] : expands seeds into candidate tracks
//   - [PlaylistService] : creates a playlist from video ids
//   - [ExistenceChecker] : reports which playlists still exist, at most [MaxExistenceBatch] per call
//
// # YouTube Music Proxy
//
// [ProxyService] communicates with the FastAPI proxy (POST /roll, POST /create-playlist, GET /health)
// wrapping ytmusicapi. Searches and radio lookups happen in the proxy; this client only moves JSON.
//
// # YouTube Data API
//
// [YouTubeService] creates private playlists and checks playlist existence with the YouTube Data API v3,
// authorized by a [PersistingTokenSource] that saves refreshed tokens.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no stored token
//   - [shared.ErrTokenExpired] : OAuth token rejected or refresh failed
//   - [shared.ErrAPIRequest] : request reached the service but failed
//   - [shared.ErrServiceUnavailable] : service unreachable
package services
