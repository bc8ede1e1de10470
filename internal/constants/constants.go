package constants

import "time"

// DefaultBaseURL is the standard base URL for the SubSource REST API.
const DefaultBaseURL = "https://api.subsource.net"

// ApiPath is the common path prefix for API endpoints.
const ApiPath = "/api/v1"

// Endpoint paths, relative to the base URL.
const (
	SearchPath    = ApiPath + "/movies/search"
	SubtitlesPath = ApiPath + "/subtitles"
	DownloadPath  = ApiPath + "/subtitles/%s/download"
)

// AuthHeader carries the static API key on every request.
const AuthHeader = "X-API-Key"

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 20 * time.Second

// DefaultLanguage is the language code used when none is configured.
const DefaultLanguage = "id"

// SubtitleExt is the only subtitle format written to disk.
const SubtitleExt = ".srt"

// APIKeyEnv is the environment variable holding the SubSource API key.
const APIKeyEnv = "SUBSOURCE_API_KEY"
