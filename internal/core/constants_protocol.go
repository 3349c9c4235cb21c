package core

// Default config constants
const (
	DefaultPort       = "3000"
	DefaultGinMode    = "release"
	DefaultCORSOrigin = "*"
	CORSMaxAge        = "86400"
)

// Content type and header constants
const (
	ContentTypeEventStream = "text/event-stream"
	ContentTypeJSON        = "application/json"
	CacheControlNoCache    = "no-cache"
	ConnectionKeepAlive    = "keep-alive"
	HeaderContentType      = "Content-Type"
	HeaderAuthorization    = "Authorization"
	HeaderAccept           = "Accept"
	HeaderCacheControl     = "Cache-Control"
	HeaderConnection       = "Connection"
	HeaderRequestID        = "X-Request-Id"
	AuthBearerPrefix       = "Bearer "
)

// Service identity
const (
	ServiceName    = "OpenAI to NVIDIA NIM Proxy"
	HealthStatusOK = "ok"
)
