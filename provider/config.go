// Package provider implements the polymorphic CI backend contract (spec
// §3, §4.C) and its generic HTTP-JSON adapter (spec §4.A). Grounded on
// ai/provider.go's AIConfig + functional-option pattern, generalized
// from one struct per vendor to a single config-driven adapter, and
// ai/providers/{anthropic,openai,gemini} as the N concrete clients this
// replaces.
package provider

import "time"

// AuthKind selects how a credential is attached to an outgoing request
// (spec §3's ProviderConfig authentication descriptor).
type AuthKind string

const (
	AuthBearerHeader AuthKind = "bearer-header"
	AuthCustomHeader AuthKind = "custom-header"
	AuthURLParam     AuthKind = "url-param"
)

// Auth describes how to attach a credential to a request.
type Auth struct {
	Kind       AuthKind
	Name       string // header or query-param name; unused for bearer-header
	Credential string
}

// Available reports whether the credential is present and long enough to
// be a real value, per spec §4.C's per-vendor availability predicate
// ("non-empty and at least 10 characters").
func (a Auth) Available() bool {
	return len(a.Credential) >= 10
}

// BodyBuilder renders a provider's request body from the chosen model and
// the final (possibly memory-augmented) prompt.
type BodyBuilder func(model, prompt string) ([]byte, error)

// Config is the immutable, caller-owned description of one remote HTTP
// provider (spec §3's ProviderConfig). It must outlive every Instance
// built from it.
type Config struct {
	Name              string
	DefaultModel      string
	Endpoint          string
	URLIncludesModel  bool
	Auth              Auth
	ExtraHeaders      [][2]string
	ResponsePath      []string
	BuildBody         BodyBuilder
	SupportsStreaming bool
	MaxContextTokens  int
}

// Option mutates a Config at construction time.
type Option func(*Config)

// NewConfig builds a Config for name/endpoint with the given options.
func NewConfig(name, endpoint string, opts ...Option) *Config {
	c := &Config{Name: name, Endpoint: endpoint, ResponsePath: []string{"content"}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithDefaultModel(model string) Option {
	return func(c *Config) { c.DefaultModel = model }
}

func WithAuth(kind AuthKind, name, credential string) Option {
	return func(c *Config) { c.Auth = Auth{Kind: kind, Name: name, Credential: credential} }
}

func WithExtraHeader(name, value string) Option {
	return func(c *Config) { c.ExtraHeaders = append(c.ExtraHeaders, [2]string{name, value}) }
}

func WithResponsePath(path ...string) Option {
	return func(c *Config) { c.ResponsePath = path }
}

func WithBodyBuilder(b BodyBuilder) Option {
	return func(c *Config) { c.BuildBody = b }
}

func WithURLIncludesModel(v bool) Option {
	return func(c *Config) { c.URLIncludesModel = v }
}

func WithStreaming(v bool) Option {
	return func(c *Config) { c.SupportsStreaming = v }
}

func WithMaxContextTokens(n int) Option {
	return func(c *Config) { c.MaxContextTokens = n }
}

// Available reports whether this config's credential looks real (spec
// §4.C).
func (c *Config) Available() bool {
	return c.Auth.Available()
}

// HTTPTimeouts holds the sane-default timeouts providers fall back to
// when none are supplied via runtimeconfig.
type HTTPTimeouts struct {
	HTTP   time.Duration
	Daemon time.Duration
	Poll   time.Duration
}

// DefaultHTTPTimeouts matches spec §4.C's pinned daemon defaults (60s
// timeout, 10ms poll cadence) and a conservative remote-HTTP default.
func DefaultHTTPTimeouts() HTTPTimeouts {
	return HTTPTimeouts{HTTP: 30 * time.Second, Daemon: 60 * time.Second, Poll: 10 * time.Millisecond}
}
