// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/joeldelpilar/ritcher/pkg/logging"
)

// Stitching modes.
const (
	ModeSSAI = "ssai"
	ModeSGAI = "sgai"
)

// Ad provider types.
const (
	ProviderStatic = "static"
	ProviderDemo   = "demo"
	ProviderVAST   = "vast"
	ProviderAuto   = "auto"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreValkey = "valkey"
)

const (
	defaultAdSourceURL = "https://hls.src.tedm.io/content/ts_h264_480p_1s"
	defaultSessionTTLS = 300
)

// ServerConfig is the stitcher configuration, loaded from defaults, an
// optional JSON config file, command-line flags, and environment
// variables (later sources win).
type ServerConfig struct {
	LogFormat string `json:"logformat"`
	LogLevel  string `json:"loglevel"`
	Port      int    `json:"port"`
	// BaseURL is the externally visible base URL rewritten into
	// playlists. Required in production.
	BaseURL string `json:"baseurl"`
	// OriginURL is the default origin manifest URL. Required in
	// production; user-supplied ?origin= overrides are SSRF-checked.
	OriginURL string `json:"originurl"`
	// DevMode substitutes defaults for the required settings.
	DevMode bool `json:"devmode"`
	// StitchingMode is ssai or sgai.
	StitchingMode string `json:"stitchingmode"`
	// AdProviderType is static, demo, vast, or auto. Auto selects vast
	// when a VAST endpoint is configured, else demo when a demo ad base
	// URL is configured, else static.
	AdProviderType string `json:"adprovidertype"`
	// AdSourceURL is the static provider's segment root.
	AdSourceURL string `json:"adsourceurl"`
	// AdSegmentDuration is the fill segment duration in seconds.
	AdSegmentDuration float64 `json:"adsegmentduration"`
	// DemoAdBaseURL is the demo provider's creative root.
	DemoAdBaseURL string `json:"demoadbaseurl"`
	// VASTEndpoint is the ad decision server URL.
	VASTEndpoint string `json:"vastendpoint"`
	// SlateURL is fallback content when no ads are available.
	SlateURL string `json:"slateurl"`
	// SlateSegmentDuration is the slate segment duration in seconds.
	SlateSegmentDuration float64 `json:"slatesegmentduration"`
	// SessionStore is memory or valkey.
	SessionStore string `json:"sessionstore"`
	// ValkeyURL is the redis:// URL of the Valkey server.
	ValkeyURL string `json:"valkeyurl"`
	// SessionTTLSecs evicts sessions idle longer than this.
	SessionTTLSecs int `json:"sessionttlsecs"`
	// RateLimitRPM caps requests per client per minute. 0 disables.
	RateLimitRPM int `json:"ratelimitrpm"`
	// TimeoutS bounds request handling. 0 disables.
	TimeoutS int `json:"timeoutS"`
}

var DefaultConfig = ServerConfig{
	LogFormat:            "text",
	LogLevel:             "INFO",
	Port:                 3000,
	StitchingMode:        ModeSSAI,
	AdProviderType:       ProviderAuto,
	AdSourceURL:          defaultAdSourceURL,
	AdSegmentDuration:    1.0,
	SlateSegmentDuration: 1.0,
	SessionStore:         StoreMemory,
	SessionTTLSecs:       defaultSessionTTLS,
	RateLimitRPM:         0,
	TimeoutS:             60,
}

// envKeys maps the documented environment variables to config keys.
var envKeys = map[string]string{
	"PORT":                   "port",
	"BASE_URL":               "baseurl",
	"ORIGIN_URL":             "originurl",
	"DEV_MODE":               "devmode",
	"STITCHING_MODE":         "stitchingmode",
	"AD_PROVIDER_TYPE":       "adprovidertype",
	"AD_SOURCE_URL":          "adsourceurl",
	"AD_SEGMENT_DURATION":    "adsegmentduration",
	"DEMO_AD_BASE_URL":       "demoadbaseurl",
	"VAST_ENDPOINT":          "vastendpoint",
	"SLATE_URL":              "slateurl",
	"SLATE_SEGMENT_DURATION": "slatesegmentduration",
	"SESSION_STORE":          "sessionstore",
	"VALKEY_URL":             "valkeyurl",
	"SESSION_TTL_SECS":       "sessionttlsecs",
	"RATE_LIMIT_RPM":         "ratelimitrpm",
	"LOGLEVEL":               "loglevel",
	"LOGFORMAT":              "logformat",
}

// LoadConfig loads defaults, config file, command line, and finally
// applies environment variables.
func LoadConfig(args []string) (*ServerConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig, "json"), nil); err != nil {
		return nil, err
	}

	f := pflag.NewFlagSet("ritcher", pflag.ContinueOnError)
	f.Usage = func() {
		parts := strings.Split(args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, "Run as %s [options]:\n", name)
		f.PrintDefaults()
	}
	cfgFile := f.String("cfg", "", "path to a JSON config file")
	f.Int("port", k.Int("port"), "HTTP port")
	lf := strings.Join(logging.LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	ll := strings.Join(logging.LogLevels, ", ")
	f.String("loglevel", k.String("loglevel"), fmt.Sprintf("log level [%s]", ll))
	f.String("baseurl", k.String("baseurl"), "externally visible base URL")
	f.String("originurl", k.String("originurl"), "default origin manifest URL")
	f.Bool("devmode", k.Bool("devmode"), "development mode with relaxed required settings")
	f.String("stitchingmode", k.String("stitchingmode"), "stitching mode [ssai, sgai]")
	f.String("adprovidertype", k.String("adprovidertype"), "ad provider [static, demo, vast, auto]")
	f.String("adsourceurl", k.String("adsourceurl"), "static ad source URL")
	f.Float64("adsegmentduration", k.Float64("adsegmentduration"), "ad segment duration (seconds)")
	f.String("demoadbaseurl", k.String("demoadbaseurl"), "demo ad creative base URL")
	f.String("vastendpoint", k.String("vastendpoint"), "VAST ad server endpoint")
	f.String("slateurl", k.String("slateurl"), "slate fallback content URL")
	f.Float64("slatesegmentduration", k.Float64("slatesegmentduration"), "slate segment duration (seconds)")
	f.String("sessionstore", k.String("sessionstore"), "session store [memory, valkey]")
	f.String("valkeyurl", k.String("valkeyurl"), "Valkey URL (redis://...)")
	f.Int("sessionttlsecs", k.Int("sessionttlsecs"), "session TTL (seconds)")
	f.Int("ratelimitrpm", k.Int("ratelimitrpm"), "requests per client per minute (0 disables)")
	f.Int("timeout", k.Int("timeoutS"), "timeout for all requests (seconds)")
	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}

	if *cfgFile != "" {
		if err := k.Load(file.Provider(*cfgFile), json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %v", err)
	}

	// Overload with the documented environment variables. Unknown
	// variables map to "" and are skipped.
	err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates enum fields, resolves the auto provider, and
// enforces production-required settings.
func (c *ServerConfig) normalize() error {
	c.StitchingMode = strings.ToLower(c.StitchingMode)
	switch c.StitchingMode {
	case ModeSSAI, ModeSGAI:
	case "":
		c.StitchingMode = ModeSSAI
	default:
		return fmt.Errorf("stitching mode %q not known", c.StitchingMode)
	}

	c.AdProviderType = strings.ToLower(c.AdProviderType)
	switch c.AdProviderType {
	case ProviderStatic, ProviderDemo, ProviderVAST:
	case ProviderAuto, "":
		if c.VASTEndpoint != "" {
			c.AdProviderType = ProviderVAST
		} else if c.DemoAdBaseURL != "" {
			c.AdProviderType = ProviderDemo
		} else {
			c.AdProviderType = ProviderStatic
		}
	default:
		return fmt.Errorf("ad provider type %q not known", c.AdProviderType)
	}
	if c.AdProviderType == ProviderVAST && c.VASTEndpoint == "" {
		return fmt.Errorf("ad provider type vast requires VAST_ENDPOINT")
	}

	c.SessionStore = strings.ToLower(c.SessionStore)
	switch c.SessionStore {
	case StoreMemory:
	case StoreValkey, "redis":
		c.SessionStore = StoreValkey
		if c.ValkeyURL == "" {
			return fmt.Errorf("session store valkey requires VALKEY_URL")
		}
	case "":
		c.SessionStore = StoreMemory
	default:
		return fmt.Errorf("session store %q not known", c.SessionStore)
	}

	if c.DevMode {
		if c.BaseURL == "" {
			c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
		}
		if c.OriginURL == "" {
			c.OriginURL = "https://example.com"
		}
	} else {
		if c.BaseURL == "" {
			return fmt.Errorf("BASE_URL is required in production")
		}
		if c.OriginURL == "" {
			return fmt.Errorf("ORIGIN_URL is required in production")
		}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.AdSegmentDuration <= 0 {
		c.AdSegmentDuration = 1.0
	}
	if c.SlateSegmentDuration <= 0 {
		c.SlateSegmentDuration = 1.0
	}
	if c.SessionTTLSecs <= 0 {
		c.SessionTTLSecs = defaultSessionTTLS
	}
	return nil
}
