package resolver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/jrmoore/platune/internal/source"
)

const (
	retryMax           = 3
	processStartupWait = 30 * time.Second
)

// HTTPResolver materializes http(s):// URLs, optionally attaching a
// client mTLS identity when the target host is the configured global
// file server, retrying transient errors with exponential backoff, and
// wrapping the body in a temp-file-backed adaptive downloader.
type HTTPResolver struct {
	limiter *rate.Limiter
}

// NewHTTPResolver builds the default HTTP(S) materializer. requestsPerSecond
// and burst configure the shared client-side rate limiter (0 disables
// limiting).
func NewHTTPResolver(requestsPerSecond float64, burst int) *HTTPResolver {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &HTTPResolver{limiter: limiter}
}

func (HTTPResolver) Priority() int { return 2 }

func (HTTPResolver) Rules() []Rule { return []Rule{AnyHTTP()} }

func (r *HTTPResolver) Materialize(ctx context.Context, input string) (source.Source, source.CancelFunc, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url %q: %w", input, err)
	}

	client, err := newRetryClient(u)
	if err != nil {
		return nil, nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, input, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", input).Msg("http source request failed")
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("unexpected status %d fetching %q", resp.StatusCode, input)
	}

	contentLength := resp.ContentLength

	ext := extFromPath(u.Path)

	prefetch := prefetchSizeFor(icyBrKbps(resp.Header.Get("Icy-Br")))

	downloadCtx, cancel := context.WithCancel(context.Background())
	dl, err := newTempDownloader(downloadCtx, resp.Body, contentLength, ext)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	dl.waitFor(prefetch)

	return dl, source.CancelFunc(cancel), nil
}

func newRetryClient(target *url.URL) (*retryablehttp.Client, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.Logger = nil
	client.HTTPClient.Timeout = processStartupWait

	if target.Scheme == "https" {
		if identity, err := mtlsIdentity(target); err != nil {
			return nil, err
		} else if identity != nil {
			transport, ok := client.HTTPClient.Transport.(*http.Transport)
			if !ok || transport == nil {
				transport = http.DefaultTransport.(*http.Transport).Clone()
			} else {
				transport = transport.Clone()
			}
			transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{*identity}}
			client.HTTPClient.Transport = transport
		}
	}

	return client, nil
}

// mtlsIdentity loads a client certificate/key pair for requests to the
// configured global file server, per the PLATUNE_GLOBAL_FILE_URL /
// PLATUNE_MTLS_CLIENT_CERT_PATH / PLATUNE_MTLS_CLIENT_KEY_PATH env vars.
// Returns nil, nil when the target host isn't the configured server or
// the env vars aren't set.
func mtlsIdentity(target *url.URL) (*tls.Certificate, error) {
	globalURL := os.Getenv("PLATUNE_GLOBAL_FILE_URL")
	if globalURL == "" {
		return nil, nil
	}
	parsed, err := url.Parse(globalURL)
	if err != nil {
		return nil, fmt.Errorf("parse PLATUNE_GLOBAL_FILE_URL: %w", err)
	}
	if parsed.Hostname() != target.Hostname() {
		return nil, nil
	}

	certPath := os.Getenv("PLATUNE_MTLS_CLIENT_CERT_PATH")
	keyPath := os.Getenv("PLATUNE_MTLS_CLIENT_KEY_PATH")
	if certPath == "" || keyPath == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load mtls client identity: %w", err)
	}
	log.Info().Str("cert", certPath).Msg("using mtls client identity for global file server")
	return &cert, nil
}

func extFromPath(p string) string {
	parts := strings.Split(p, ".")
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return ""
}

func icyBrKbps(header string) int64 {
	if header == "" {
		return 0
	}
	v, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
