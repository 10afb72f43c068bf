package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"charmstudio/internal/datauri"
	"charmstudio/internal/llm"
)

// DefaultMaxImageBytes bounds a fetched reference image.
const DefaultMaxImageBytes = 8 << 20

var (
	ErrUnsupportedRef = errors.New("compose: unsupported image reference")
	// ErrForbiddenAddress means a reference resolved to an address the
	// gateway never fetches from: loopback, private, link-local, shared or
	// unspecified ranges.
	ErrForbiddenAddress = errors.New("compose: image host resolves to a non-public address")
)

// Resolver turns an image reference into bytes for the image model.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (llm.Image, error)
}

// HTTPResolver decodes data URIs in place and fetches http(s) URLs.
type HTTPResolver struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPResolver returns a resolver whose client only connects to public
// addresses. The check runs on every dial, so redirects and DNS answers
// that change between lookups are covered too.
func NewHTTPResolver() *HTTPResolver {
	dialer := &net.Dialer{Timeout: 5 * time.Second, Control: publicOnly}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPResolver{Client: &http.Client{Timeout: 15 * time.Second, Transport: transport}, MaxBytes: DefaultMaxImageBytes}
}

// sharedSpace is carrier-grade NAT space, where some clouds serve metadata.
var sharedSpace = netip.MustParsePrefix("100.64.0.0/10")

func publicOnly(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ap.Addr())
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedSpace.Contains(ip):
		return false
	}
	return true
}

func (r *HTTPResolver) Resolve(ctx context.Context, ref string) (llm.Image, error) {
	ref = strings.TrimSpace(ref)
	if datauri.Is(ref) {
		mime, data, err := datauri.Decode(ref, true)
		if err != nil {
			return llm.Image{}, err
		}
		return llm.Image{MIMEType: mime, Data: data}, nil
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return llm.Image{}, fmt.Errorf("%w: %q", ErrUnsupportedRef, truncate(ref, 64))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return llm.Image{}, err
	}
	cli := r.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return llm.Image{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return llm.Image{}, fmt.Errorf("fetch %s: status %d", u.Host, resp.StatusCode)
	}
	limit := r.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return llm.Image{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	if int64(len(data)) > limit {
		return llm.Image{}, fmt.Errorf("fetch %s: image larger than %d bytes", u.Host, limit)
	}
	mime := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return llm.Image{}, fmt.Errorf("fetch %s: %s is not an image", u.Host, mime)
	}
	return llm.Image{MIMEType: mime, Data: data}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
