// nightboard/utils/security.go
package utils

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ParseTrustedProxies turns addresses and CIDR ranges into prefixes. A bare
// address becomes a single-host prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parseHeaderAddr(v string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(v))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// ClientIP resolves the client address. Forwarding headers are only read when
// the direct peer is one of the trusted proxies; otherwise the peer address is
// the answer. X-Forwarded-For is walked from the right, skipping trusted hops.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := GetIPAddress(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !isTrusted(addr.Unmap(), trusted) {
		return peer
	}

	if a, ok := parseHeaderAddr(r.Header.Get("CF-Connecting-IP")); ok {
		return a.String()
	}
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			a, ok := parseHeaderAddr(hops[i])
			if !ok {
				break
			}
			if !isTrusted(a, trusted) || i == 0 {
				return a.String()
			}
		}
	}
	if a, ok := parseHeaderAddr(r.Header.Get("X-Real-IP")); ok {
		return a.String()
	}
	return peer
}

// GetIPAddress returns the normalized host part of RemoteAddr. Headers are
// never consulted here; the router rewrites RemoteAddr for trusted proxies.
func GetIPAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := NormalizeIP(host); ip != "" {
		return ip
	}
	return host
}

// IsPrivateRequest reports whether the request comes from a private or loopback address.
func IsPrivateRequest(r *http.Request) bool {
	ip := net.ParseIP(GetIPAddress(r))
	return ip != nil && (ip.IsPrivate() || ip.IsLoopback())
}

// NormalizeIP returns the canonical text form of ip, or "" when it does not parse.
// IPv4-mapped IPv6 addresses collapse to their IPv4 form.
func NormalizeIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

// HashPassword hashes a password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
