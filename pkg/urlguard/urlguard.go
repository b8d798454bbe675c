// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package urlguard validates user-supplied origin URLs before they are
// fetched (SSRF protection).
//
// Only http:// and https:// URLs with a non-private host are accepted.
// IP literals are checked against blocked ranges. Hostnames are accepted
// without DNS resolution — DNS rebinding is a known limitation accepted
// here; full mitigation requires a resolver gate in front of the fetch.
package urlguard

import (
	"fmt"
	"net"
	"net/url"
)

// ErrInvalidOrigin is wrapped by all validation failures.
var ErrInvalidOrigin = fmt.Errorf("invalid origin URL")

// ValidateOriginURL checks that an origin URL is safe to fetch.
//
// It rejects:
//   - invalid or relative URLs
//   - non-HTTP(S) schemes
//   - IPv4 addresses in private or reserved ranges
//   - IPv6 loopback, link-local, and unique-local addresses
func ValidateOriginURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: cannot parse %q", ErrInvalidOrigin, raw)
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q not allowed, only http/https permitted",
			ErrInvalidOrigin, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: no host in %q", ErrInvalidOrigin, raw)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Hostname — allowed without DNS resolution.
		return nil
	}
	if ip4 := ip.To4(); ip4 != nil {
		if isBlockedIPv4(ip4) {
			return fmt.Errorf("%w: private or reserved IPv4 address %s", ErrInvalidOrigin, ip)
		}
		return nil
	}
	if isBlockedIPv6(ip) {
		return fmt.Errorf("%w: private or reserved IPv6 address %s", ErrInvalidOrigin, ip)
	}
	return nil
}

// isBlockedIPv4 reports whether ip is in a private or reserved range.
//
// Blocked ranges:
//   - 0.0.0.0/8      "this" network (RFC 1122)
//   - 10.0.0.0/8     RFC 1918 private
//   - 127.0.0.0/8    loopback
//   - 169.254.0.0/16 link-local / cloud-metadata
//   - 172.16.0.0/12  RFC 1918 private
//   - 192.168.0.0/16 RFC 1918 private
func isBlockedIPv4(ip net.IP) bool {
	a, b := ip[0], ip[1]
	return a == 0 ||
		a == 10 ||
		a == 127 ||
		(a == 169 && b == 254) ||
		(a == 172 && b >= 16 && b <= 31) ||
		(a == 192 && b == 168)
}

// isBlockedIPv6 reports whether ip is loopback (::1), link-local
// (fe80::/10), or unique-local (fc00::/7).
func isBlockedIPv6(ip net.IP) bool {
	return ip.IsLoopback() ||
		(ip[0] == 0xfe && ip[1]&0xc0 == 0x80) ||
		ip[0]&0xfe == 0xfc
}
