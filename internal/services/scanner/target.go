package scanner

import (
    "fmt"
    "net"
    "net/url"
    "strings"

    "golang.org/x/net/publicsuffix"

    "netaudit/internal/domain"
)

// NormalizeTarget reduces a user supplied target (hostname, IP, host:port or
// URL) to a lowercase host and its registrable domain (eTLD+1). IPs and hosts
// without a public suffix are their own registrable domain.
func NormalizeTarget(raw string) (host, registrable string, err error) {
    raw = strings.TrimSpace(raw)
    if raw == "" {
        return "", "", domain.InvalidInput("target is required")
    }
    if strings.ContainsAny(raw, " \t\r\n") {
        return "", "", domain.InvalidInput(fmt.Sprintf("target %q contains whitespace", raw))
    }

    switch {
    case net.ParseIP(strings.Trim(raw, "[]")) != nil:
        host = strings.Trim(raw, "[]")
    default:
        rawurl := raw
        if !strings.Contains(raw, "://") {
            rawurl = "scan://" + raw
        }
        u, perr := url.Parse(rawurl)
        if perr != nil {
            return "", "", domain.InvalidInput(fmt.Sprintf("target %q is malformed", raw))
        }
        host = u.Hostname()
    }
    host = strings.ToLower(strings.TrimSuffix(host, "."))
    if host == "" {
        return "", "", domain.InvalidInput(fmt.Sprintf("target %q has no host", raw))
    }

    if net.ParseIP(host) != nil {
        return host, host, nil
    }
    registrable, err = publicsuffix.EffectiveTLDPlusOne(host)
    if err != nil {
        registrable = host
    }
    return host, registrable, nil
}
