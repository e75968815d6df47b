package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Supported transport schemes.
const (
	SchemeTCP = "stratum+tcp"
	SchemeSSL = "stratum+ssl"
	SchemeTLS = "stratum+tls"
)

// sessionLabelPrefix starts every generated session label.
const sessionLabelPrefix = "worker-"

// runIDPrefixLength is how much of the run id is kept in a session label.
const runIDPrefixLength = 8

var (
	errEmptyEndpoint     = errors.New("endpoint must be provided")
	errUnsupportedScheme = errors.New("unsupported endpoint scheme")
	errHostRequired      = errors.New("endpoint host must be provided")
	errInvalidPort       = errors.New("endpoint port must be between 1 and 65535")
	errUnexpectedParts   = errors.New("endpoint must have the form scheme://host:port")
	errAccountRequired   = errors.New("account identifier must be provided")
	errEmptySet          = errors.New("at least one endpoint must be provided")
)

// Endpoint is one upstream connection target.
type Endpoint struct {
	// Scheme is the transport identifier, e.g. stratum+ssl.
	Scheme string
	// Host is the DNS name or IP address.
	Host string
	// Port is the TCP port.
	Port int
	// Account is the account identifier presented to the service.
	Account string
	// SessionLabel distinguishes this run from others sharing Account.
	SessionLabel string
	// Keepalive asks the launched program to keep idle connections open.
	Keepalive bool
}

// URL renders the endpoint as scheme://host:port.
func (e Endpoint) URL() string {
	return e.Scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Parse reads a scheme://host:port string. Account, label and keepalive are left empty.
func Parse(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, errEmptyEndpoint
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !IsSupportedScheme(scheme) {
		return Endpoint{}, fmt.Errorf("%w: %q", errUnsupportedScheme, parsed.Scheme)
	}

	if parsed.User != nil || (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return Endpoint{}, fmt.Errorf("%w: %q", errUnexpectedParts, raw)
	}

	host := parsed.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: %q", errHostRequired, raw)
	}

	port, err := strconv.Atoi(parsed.Port())
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: %q", errInvalidPort, raw)
	}

	return Endpoint{
		Scheme: scheme,
		Host:   host,
		Port:   port,
	}, nil
}

// IsSupportedScheme reports whether scheme is one of the known transports.
func IsSupportedScheme(scheme string) bool {
	switch scheme {
	case SchemeTCP, SchemeSSL, SchemeTLS:
		return true
	default:
		return false
	}
}

// Set is an ordered list of endpoints; index 0 is the primary.
type Set []Endpoint

// Primary returns the first endpoint and false when the set is empty.
func (s Set) Primary() (Endpoint, bool) {
	if len(s) == 0 {
		return Endpoint{}, false
	}

	return s[0], true
}

// BuildSet parses urls in order and attaches the shared credentials to each entry.
func BuildSet(urls []string, account, sessionLabel string, keepalive bool) (Set, error) {
	if strings.TrimSpace(account) == "" {
		return nil, errAccountRequired
	}

	if len(urls) == 0 {
		return nil, errEmptySet
	}

	set := make(Set, 0, len(urls))

	for i, raw := range urls {
		ep, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("endpoint #%d: %w", i+1, err)
		}

		ep.Account = account
		ep.SessionLabel = sessionLabel
		ep.Keepalive = keepalive

		set = append(set, ep)
	}

	return set, nil
}

// NewSessionLabel derives a per-run label from the start time and the run id.
func NewSessionLabel(now time.Time, runID string) string {
	label := sessionLabelPrefix + strconv.FormatInt(now.UnixMilli(), 10)

	runID = strings.ReplaceAll(runID, "-", "")
	if len(runID) > runIDPrefixLength {
		runID = runID[:runIDPrefixLength]
	}

	if runID != "" {
		label += "-" + runID
	}

	return label
}
