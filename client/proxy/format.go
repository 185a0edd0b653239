package proxy

import (
	"fmt"
	"net"
	"strconv"
)

// Format selects a textual rendering for [Proxy.Format].
type Format int

const (
	// IPPortOnly renders "host:port" and never includes credentials.
	IPPortOnly Format = iota + 1
	// HTTPIPPortOnly renders "http://[user:pass@]host:port". It aliases
	// HTTPComplete: both include credentials when present.
	HTTPIPPortOnly
	// Complete renders "host:port" or "host:port:user:pass".
	Complete
	// HTTPComplete renders "http://[user:pass@]host:port".
	HTTPComplete
)

func (f Format) String() string {
	switch f {
	case IPPortOnly:
		return "IPPortOnly"
	case HTTPIPPortOnly:
		return "HTTPIPPortOnly"
	case Complete:
		return "Complete"
	case HTTPComplete:
		return "HTTPComplete"
	default:
		return "Format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Format renders p in the requested format.
//
// The colon formats carry credentials verbatim. The http:// formats
// percent-encode them as URL userinfo, so "p@ss" renders as "p%40ss";
// [Parse] decodes them back unchanged.
func (p Proxy) Format(f Format) (string, error) {
	hostPort := p.Host + ":" + strconv.Itoa(p.Port)

	switch f {
	case IPPortOnly:
		return hostPort, nil
	case Complete:
		if p.IsAuthenticated() {
			return fmt.Sprintf("%s:%s:%s", hostPort, p.Username, p.Password), nil
		}
		return hostPort, nil
	case HTTPIPPortOnly, HTTPComplete:
		u := p.URL()
		if u == nil {
			return "http://" + hostPort, nil
		}
		if !p.IsAuthenticated() {
			return "http://" + net.JoinHostPort(p.Host, strconv.Itoa(p.Port)), nil
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}
