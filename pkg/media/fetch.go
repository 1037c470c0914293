package media

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

// maxRedirects bounds how many redirects one image fetch follows.
const maxRedirects = 5

// errBlockedAddress is returned when a fetch would connect to a
// non-public address.
var errBlockedAddress = errors.New("address is not public")

// sharedAddressSpace is carrier-grade NAT, which netip does not report as
// private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

type dialControl func(network, address string, c syscall.RawConn) error

// newFetchClient builds the client for remote images. control runs on every
// connection after name resolution, so redirect hops are checked too.
func newFetchClient(timeout time.Duration, control dialControl) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   control,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: limitRedirects,
	}
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// publicOnly refuses loopback, private, link-local, unspecified and
// multicast destinations.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !isPublicAddr(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	return nil
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return false
	}
	if sharedAddressSpace.Contains(ip) {
		return false
	}
	return ip.IsGlobalUnicast()
}
