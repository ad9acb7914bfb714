package ddns

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// Default echo services, one per address family.
const (
	DefaultIPv4URL = "https://api.ipify.org"
	DefaultIPv6URL = "https://api6.ipify.org"
)

// WebSource constructs a source which uses external web services to look up the "public" IP address.
//
// Each service must speak http and return status "200 OK",
// with an address of the requested family as the first line of the response body.
// Any other status is considered a transient error;
// a body that does not hold a valid address is reported as ErrInvalidAddress.
//
// Services usually answer with the address of the connection they received,
// so the IPv6 URL should point at a host that is only reachable over IPv6.
// An empty ipv6URL disables IPv6 lookups.
func WebSource(ipv4URL, ipv6URL string) (Source, error) {
	ws := &webSource{serviceURLs: map[Family]*url.URL{}}
	for family, u := range map[Family]string{IPv4: ipv4URL, IPv6: ipv6URL} {
		if u == "" {
			continue
		}
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s URL: %w", family, err)
		}
		if pu.Scheme != "http" && pu.Scheme != "https" {
			return nil, fmt.Errorf("%s URL %q must be http or https", family, u)
		}
		ws.serviceURLs[family] = pu
	}
	return ws, nil
}

type webSource struct {
	httpClient  *http.Client
	serviceURLs map[Family]*url.URL
}

// Lookup implements ddns.Source.
func (ws *webSource) Lookup(ctx context.Context, family Family) (netip.Addr, error) {
	u, ok := ws.serviceURLs[family]
	if !ok {
		return netip.Addr{}, fmt.Errorf("no %s lookup service was provided", family)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := ws.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	scanner := bufio.NewReader(io.LimitReader(resp.Body, 512))
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: error parsing IP address from response body: %s", ErrInvalidAddress, err)
	}
	if !family.Matches(ip) {
		return netip.Addr{}, fmt.Errorf("%w: %s returned %s, which is not an %s address", ErrInvalidAddress, u.Host, ip, family)
	}
	return ip.Unmap(), nil
}

func (ws *webSource) SetHTTPClient(c *http.Client) {
	ws.httpClient = c
}
