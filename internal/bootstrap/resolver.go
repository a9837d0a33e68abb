package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ChordDHT/internal/config"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"

	"github.com/miekg/dns"
)

// DNSBootstrap discovers bootstrap peers by querying DNS directly
// (SRV, or A/AAAA with a fixed port), without requiring any cloud
// credentials. It never registers anything: the records are assumed to
// be maintained externally.
type DNSBootstrap struct {
	cfg config.DNSConfig
	lgr logger.Logger
}

func NewDNSBootstrap(cfg config.DNSConfig, lgr logger.Logger) *DNSBootstrap {
	return &DNSBootstrap{cfg: cfg, lgr: lgr}
}

// Register does nothing in DNS mode.
func (d *DNSBootstrap) Register(ctx context.Context, node *domain.Node) error {
	return nil
}

// Deregister does nothing in DNS mode.
func (d *DNSBootstrap) Deregister(ctx context.Context, node *domain.Node) error {
	return nil
}

// Discover resolves the configured name into a list of "host:port"
// addresses. A resolution failure or an empty answer yields an empty
// list, not an error: a node that discovers nobody starts its own ring.
func (d *DNSBootstrap) Discover(ctx context.Context) ([]string, error) {
	client := &dns.Client{Timeout: 2 * time.Second}

	server := d.cfg.Resolver
	if server == "" {
		server = "8.8.8.8:53" // default fallback
	} else if !strings.Contains(server, ":") {
		server += ":53"
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if d.cfg.SRV {
		return d.discoverSRV(ctx, client, server)
	}
	return d.discoverHost(ctx, client, server)
}

func (d *DNSBootstrap) discoverSRV(ctx context.Context, client *dns.Client, server string) ([]string, error) {
	name := fmt.Sprintf("_%s._%s.%s", d.cfg.Service, d.cfg.Proto, d.cfg.Name)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	d.lgr.Info("Sending SRV query", logger.F("qname", msg.Question[0].Name))

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		d.lgr.Warn("SRV lookup failed", logger.F("err", err), logger.F("qname", name))
		return []string{}, nil
	}
	if len(in.Answer) == 0 {
		d.lgr.Warn("SRV lookup returned no answers", logger.F("qname", name))
		return []string{}, nil
	}

	// map target name → IPs from the Additional section
	srvTargets := map[string][]string{}
	for _, extra := range in.Extra {
		switch rr := extra.(type) {
		case *dns.A:
			name := strings.TrimSuffix(rr.Hdr.Name, ".")
			srvTargets[name] = append(srvTargets[name], rr.A.String())
		case *dns.AAAA:
			name := strings.TrimSuffix(rr.Hdr.Name, ".")
			srvTargets[name] = append(srvTargets[name], rr.AAAA.String())
		}
	}

	out := []string{}
	for _, ans := range in.Answer {
		srv, ok := ans.(*dns.SRV)
		if !ok {
			continue
		}
		target := strings.TrimSuffix(srv.Target, ".")
		ips, found := srvTargets[target]

		if !found {
			// fallback: query A/AAAA for the SRV target
			msgA := new(dns.Msg)
			msgA.SetQuestion(dns.Fqdn(target), dns.TypeA)
			if inA, _, errA := client.ExchangeContext(ctx, msgA, server); errA == nil {
				for _, a := range inA.Answer {
					if arec, ok := a.(*dns.A); ok {
						ips = append(ips, arec.A.String())
					}
				}
			}
			msgAAAA := new(dns.Msg)
			msgAAAA.SetQuestion(dns.Fqdn(target), dns.TypeAAAA)
			if inAAAA, _, errAAAA := client.ExchangeContext(ctx, msgAAAA, server); errAAAA == nil {
				for _, a := range inAAAA.Answer {
					if aaaa, ok := a.(*dns.AAAA); ok {
						ips = append(ips, aaaa.AAAA.String())
					}
				}
			}
		}

		for _, ip := range ips {
			if strings.Contains(ip, ":") { // IPv6
				out = append(out, fmt.Sprintf("[%s]:%d", ip, srv.Port))
			} else {
				out = append(out, fmt.Sprintf("%s:%d", ip, srv.Port))
			}
		}
	}
	return out, nil
}

func (d *DNSBootstrap) discoverHost(ctx context.Context, client *dns.Client, server string) ([]string, error) {
	name := dns.Fqdn(d.cfg.Name)
	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeA)

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		d.lgr.Warn("A lookup failed", logger.F("err", err), logger.F("qname", name))
		return []string{}, nil
	}

	out := []string{}
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			out = append(out, fmt.Sprintf("%s:%d", a.A.String(), d.cfg.Port))
		}
	}

	// fallback AAAA
	if len(out) == 0 {
		msg6 := new(dns.Msg)
		msg6.SetQuestion(name, dns.TypeAAAA)
		if in6, _, err6 := client.ExchangeContext(ctx, msg6, server); err6 == nil {
			for _, ans := range in6.Answer {
				if aaaa, ok := ans.(*dns.AAAA); ok {
					out = append(out, fmt.Sprintf("[%s]:%d", aaaa.AAAA.String(), d.cfg.Port))
				}
			}
		}
	}

	if len(out) == 0 {
		d.lgr.Warn("Host lookup returned no addresses", logger.F("qname", name))
	}
	return out, nil
}
