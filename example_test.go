package ddns_test

import (
	"context"
	"log"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/auditlog"
)

func ExampleNew() {
	logger, _ := zap.NewProduction()
	s, err := ddns.New(
		"home.example.com",
		ddns.UsingCloudflare(os.Getenv("DDNS_API_TOKEN"), os.Getenv("DDNS_ZONE_ID")),
		ddns.UsingSource(ddns.InterfaceSource("eth0")),
		ddns.WithLogger(logger),
		ddns.WithAuditLog(auditlog.New("logs/ddns-log.json", logger)),
	)
	if err != nil {
		log.Fatalf("error creating syncer: %s", err)
	}
	// push the current address once:
	if err := s.RunStartup(context.Background()); err != nil {
		log.Fatalf("ddns update failed: %s", err)
	}
}

func ExampleWebSource() {
	// Any service that answers with the client address in the body will do.
	src, err := ddns.WebSource("https://checkip.amazonaws.com/", "https://ipv6.icanhazip.com/")
	if err != nil {
		log.Fatal(err)
	}
	s, err := ddns.New("home.example.com",
		ddns.UsingCloudflare(os.Getenv("DDNS_API_TOKEN"), os.Getenv("DDNS_ZONE_ID")),
		ddns.UsingSource(src),
		ddns.WithIPv6(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := s.RunCycle(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func ExampleSyncer_RunDaemon() {
	s, err := ddns.New("home.example.com",
		ddns.UsingCloudflare(os.Getenv("DDNS_API_TOKEN"), os.Getenv("DDNS_ZONE_ID")),
		ddns.UsingSource(ddns.DNSSource(ddns.DefaultIPv4Server, "")),
	)
	if err != nil {
		log.Fatal(err)
	}

	// check every 5 minutes until interrupted:
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	s.RunDaemon(ctx, 5*time.Minute)
}

func ExampleSourceFunc() {
	fn := func(ctx context.Context, family ddns.Family) (netip.Addr, error) {
		select {
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		case <-time.After(100 * time.Millisecond): // simulating some lookup method
			return netip.ParseAddr("10.0.0.10")
		}
	}
	s, err := ddns.New("home.example.com",
		ddns.UsingCloudflare(os.Getenv("DDNS_API_TOKEN"), os.Getenv("DDNS_ZONE_ID")),
		ddns.UsingSource(ddns.SourceFunc(fn)),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := s.RunCycle(context.Background()); err != nil {
		log.Fatal(err)
	}
}
