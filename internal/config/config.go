// Package config loads the daemon's flag-based configuration using the
// standard library's flag package.
package config

import (
	"flag"
	"fmt"

	"github.com/hostinger/ipnib/internal/nib"
)

// Config is the daemon's full runtime configuration: the NIB's pool
// capacities and feature switches, plus the outer daemon settings
// exposed as command-line flags.
type Config struct {
	NIB nib.Config

	Interface   string
	APIAddress  string
	SnifferMode bool
	Debug       bool
}

// Parse populates a Config from command-line flags.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("neigh2route", flag.ContinueOnError)

	cfg := Config{NIB: nib.DefaultConfig()}

	sniffer := fs.Bool("sniffer", false, "Enable NDP sniffer mode for tap interfaces")
	iface := fs.String("interface", "", "Interface to monitor for neighbor updates")
	apiAddr := fs.String("port", "127.0.0.1:54321", "Address for the API server")
	debug := fs.Bool("debug", false, "Enable debug logging")

	multihop := fs.Bool("multihop-p6c", cfg.NIB.MultihopP6C, "Enable 6LoWPAN multihop prefix/context distribution (ABR table)")
	arsm := fs.Bool("arsm", cfg.NIB.ARSM, "Enable the address-resolution state machine")
	sixln := fs.Bool("6ln", cfg.NIB.SixLN, "Act as a 6LoWPAN node")
	sixlr := fs.Bool("6lr", cfg.NIB.SixLR, "Act as a 6LoWPAN router (enables address registration)")
	queuePkt := fs.Bool("queue-pkt", cfg.NIB.QueuePkt, "Queue packets against incomplete neighbor-cache entries")

	nibNumof := fs.Int("nib-numof", cfg.NIB.NIBNumof, "On-link node pool capacity")
	offlNumof := fs.Int("offl-numof", cfg.NIB.OfflNumof, "Off-link entry pool capacity")
	drNumof := fs.Int("dr-numof", cfg.NIB.DefaultRouterNumof, "Default router list capacity")
	abrNumof := fs.Int("abr-numof", cfg.NIB.AbrNumof, "ABR table capacity")
	netifNumof := fs.Int("netif-numof", cfg.NIB.NetifNumof, "Interface table capacity")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.SnifferMode = *sniffer
	cfg.Interface = *iface
	cfg.APIAddress = *apiAddr
	cfg.Debug = *debug

	cfg.NIB.MultihopP6C = *multihop
	cfg.NIB.ARSM = *arsm
	cfg.NIB.SixLN = *sixln
	cfg.NIB.SixLR = *sixlr
	cfg.NIB.QueuePkt = *queuePkt
	cfg.NIB.NIBNumof = *nibNumof
	cfg.NIB.OfflNumof = *offlNumof
	cfg.NIB.DefaultRouterNumof = *drNumof
	cfg.NIB.AbrNumof = *abrNumof
	cfg.NIB.NetifNumof = *netifNumof

	if cfg.SnifferMode && cfg.Interface == "" {
		return Config{}, fmt.Errorf("config: --interface is required when --sniffer is set")
	}
	if cfg.NIB.NIBNumof <= 0 || cfg.NIB.OfflNumof <= 0 || cfg.NIB.DefaultRouterNumof <= 0 || cfg.NIB.NetifNumof <= 0 {
		return Config{}, fmt.Errorf("config: pool capacities must be positive")
	}
	if cfg.NIB.MultihopP6C && cfg.NIB.AbrNumof <= 0 {
		return Config{}, fmt.Errorf("config: --abr-numof must be positive when --multihop-p6c is set")
	}

	return cfg, nil
}
