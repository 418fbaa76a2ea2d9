package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// ProtocolFlags holds the consensus-critical knobs (network preset, supply
// curve, quorums). Anything set here overrides the chosen preset.

func ProtocolFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "Network preset (main|test|fake)",
			Value: "fake",
		},
		cli.StringFlag{
			Name:  "emission.cap",
			Usage: "Token supply cap in the smallest unit (decimal)",
		},
		cli.DurationFlag{
			Name:  "emission.startdelay",
			Usage: "Delay between deployment and the start of reward emission",
		},
		cli.StringFlag{
			Name:  "quorum.report",
			Usage: "Validator count fraction needed to accept a peer report (num/den)",
		},
		cli.StringFlag{
			Name:  "quorum.batch",
			Usage: "Stake-weighted fraction needed to accept a network-state batch (num/den)",
		},
		cli.Uint64Flag{
			Name:  "governance.threshold",
			Usage: "Percentage of token supply a governance toggle must exceed",
		},
		cli.Uint64Flag{
			Name:  "validator.share",
			Usage: "Share of emission reserved for validators, in basis points",
		},
	}
}
