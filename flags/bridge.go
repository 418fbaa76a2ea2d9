package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// BridgeFlags covers the message bridge between the incentive and token chains.

func BridgeFlags() []cli.Flag {
	return []cli.Flag{
		cli.UintFlag{
			Name:  "bridge.l2chain",
			Usage: "Bridge chain id of the incentive chain",
		},
		cli.UintFlag{
			Name:  "bridge.l1chain",
			Usage: "Bridge chain id of the token chain",
		},
		cli.StringFlag{
			Name:  "bridge.basefee",
			Usage: "Fee charged per message, in native wei (decimal)",
		},
		cli.StringFlag{
			Name:  "bridge.bytefee",
			Usage: "Fee charged per payload byte, in native wei (decimal)",
		},
		cli.DurationFlag{
			Name:  "bridge.interval",
			Usage: "How often queued packets are delivered",
		},
		cli.IntFlag{
			Name:  "store.cache",
			Usage: "Megabytes of memory allocated to the failed-message store",
		},
		cli.IntFlag{
			Name:  "store.handles",
			Usage: "File handles of the failed-message store",
		},
	}
}

// SimulationFlags isolates the knobs of the simulate command.
func SimulationFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "sim.peers",
			Usage: "Number of simulated peers",
			Value: 5,
		},
		cli.IntFlag{
			Name:  "sim.validators",
			Usage: "Number of fake validators",
			Value: 3,
		},
		cli.IntFlag{
			Name:  "sim.days",
			Usage: "Simulated days",
			Value: 120,
		},
		cli.DurationFlag{
			Name:  "sim.step",
			Usage: "Simulated time between rounds of reports and claims",
			Value: 24 * time.Hour,
		},
	}
}
