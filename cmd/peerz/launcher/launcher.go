package launcher

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-peerz/attest"
	"github.com/rony4d/go-peerz/flags"
	"github.com/rony4d/go-peerz/inter"
)

// Version of the peerz tools.
const Version = "0.3.0"

var app = newApp()

func configFlags() []cli.Flag {
	var all []cli.Flag
	all = append(all, flags.CommonFlags()...)
	all = append(all, flags.ProtocolFlags()...)
	all = append(all, flags.BridgeFlags()...)
	return all
}

func newApp() *cli.App {
	app := flags.NewApp(Version, "peer incentive protocol tools")
	app.Commands = []cli.Command{
		{
			Name:      "emission",
			Usage:     "Print the reward emission of a day range",
			ArgsUsage: "",
			Action:    emission,
			Flags: append(configFlags(),
				cli.IntFlag{Name: "from", Usage: "First day, counted from the emission start"},
				cli.IntFlag{Name: "to", Usage: "Day after the last one", Value: 365},
			),
		},
		{
			Name:      "peerid",
			Usage:     "Print the protocol id of a libp2p peer ID",
			ArgsUsage: "<libp2p-id|0x-hex>",
			Action:    peerID,
		},
		{
			Name:   "sign",
			Usage:  "Sign a peer report with a validator key",
			Action: signReport,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "key", Usage: "Hex-encoded validator private key"},
				cli.StringFlag{Name: "peer", Usage: "libp2p peer ID or 0x-hex protocol id"},
			},
		},
		{
			Name:   "simulate",
			Usage:  "Run an in-process deployment on a simulated clock",
			Action: simulate,
			Flags:  append(configFlags(), flags.SimulationFlags()...),
		},
		{
			Name:   "dumpconfig",
			Usage:  "Print the merged configuration as TOML",
			Action: dumpConfig,
			Flags:  append(configFlags(), flags.SimulationFlags()...),
		},
	}
	return app
}

// Launch parses args and runs the selected command.
func Launch(args []string) error {
	return app.Run(args)
}

func emission(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	preset, err := cfg.Preset()
	if err != nil {
		return err
	}
	from, to := ctx.Int("from"), ctx.Int("to")
	if from < 0 || to <= from {
		return fmt.Errorf("invalid day range [%d, %d)", from, to)
	}
	sched := preset.Rules.Schedule(0)
	start, end := inter.Timestamp(from)*inter.Day, inter.Timestamp(to)*inter.Day

	w := ctx.App.Writer
	fmt.Fprintf(w, "network:  %s\n", preset.Name)
	fmt.Fprintf(w, "cap:      %s\n", sched.Cap)
	fmt.Fprintf(w, "emitted:  %s\n", sched.Emitted(start, end))
	for _, seg := range sched.Segments(start, end) {
		fmt.Fprintf(w, "day %5d-%-5d rate %s/day amount %s\n", seg.Start.Days(), seg.End.Days(), seg.DailyRate, seg.Amount)
	}
	return nil
}

func peerID(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected one peer id, got %d arguments", ctx.NArg())
	}
	id, err := inter.ParsePeerID(ctx.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, id.String())
	return nil
}

func signReport(ctx *cli.Context) error {
	key, err := crypto.HexToECDSA(trimHex(ctx.String("key")))
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	id, err := inter.ParsePeerID(ctx.String("peer"))
	if err != nil {
		return err
	}
	sig, err := attest.Sign(attest.PeerReportHash(id), key)
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "validator: %s\n", crypto.PubkeyToAddress(key.PublicKey))
	fmt.Fprintf(w, "peer:      %s\n", id)
	fmt.Fprintf(w, "signature: %s\n", sig)
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
