package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/mantle-faultproof/op-node/cmd/batch_decoder/reassemble"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup"
	"github.com/mantlenetworkio/mantle-faultproof/op-node/rollup/derive"
	oplog "github.com/mantlenetworkio/mantle-faultproof/op-service/log"
)

const envPrefix = "BATCH_DECODER"

var (
	InFlag = &cli.StringSliceFlag{
		Name:     "in",
		Usage:    "Batcher transaction data files, one '<l1 block> <hex data>' entry per line",
		Required: true,
		EnvVars:  []string{envPrefix + "_IN"},
	}
	LimitsFlag = &cli.PathFlag{
		Name:    "limits",
		Usage:   "Optional TOML file with channel limits",
		EnvVars: []string{envPrefix + "_LIMITS"},
	}
	RollupConfigFlag = &cli.PathFlag{
		Name:    "rollup.config",
		Usage:   "Optional rollup config JSON file, required to decode span batches",
		EnvVars: []string{envPrefix + "_ROLLUP_CONFIG"},
	}
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "err", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "batch-decoder"
	app.Usage = "Decode the frames, channels and batches of batcher transactions"
	app.Flags = oplog.CLIFlags(envPrefix)
	app.Commands = []*cli.Command{
		{
			Name:   "frames",
			Usage:  "Parse the frames of batcher transaction data",
			Flags:  []cli.Flag{InFlag},
			Action: framesAction,
		},
		{
			Name:   "reassemble",
			Usage:  "Reassemble channels from frames and decode their batches",
			Flags:  []cli.Flag{InFlag, LimitsFlag, RollupConfigFlag},
			Action: reassembleAction,
		},
	}
	return app
}

func newLogger(ctx *cli.Context) (log.Logger, error) {
	logCfg, err := oplog.ReadCLIConfig(ctx)
	if err != nil {
		return nil, err
	}
	return oplog.NewLogger(ctx.App.ErrWriter, logCfg), nil
}

func readTxData(ctx *cli.Context) ([]reassemble.TxData, error) {
	var txs []reassemble.TxData
	for _, path := range ctx.StringSlice(InFlag.Name) {
		data, err := reassemble.ReadTxDataFile(path)
		if err != nil {
			return nil, err
		}
		txs = append(txs, data...)
	}
	return txs, nil
}

func framesAction(ctx *cli.Context) error {
	txs, err := readTxData(ctx)
	if err != nil {
		return err
	}
	frames, invalid := reassemble.Frames(txs)
	return writeJSON(ctx.App.Writer, struct {
		Frames  []reassemble.FrameSummary  `json:"frames"`
		Invalid []reassemble.InvalidFrames `json:"invalid,omitempty"`
	}{Frames: frames, Invalid: invalid})
}

func reassembleAction(ctx *cli.Context) error {
	logger, err := newLogger(ctx)
	if err != nil {
		return err
	}
	limits := derive.DefaultLimits()
	if path := ctx.Path(LimitsFlag.Name); path != "" {
		limits, err = derive.LoadLimits(path)
		if err != nil {
			return err
		}
	}
	var rollupCfg *rollup.Config
	if path := ctx.Path(RollupConfigFlag.Name); path != "" {
		rollupCfg, err = loadRollupConfig(path)
		if err != nil {
			return err
		}
	}
	txs, err := readTxData(ctx)
	if err != nil {
		return err
	}
	channels := reassemble.NewReassembler(logger, rollupCfg, limits).Channels(txs)
	return writeJSON(ctx.App.Writer, channels)
}

func loadRollupConfig(path string) (*rollup.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rollup config: %w", err)
	}
	defer f.Close()
	var cfg rollup.Config
	if err := cfg.ParseRollupConfig(f); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
