// Copyright 2025 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/blockstm/execution/blockstm"
	"github.com/erigontech/blockstm/execution/ledger"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/execution/vm/simplevm"
	"github.com/erigontech/blockstm/metrics"
	"github.com/erigontech/blockstm/turbo/logging"
	"github.com/erigontech/blockstm/txnprovider"
)

var (
	TxnsFlag = cli.IntFlag{
		Name:  "txns",
		Usage: "Number of user transactions in the block",
		Value: 1000,
	}
	SendersFlag = cli.IntFlag{
		Name:  "senders",
		Usage: "Number of distinct senders. Fewer senders means more conflicts",
		Value: 100,
	}
	KeysFlag = cli.IntFlag{
		Name:  "keys",
		Usage: "Number of state keys transactions read and write",
		Value: 1000,
	}
	HotRatioFlag = cli.Float64Flag{
		Name:  "hot.ratio",
		Usage: "Share of transactions that update the shared counters",
		Value: 0.1,
	}
	ReconfigAtFlag = cli.IntFlag{
		Name:  "reconfig.at",
		Usage: "Replace the user transaction at this position with a reconfiguration. -1 disables",
		Value: -1,
	}
	SeedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "Seed of the generated block",
		Value: 1,
	}
	ConcurrencyFlag = cli.IntFlag{
		Name:  "concurrency",
		Usage: "Number of parallel execution workers",
		Value: blockstm.DefaultConfig().Concurrency,
	}
	StreamFlag = cli.BoolFlag{
		Name:  "stream",
		Usage: "Feed transactions to the parallel executor while it runs",
	}
	ProfileDepsFlag = cli.BoolFlag{
		Name:  "profile.deps",
		Usage: "Build the dependency graph of the parallel run",
	}
	MetricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Serve prometheus metrics on this address, e.g. 127.0.0.1:6061",
	}
)

var benchCommand = cli.Command{
	Action: bench,
	Name:   "bench",
	Usage:  "Execute a generated block sequentially and in parallel and compare the results",
	Flags: []cli.Flag{
		&TxnsFlag,
		&SendersFlag,
		&KeysFlag,
		&HotRatioFlag,
		&ReconfigAtFlag,
		&SeedFlag,
		&ConcurrencyFlag,
		&StreamFlag,
		&ProfileDepsFlag,
		&MetricsAddrFlag,
	},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "blockstm"
	app.Usage = "speculative parallel block execution"
	app.Commands = []*cli.Command{
		&benchCommand,
	}
	app.Flags = logging.Flags
	app.UsageText = app.Name + ` [command] [flags]`
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bench(cliCtx *cli.Context) error {
	logger := logging.SetupLoggerCtx("blockstm", cliCtx)
	ctx, cancel := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if addr := cliCtx.String(MetricsAddrFlag.Name); addr != "" {
		startMetricsServer(addr, logger)
	}

	w := workload{
		Txns:       cliCtx.Int(TxnsFlag.Name),
		Senders:    cliCtx.Int(SendersFlag.Name),
		Keys:       cliCtx.Int(KeysFlag.Name),
		HotRatio:   cliCtx.Float64(HotRatioFlag.Name),
		ReconfigAt: cliCtx.Int(ReconfigAtFlag.Name),
		Seed:       cliCtx.Int64(SeedFlag.Name),
	}
	txns, base, err := w.generate()
	if err != nil {
		return err
	}

	env := vm.NewEnvironment(1, vm.Features{AggregatorsEnabled: true}, simplevm.New, logger)
	cfg := blockstm.DefaultConfig()
	cfg.Concurrency = cliCtx.Int(ConcurrencyFlag.Name)
	cfg.ProfileDeps = cliCtx.Bool(ProfileDepsFlag.Name)

	seqCfg := cfg
	seqCfg.Concurrency = 1
	seqOut, err := blockstm.NewBlockExecutor(seqCfg, logger).ExecuteBlock(ctx, env, txnprovider.NewDefaultTxnProvider(txns), base)
	if err != nil {
		return fmt.Errorf("sequential execution: %w", err)
	}

	var provider txnprovider.TxnProvider[*types.Transaction] = txnprovider.NewDefaultTxnProvider(txns)
	if cliCtx.Bool(StreamFlag.Name) {
		blocking := txnprovider.NewBlockingTxnsProvider[*types.Transaction](len(txns))
		go func() {
			for i, txn := range txns {
				blocking.SetTxn(types.TxnIndex(i), txn)
			}
		}()
		provider = blocking
	}
	parOut, err := blockstm.NewBlockExecutor(cfg, logger).ExecuteBlock(ctx, env, provider, base)
	if err != nil {
		return fmt.Errorf("parallel execution: %w", err)
	}

	if err := compareOutputs(seqOut, parOut); err != nil {
		return err
	}

	seqLedger, err := ledger.NewLedgerUpdateOutput(0, txns, seqOut)
	if err != nil {
		return err
	}
	parLedger, err := ledger.NewLedgerUpdateOutput(0, txns, parOut)
	if err != nil {
		return err
	}
	infos := make([]ledger.TransactionInfo, 0, seqLedger.NumTxns())
	for _, txn := range seqLedger.ToCommit() {
		infos = append(infos, txn.Info)
	}
	if err := parLedger.EnsureTransactionInfosMatch(infos); err != nil {
		return err
	}
	if err := parLedger.EnsureEndsWithStateCheckpoint(); err != nil {
		logger.Warn("[bench] unexpected block ending", "err", err)
	}

	printSummary(cliCtx.App.Writer, seqOut, parOut, parLedger)
	return nil
}

func compareOutputs(seq, par *blockstm.BlockOutput) error {
	if seq.SkippedFrom != par.SkippedFrom {
		return fmt.Errorf("skipped from differs: sequential %d, parallel %d", seq.SkippedFrom, par.SkippedFrom)
	}
	seqKinds, parKinds := seq.Statuses(), par.Statuses()
	for i := range seqKinds {
		if seqKinds[i] != parKinds[i] {
			return fmt.Errorf("txn %d: sequential %s, parallel %s", i, seqKinds[i], parKinds[i])
		}
	}
	seqUpdates, parUpdates := seq.StateUpdates(), par.StateUpdates()
	if len(seqUpdates) != len(parUpdates) {
		return fmt.Errorf("state updates differ: sequential %d keys, parallel %d keys", len(seqUpdates), len(parUpdates))
	}
	for i, s := range seqUpdates {
		p := parUpdates[i]
		if s.Path != p.Path || s.Deleted != p.Deleted || !bytes.Equal(s.Val, p.Val) {
			return fmt.Errorf("state update of %s differs", s.Path)
		}
	}
	return nil
}

func printSummary(w io.Writer, seq, par *blockstm.BlockOutput, lu *ledger.UpdateOutput) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Mode", "Committed", "Executions", "Aborts", "Validation failures", "Gas", "Took"})
	for _, out := range []*blockstm.BlockOutput{seq, par} {
		mode := "sequential"
		if out.Stats.Parallel {
			mode = "parallel"
		}
		t.AppendRow(table.Row{mode, len(out.Outputs), out.Stats.Executions, out.Stats.SpeculativeAborts,
			out.Stats.ValidationFailures, out.GasUsed(), out.Stats.Duration.Round(time.Microsecond)})
	}
	speedup := float64(seq.Stats.Duration) / float64(max(par.Stats.Duration, 1))
	t.AppendFooter(table.Row{"speedup", fmt.Sprintf("%.2fx", speedup)})
	t.Render()

	_, _ = fmt.Fprintf(w, "ledger: %d txns committed at versions [%d, %d), %d retried\n",
		lu.NumTxns(), lu.FirstVersion(), lu.NextVersion(), retried(lu))
	if hashes := lu.TransactionInfoHashes(); len(hashes) > 0 {
		_, _ = fmt.Fprintf(w, "last transaction info: %s\n", hashes[len(hashes)-1])
	}
}

func retried(lu *ledger.UpdateOutput) (n int) {
	for _, s := range lu.StatusesForInputTxns() {
		if s.IsRetry() {
			n++
		}
	}
	return n
}

func startMetricsServer(addr string, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[metrics] server stopped", "err", err)
		}
	}()
	logger.Info("[metrics] serving", "addr", addr)
}
