package main

import (
	"context"
	"fmt"
	"strconv"

	blockchainApp "github.com/fd1az/mordor-monitor/business/blockchain/app"
	"github.com/fd1az/mordor-monitor/business/blockchain/infra/ethereum"
	"github.com/fd1az/mordor-monitor/internal/apperror"
)

const maxListedTxs = 10

// node connects to the configured RPC endpoint. Call the returned closer
// when done.
func (c *cli) node(ctx context.Context) (*blockchainApp.BlockchainService, func(), error) {
	scfg := ethereum.DefaultSourceConfig(c.cfg.Node.RPCURL)
	scfg.RequestTimeout = c.cfg.Node.RequestTimeout
	scfg.RequestsPerSecond = c.cfg.Node.RequestsPerSecond
	scfg.Burst = c.cfg.Node.Burst

	src, err := ethereum.NewSource(scfg, c.log)
	if err != nil {
		return nil, nil, err
	}
	if err := src.Connect(ctx); err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return blockchainApp.NewBlockchainService(src), func() { _ = src.Close() }, nil
}

func (c *cli) status(ctx context.Context, _ []string) error {
	heading(c.out, "Mordor Testnet Status", 50)

	svc, closeNode, err := c.node(ctx)
	if err != nil {
		return err
	}
	defer closeNode()

	info, err := svc.NodeInfo(ctx)
	if err != nil {
		return err
	}

	syncing := okStyle.Render("No")
	if info.Syncing {
		syncing = failStyle.Render("Yes")
	}

	h := info.Latest
	rows := [][2]string{
		{"Chain ID", strconv.FormatUint(info.ChainID, 10)},
		{"Current Block", strconv.FormatUint(h.Number, 10)},
		{"Syncing", syncing},
		{"Gas Price", fmt.Sprintf("%s wei (%s Gwei)", info.GasPrice.Wei.Dec(), info.GasPrice.Gwei.StringFixed(2))},
		{"Latest Block Time", utc(h.Timestamp)},
		{"Transactions", strconv.FormatUint(uint64(h.TxCount), 10)},
		{"Gas Used", fmt.Sprintf("%d / %d (%.2f%%)", h.GasUsed, h.GasLimit, percentOf(h.GasUsed, h.GasLimit))},
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, fieldTable([2]string{"Metric", "Value"}, rows))
	return nil
}

func (c *cli) block(ctx context.Context, args []string) error {
	var number *uint64
	if len(args) > 0 && args[0] != "latest" {
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("block number %q", args[0]))
		}
		number = &n
	}

	svc, closeNode, err := c.node(ctx)
	if err != nil {
		return err
	}
	defer closeNode()

	b, err := svc.Block(ctx, number)
	if err != nil {
		return err
	}

	h := b.Header
	heading(c.out, fmt.Sprintf("Block #%d", h.Number), 50)

	rows := [][2]string{
		{"Hash", h.Hash.Hex()},
		{"Parent Hash", h.ParentHash.Hex()},
		{"Timestamp", utc(h.Timestamp)},
		{"Miner", b.Miner.Hex()},
		{"Difficulty", h.Difficulty.Dec()},
		{"Gas Limit", strconv.FormatUint(h.GasLimit, 10)},
		{"Gas Used", fmt.Sprintf("%d (%.2f%%)", h.GasUsed, percentOf(h.GasUsed, h.GasLimit))},
		{"Transactions", strconv.Itoa(len(b.Txs))},
		{"Size", fmt.Sprintf("%d bytes", b.Size)},
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, fieldTable([2]string{"Field", "Value"}, rows))

	if len(b.Txs) == 0 {
		return nil
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, valueStyle.Bold(true).Render("Transactions:"))
	for i, tx := range b.Txs[:min(len(b.Txs), maxListedTxs)] {
		to := "contract creation"
		if tx.To != nil {
			to = tx.To.Hex()
		}
		fmt.Fprintf(c.out, "  %d. %s -> %s (%d gas @ %s wei)\n",
			i+1, keyStyle.Render(tx.From.Hex()), okStyle.UnsetBold().Render(to), tx.Gas, tx.GasPrice.Dec())
	}
	if len(b.Txs) > maxListedTxs {
		fmt.Fprintf(c.out, "  ... and %d more\n", len(b.Txs)-maxListedTxs)
	}
	return nil
}
