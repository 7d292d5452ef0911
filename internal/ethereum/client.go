// Package ethereum resolves token metadata from chain RPC nodes. The oracle
// only reads: the single lookup it needs is the timestamp of a token's
// earliest transfer, which anchors the backfill range.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrNoTransfers means the RPC node knows no ERC-20 transfers for the token,
// so its creation time cannot be established.
var ErrNoTransfers = errors.New("no transfers found for token")

type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

func NewClient(rpcURL string) (*Client, error) {
	c, err := rpc.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	return &Client{rpc: c, eth: ethclient.NewClient(c)}, nil
}

func (c *Client) Close() { c.rpc.Close() }

type assetTransfersResult struct {
	Transfers []struct {
		BlockNum string `json:"blockNum"`
	} `json:"transfers"`
}

// TokenCreationTime returns the Unix timestamp of the block containing the
// token's earliest ERC-20 transfer. Alchemy's alchemy_getAssetTransfers
// extension provides the ascending transfer index; the block header supplies
// the timestamp.
func (c *Client) TokenCreationTime(ctx context.Context, token string) (int64, error) {
	params := map[string]any{
		"contractAddresses": []string{token},
		"category":          []string{"erc20"},
		"order":             "asc",
		"maxCount":          "0x1",
	}

	var res assetTransfersResult
	if err := c.rpc.CallContext(ctx, &res, "alchemy_getAssetTransfers", params); err != nil {
		return 0, fmt.Errorf("get asset transfers: %w", err)
	}
	if len(res.Transfers) == 0 || res.Transfers[0].BlockNum == "" {
		return 0, ErrNoTransfers
	}

	blockNum, ok := new(big.Int).SetString(res.Transfers[0].BlockNum, 0)
	if !ok {
		return 0, fmt.Errorf("bad block number %q", res.Transfers[0].BlockNum)
	}

	header, err := c.eth.HeaderByNumber(ctx, blockNum)
	if err != nil {
		return 0, fmt.Errorf("get block %s header: %w", blockNum, err)
	}
	return int64(header.Time), nil
}
