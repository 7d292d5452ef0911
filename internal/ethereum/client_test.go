package ethereum_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zeru/price-oracle/internal/ethereum"
)

var (
	zeroHash  = "0x" + strings.Repeat("0", 64)
	zeroBloom = "0x" + strings.Repeat("0", 512)
	zeroAddr  = "0x" + strings.Repeat("0", 40)
)

// headerJSON builds a minimal valid block header payload for the given
// block number and timestamp.
func headerJSON(number string, timestamp int64) string {
	return fmt.Sprintf(`{
		"parentHash": %q, "sha3Uncles": %q, "miner": %q,
		"stateRoot": %q, "transactionsRoot": %q, "receiptsRoot": %q,
		"logsBloom": %q, "difficulty": "0x0", "number": %q,
		"gasLimit": "0x1c9c380", "gasUsed": "0x0",
		"timestamp": "0x%x", "extraData": "0x",
		"mixHash": %q, "nonce": "0x0000000000000000"
	}`, zeroHash, zeroHash, zeroAddr, zeroHash, zeroHash, zeroHash,
		zeroBloom, number, timestamp, zeroHash)
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCStub serves alchemy_getAssetTransfers and eth_getBlockByNumber.
func newRPCStub(t *testing.T, blockNum string, timestamp int64, transfers bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}

		var result string
		switch req.Method {
		case "alchemy_getAssetTransfers":
			if !transfers {
				result = `{"transfers":[]}`
			} else {
				result = fmt.Sprintf(`{"transfers":[{"blockNum":%q}]}`, blockNum)
			}
		case "eth_getBlockByNumber":
			result = headerJSON(blockNum, timestamp)
		default:
			t.Errorf("unexpected rpc method %s", req.Method)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
}

func TestTokenCreationTime(t *testing.T) {
	created := time.Date(2021, 5, 4, 13, 22, 7, 0, time.UTC).Unix()
	srv := newRPCStub(t, "0x10d4f", created, true)
	defer srv.Close()

	client, err := ethereum.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	got, err := client.TokenCreationTime(context.Background(), "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	if err != nil {
		t.Fatalf("TokenCreationTime: %v", err)
	}
	if got != created {
		t.Fatalf("got %d, want %d", got, created)
	}
	t.Logf("Creation time: %s", time.Unix(got, 0).UTC().Format(time.RFC3339))
}

func TestTokenCreationTime_NoTransfers(t *testing.T) {
	srv := newRPCStub(t, "0x0", 0, false)
	defer srv.Close()

	client, err := ethereum.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.TokenCreationTime(context.Background(), "0x000000000000000000000000000000000000dead")
	if !errors.Is(err, ethereum.ErrNoTransfers) {
		t.Fatalf("expected ErrNoTransfers, got %v", err)
	}
}
