package ethereum

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/mordor-monitor/business/blockchain/domain"
	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

// fakeNode answers the handful of JSON-RPC methods Source uses.
type fakeNode struct {
	mu      sync.Mutex
	blocks  map[uint64]*types.Header
	calls   map[string]int
	syncing bool
	fail    bool
}

func newFakeNode(heights ...uint64) *fakeNode {
	n := &fakeNode{blocks: make(map[uint64]*types.Header), calls: make(map[string]int)}
	parent := common.Hash{}
	for _, h := range heights {
		head := &types.Header{
			Number:      new(big.Int).SetUint64(h),
			ParentHash:  parent,
			Time:        1_700_000_000 + h*14,
			Difficulty:  big.NewInt(131_072),
			GasLimit:    8_000_000,
			UncleHash:   types.EmptyUncleHash,
			TxHash:      types.EmptyTxsHash,
			ReceiptHash: types.EmptyReceiptsHash,
		}
		n.blocks[h] = head
		parent = head.Hash()
	}
	return n
}

func (n *fakeNode) latest() *types.Header {
	var top *types.Header
	for _, h := range n.blocks {
		if top == nil || h.Number.Cmp(top.Number) > 0 {
			top = h
		}
	}
	return top
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[req.Method]++

	if n.fail {
		http.Error(w, "node down", http.StatusBadGateway)
		return
	}

	var result any
	switch req.Method {
	case "eth_chainId":
		result = "0x3f"
	case "eth_gasPrice":
		result = "0x3b9aca00"
	case "eth_syncing":
		if n.syncing {
			result = map[string]string{"startingBlock": "0x0", "currentBlock": "0x1", "highestBlock": "0x10"}
		} else {
			result = false
		}
	case "eth_getBlockByNumber":
		var tag string
		_ = json.Unmarshal(req.Params[0], &tag)
		var head *types.Header
		if tag == "latest" {
			head = n.latest()
		} else if num, ok := new(big.Int).SetString(tag[2:], 16); ok {
			head = n.blocks[num.Uint64()]
		}
		result = rpcBlock(head)
	case "eth_getBlockByHash":
		var hash common.Hash
		_ = json.Unmarshal(req.Params[0], &hash)
		var found *types.Header
		for _, h := range n.blocks {
			if h.Hash() == hash {
				found = h
			}
		}
		result = rpcBlock(found)
	default:
		http.Error(w, "unsupported "+req.Method, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func rpcBlock(head *types.Header) any {
	if head == nil {
		return nil
	}
	raw, _ := json.Marshal(head)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	fields["transactions"] = []any{}
	fields["uncles"] = []any{}
	return fields
}

func newTestSource(t *testing.T, node *fakeNode) *Source {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	cfg := DefaultSourceConfig(srv.URL)
	cfg.RequestsPerSecond = 0
	cfg.BreakerFailures = 2
	cfg.BreakerTimeout = time.Hour

	s, err := NewSource(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSource_Blocks(t *testing.T) {
	node := newFakeNode(100, 101, 102)
	s := newTestSource(t, node)
	ctx := context.Background()

	latest, err := s.LatestBlock(ctx)
	if err != nil {
		t.Fatalf("LatestBlock() error = %v", err)
	}
	if latest.Number != 102 || latest.Hash != node.blocks[102].Hash() {
		t.Errorf("latest = #%d %s", latest.Number, latest.Hash)
	}
	if latest.ParentHash != node.blocks[101].Hash() {
		t.Error("parent hash mismatch")
	}

	h, err := s.BlockByNumber(ctx, 100)
	if err != nil || h.Number != 100 {
		t.Fatalf("BlockByNumber(100) = %d, %v", h.Number, err)
	}

	if s.State() != domain.StateConnected {
		t.Errorf("State = %s", s.State())
	}

	// 101 was never fetched, so this goes to the node; 102 is cached.
	if _, err := s.BlockByHash(ctx, node.blocks[101].Hash()); err != nil {
		t.Fatalf("BlockByHash(101) error = %v", err)
	}
	if _, err := s.BlockByHash(ctx, node.blocks[102].Hash()); err != nil {
		t.Fatalf("BlockByHash(102) error = %v", err)
	}
	node.mu.Lock()
	byHash := node.calls["eth_getBlockByHash"]
	node.mu.Unlock()
	if byHash != 1 {
		t.Errorf("eth_getBlockByHash calls = %d, want 1 (cache)", byHash)
	}
}

func TestSource_NotFound(t *testing.T) {
	s := newTestSource(t, newFakeNode(1))

	for i := 0; i < 5; i++ {
		_, err := s.BlockByNumber(context.Background(), 999)
		if !apperror.IsCode(err, apperror.CodeBlockNotFound) {
			t.Fatalf("err = %v, want BLOCK_NOT_FOUND", err)
		}
	}
	if s.State() == domain.StateDegraded {
		t.Error("not-found must not trip the breaker")
	}
}

func TestSource_NodeInfoCalls(t *testing.T) {
	node := newFakeNode(5)
	s := newTestSource(t, node)
	ctx := context.Background()

	id, err := s.ChainID(ctx)
	if err != nil || id != 63 {
		t.Errorf("ChainID = %d, %v", id, err)
	}
	if _, err := s.ChainID(ctx); err != nil {
		t.Fatal(err)
	}
	node.mu.Lock()
	if node.calls["eth_chainId"] != 1 {
		t.Errorf("chain id fetched %d times, want 1", node.calls["eth_chainId"])
	}
	node.mu.Unlock()

	price, err := s.SuggestGasPrice(ctx)
	if err != nil || price.Gwei.String() != "1" {
		t.Errorf("SuggestGasPrice = %s, %v", price.Gwei, err)
	}

	syncing, err := s.IsSyncing(ctx)
	if err != nil || syncing {
		t.Errorf("IsSyncing = %v, %v", syncing, err)
	}
	node.mu.Lock()
	node.syncing = true
	node.mu.Unlock()
	if syncing, _ := s.IsSyncing(ctx); !syncing {
		t.Error("IsSyncing should report true")
	}
}

func TestSource_BreakerOpensOnNodeFailure(t *testing.T) {
	node := newFakeNode(1)
	s := newTestSource(t, node)
	ctx := context.Background()

	node.mu.Lock()
	node.fail = true
	node.mu.Unlock()

	for i := 0; i < 2; i++ {
		_, err := s.LatestBlock(ctx)
		if !apperror.IsCode(err, apperror.CodeEthereumRPCError) {
			t.Fatalf("call %d err = %v, want ETHEREUM_RPC_ERROR", i, err)
		}
	}

	_, err := s.LatestBlock(ctx)
	if !apperror.IsCode(err, apperror.CodeCircuitOpen) {
		t.Fatalf("err = %v, want CIRCUIT_OPEN", err)
	}
	if s.State() != domain.StateDegraded {
		t.Errorf("State = %s, want degraded", s.State())
	}
	if !apperror.IsTransient(err) {
		t.Error("open circuit should be transient")
	}
}
