// Package chain is a randomness source backed by an on-chain VRF consumer
// contract.
package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/jimrubenstein/randomproof/internal/draw/hashing"
	"github.com/jimrubenstein/randomproof/internal/draw/randomness"
	"github.com/jimrubenstein/randomproof/internal/platform/timeouts"
)

// gasHeadroomPercent is added on top of the node's gas estimate.
const gasHeadroomPercent = 20

// Backend is the subset of an Ethereum client the source needs.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

// Config identifies the contract and the signing account.
type Config struct {
	Contract common.Address
	Key      *ecdsa.PrivateKey
	ChainID  *big.Int
}

// DialConfig is Config in its textual form.
type DialConfig struct {
	RPCURL     string
	Contract   string
	PrivateKey string
	// ChainID is queried from the node when zero.
	ChainID int64
}

// Source submits commitments as EIP-1559 transactions and reads randomness
// with view calls.
type Source struct {
	backend  Backend
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer

	// mu serializes nonce allocation.
	mu sync.Mutex
}

var (
	_ randomness.Source         = (*Source)(nil)
	_ randomness.StatusReporter = (*Source)(nil)
)

// New wraps backend.
func New(backend Backend, cfg Config) (*Source, error) {
	if backend == nil {
		return nil, errors.New("chain backend is required")
	}
	if cfg.Contract == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}
	if cfg.Key == nil {
		return nil, errors.New("signing key is required")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	return &Source{
		backend:  backend,
		contract: cfg.Contract,
		key:      cfg.Key,
		from:     crypto.PubkeyToAddress(cfg.Key.PublicKey),
		signer:   types.LatestSignerForChainID(cfg.ChainID),
	}, nil
}

// Dial connects to an Ethereum node and returns a Source using it.
func Dial(ctx context.Context, cfg DialConfig) (*Source, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeouts.ChainCall)
	defer cancel()
	client, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum node: %w", err)
	}
	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(dialCtx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}
	return New(client, Config{
		Contract: common.HexToAddress(cfg.Contract),
		Key:      key,
		ChainID:  chainID,
	})
}

// From returns the signing account.
func (s *Source) From() common.Address {
	return s.from
}

// RequestRandomness sends a submit transaction. The tracking id is the
// transaction hash.
func (s *Source) RequestRandomness(ctx context.Context, entityHash, saltDigest hashing.Digest) (randomness.TrackingID, error) {
	const op = "request randomness"
	if entityHash.IsZero() {
		return "", randomness.ErrInvalidInput("entity hash must not be zero")
	}

	committed, err := s.isCommitted(ctx, entityHash)
	if err != nil {
		return "", s.rpcError(ctx, op, entityHash, err)
	}
	if committed {
		return "", randomness.ErrAlreadyProcessed(entityHash, errors.New("contract reports entity hash committed"))
	}

	data, err := parsedABI.Pack("submit", [32]byte(entityHash), [32]byte(saltDigest))
	if err != nil {
		return "", fmt.Errorf("pack submit: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, timeouts.ChainCall)
	defer cancel()

	nonce, err := s.backend.PendingNonceAt(callCtx, s.from)
	if err != nil {
		return "", s.rpcError(ctx, op, entityHash, err)
	}
	tip, err := s.backend.SuggestGasTipCap(callCtx)
	if err != nil {
		return "", s.rpcError(ctx, op, entityHash, err)
	}
	head, err := s.backend.HeaderByNumber(callCtx, nil)
	if err != nil {
		return "", s.rpcError(ctx, op, entityHash, err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := s.backend.EstimateGas(callCtx, ethereum.CallMsg{
		From:      s.from,
		To:        &s.contract,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
	})
	if err != nil {
		return "", s.rpcError(ctx, op, entityHash, err)
	}
	gas += gas * gasHeadroomPercent / 100

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &s.contract,
		Data:      data,
	}), s.signer, s.key)
	if err != nil {
		return "", fmt.Errorf("sign submit transaction: %w", err)
	}
	if err := s.backend.SendTransaction(callCtx, tx); err != nil {
		return "", s.rpcError(ctx, op, entityHash, err)
	}
	log.Printf("chain source: submitted %s in tx %s", entityHash.Hex(), tx.Hash().Hex())
	return randomness.TrackingID(tx.Hash().Hex()), nil
}

// FetchRandomness reads getRandomness. RPC failures are logged and reported
// as zero.
func (s *Source) FetchRandomness(ctx context.Context, entityHash hashing.Digest) (randomness.Value, error) {
	out, err := s.call(ctx, "getRandomness", [32]byte(entityHash))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return randomness.Value{}, ctxErr
		}
		log.Printf("chain source: fetch %s: %v", entityHash.Hex(), err)
		return randomness.Value{}, nil
	}
	value, err := toUint256(out[0])
	if err != nil {
		log.Printf("chain source: fetch %s: %v", entityHash.Hex(), err)
		return randomness.Value{}, nil
	}
	return randomness.NewValue(value), nil
}

// Status reads getRecord. A zero request id means the hash is unknown.
func (s *Source) Status(ctx context.Context, entityHash hashing.Digest) (randomness.Status, error) {
	out, err := s.call(ctx, "getRecord", [32]byte(entityHash))
	if err != nil {
		return randomness.StatusUnknown, s.rpcError(ctx, "get record", entityHash, err)
	}
	requestID, ok := out[0].(*big.Int)
	if !ok {
		return randomness.StatusUnknown, fmt.Errorf("get record: unexpected request id %T", out[0])
	}
	fulfilled, ok := out[4].(bool)
	if !ok {
		return randomness.StatusUnknown, fmt.Errorf("get record: unexpected fulfilled flag %T", out[4])
	}
	switch {
	case requestID.Sign() == 0:
		return randomness.StatusUnknown, nil
	case fulfilled:
		return randomness.StatusFulfilled, nil
	}
	return randomness.StatusPending, nil
}

func (s *Source) isCommitted(ctx context.Context, entityHash hashing.Digest) (bool, error) {
	out, err := s.call(ctx, "isCommitted", [32]byte(entityHash))
	if err != nil {
		return false, err
	}
	committed, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isCommitted: unexpected result %T", out[0])
	}
	return committed, nil
}

// call runs a view method and unpacks its outputs.
func (s *Source) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeouts.ChainCall)
	defer cancel()
	raw, err := s.backend.CallContract(callCtx, ethereum.CallMsg{From: s.from, To: &s.contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	out, err := parsedABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return out, nil
}

// rpcError maps a node or contract failure to a source error.
func (s *Source) rpcError(ctx context.Context, op string, entityHash hashing.Digest, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if data, ok := revertData(err); ok {
		if isDuplicateEntity(data) {
			return randomness.ErrAlreadyProcessed(entityHash, err)
		}
		if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
			return randomness.ErrInvalidInput("contract reverted: " + reason)
		}
	}
	return randomness.ErrUnavailable(op, err)
}

func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		decoded, decodeErr := hexutil.Decode(data)
		return decoded, decodeErr == nil
	case []byte:
		return data, true
	}
	return nil, false
}

func isDuplicateEntity(data []byte) bool {
	duplicate, ok := parsedABI.Errors["DuplicateEntity"]
	return ok && len(data) >= 4 && bytes.Equal(data[:4], duplicate.ID[:4])
}

func toUint256(v any) (*uint256.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected randomness type %T", v)
	}
	value, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("randomness overflows 256 bits")
	}
	return value, nil
}
