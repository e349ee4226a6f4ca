// Package chain wraps the EVM JSON-RPC endpoint used by the execution
// agents: ERC-20 reads, signed approve and swap transactions, and bounded
// receipt polling.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"intent-orchestrator/internal/common/config"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
)

var (
	selectorDecimals = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
	selectorApprove  = []byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)
)

// ReceiptState is the terminal classification of a watched transaction.
type ReceiptState string

const (
	ReceiptSuccess  ReceiptState = "success"
	ReceiptReverted ReceiptState = "reverted"
	// ReceiptPending means the watch window expired before the transaction
	// was mined. The transaction may still land later.
	ReceiptPending ReceiptState = "pending"
)

// Receipt summarizes what the watcher saw.
type Receipt struct {
	State       ReceiptState
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Client is the signing EVM client. Safe for concurrent use apart from the
// node's own nonce ordering; the agents serialize sends per intent.
type Client struct {
	eth            *ethclient.Client
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	from           common.Address
	spgCollection  common.Address
	registryAddr   common.Address
	confirmations  uint64
	receiptTimeout time.Duration
	pollInterval   time.Duration
	log            logger.Logger
}

func New(ctx context.Context, cfg config.ChainConfig, log logger.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse chain private key: %w", err)
	}

	receiptTimeout := time.Duration(cfg.ReceiptTimeout) * time.Millisecond
	if receiptTimeout <= 0 {
		receiptTimeout = 90 * time.Second
	}
	pollInterval := time.Duration(cfg.PollInterval) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 1500 * time.Millisecond
	}

	return &Client{
		eth:            eth,
		chainID:        big.NewInt(cfg.ChainID),
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		spgCollection:  common.HexToAddress(cfg.SPGCollection),
		registryAddr:   common.HexToAddress(cfg.RegistryAddress),
		confirmations:  cfg.Confirmations,
		receiptTimeout: receiptTimeout,
		pollInterval:   pollInterval,
		log:            log,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// From is the signing account's address.
func (c *Client) From() common.Address { return c.from }

// Decimals reads the ERC-20 decimals of a token via eth_call.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: selectorDecimals}, nil)
	if err != nil {
		return 0, ierr.NewChainReadError(fmt.Sprintf("decimals of %s", token.Hex()), err)
	}
	if len(out) == 0 {
		return 0, ierr.NewChainReadError(fmt.Sprintf("decimals of %s", token.Hex()), fmt.Errorf("empty call result"))
	}
	value := new(big.Int).SetBytes(out)
	if !value.IsUint64() || value.Uint64() > 255 {
		return 0, ierr.NewChainReadError(fmt.Sprintf("decimals of %s", token.Hex()), fmt.Errorf("out of range value %s", value))
	}
	return uint8(value.Uint64()), nil
}

// Approve sends an ERC-20 approve for spender and returns the transaction
// hash. It does not wait for inclusion.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data := make([]byte, 0, 4+32+32)
	data = append(data, selectorApprove...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

	hash, err := c.sendTransaction(ctx, token, data, big.NewInt(0))
	if err != nil {
		return common.Hash{}, ierr.NewApprovalFailedError(err)
	}
	return hash, nil
}

// ExecuteSwap sends one route leg as a signed transaction.
func (c *Client) ExecuteSwap(ctx context.Context, target common.Address, callData []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	hash, err := c.sendTransaction(ctx, target, callData, value)
	if err != nil {
		return common.Hash{}, ierr.NewSwapFailedError(err)
	}
	return hash, nil
}

func (c *Client) sendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	c.log.Info("transaction sent", map[string]interface{}{
		"tx_hash": signed.Hash().Hex(),
		"to":      to.Hex(),
		"nonce":   nonce,
	})
	return signed.Hash(), nil
}

// WaitForReceipt polls for the receipt of hash at a fixed interval until it
// is mined with the configured confirmation depth or the watch window
// expires. Expiry is reported as a pending receipt, not an error: the
// transaction is not known to have failed.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	deadline := time.Now().Add(c.receiptTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			confirmed, cerr := c.isConfirmed(ctx, receipt)
			if cerr != nil {
				return nil, cerr
			}
			if confirmed {
				state := ReceiptSuccess
				if receipt.Status != types.ReceiptStatusSuccessful {
					state = ReceiptReverted
				}
				return &Receipt{
					State:       state,
					TxHash:      hash,
					BlockNumber: receipt.BlockNumber.Uint64(),
					GasUsed:     receipt.GasUsed,
				}, nil
			}
		}

		if time.Now().After(deadline) {
			c.log.Warn("receipt watch window expired", map[string]interface{}{
				"tx_hash": hash.Hex(),
				"timeout": c.receiptTimeout.String(),
			})
			return &Receipt{State: ReceiptPending, TxHash: hash}, nil
		}

		select {
		case <-ctx.Done():
			return &Receipt{State: ReceiptPending, TxHash: hash}, nil
		case <-ticker.C:
		}
	}
}

func (c *Client) isConfirmed(ctx context.Context, receipt *types.Receipt) (bool, error) {
	if c.confirmations <= 1 {
		return true, nil
	}
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return false, ierr.NewChainReadError("head block number", err)
	}
	return head >= receipt.BlockNumber.Uint64()+c.confirmations-1, nil
}
