package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	ierr "intent-orchestrator/internal/common/errors"
)

const registrationWorkflowsABI = `[
  {
    "name": "mintAndRegisterIp",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spgNftContract", "type": "address"},
      {"name": "recipient", "type": "address"},
      {
        "name": "ipMetadata",
        "type": "tuple",
        "components": [
          {"name": "ipMetadataURI", "type": "string"},
          {"name": "ipMetadataHash", "type": "bytes32"},
          {"name": "nftMetadataURI", "type": "string"},
          {"name": "nftMetadataHash", "type": "bytes32"}
        ]
      }
    ],
    "outputs": [
      {"name": "ipId", "type": "address"},
      {"name": "tokenId", "type": "uint256"}
    ]
  }
]`

var workflowsABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(registrationWorkflowsABI))
	if err != nil {
		panic(fmt.Sprintf("parse registration workflows abi: %v", err))
	}
	workflowsABI = parsed
}

// ipMetadataArg mirrors the workflow contract's IPMetadata tuple.
type ipMetadataArg struct {
	IpMetadataURI   string   `abi:"ipMetadataURI"`
	IpMetadataHash  [32]byte `abi:"ipMetadataHash"`
	NftMetadataURI  string   `abi:"nftMetadataURI"`
	NftMetadataHash [32]byte `abi:"nftMetadataHash"`
}

// MintAndRegister mints an NFT in the configured SPG collection and
// registers it as IP in one workflow transaction. Metadata hashes are the
// keccak256 of the serialized documents the URIs point at.
func (c *Client) MintAndRegister(ctx context.Context, ipMetadataURI string, ipMetadataJSON []byte, nftMetadataURI string, nftMetadataJSON []byte) (common.Hash, error) {
	meta := ipMetadataArg{
		IpMetadataURI:   ipMetadataURI,
		IpMetadataHash:  crypto.Keccak256Hash(ipMetadataJSON),
		NftMetadataURI:  nftMetadataURI,
		NftMetadataHash: crypto.Keccak256Hash(nftMetadataJSON),
	}

	data, err := workflowsABI.Pack("mintAndRegisterIp", c.spgCollection, c.from, meta)
	if err != nil {
		return common.Hash{}, ierr.NewMintFailedError(fmt.Errorf("encode mint call: %w", err))
	}

	hash, err := c.sendTransaction(ctx, c.registryAddr, data, big.NewInt(0))
	if err != nil {
		return common.Hash{}, ierr.NewMintFailedError(err)
	}
	return hash, nil
}
