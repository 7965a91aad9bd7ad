package orchestrator

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"chainswitch/internal/model"
)

// swapID derives a collision-resistant identifier from the swap content plus
// a per-process nonce so repeated identical intents never collide.
func swapID(user, tokenIn, tokenOut common.Address, amountIn []byte, source, dest model.ChainID, nonce uint64) string {
	var chains [24]byte
	binary.BigEndian.PutUint64(chains[0:8], uint64(source))
	binary.BigEndian.PutUint64(chains[8:16], uint64(dest))
	binary.BigEndian.PutUint64(chains[16:24], nonce)

	hash := crypto.Keccak256Hash(
		user.Bytes(),
		tokenIn.Bytes(),
		tokenOut.Bytes(),
		amountIn,
		chains[:],
	)
	return hash.Hex()
}
