package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ModuleAddress derives the deterministic address of a protocol-owned module
// account from its name. Module accounts have no key material; the address
// only serves as a caller identity and custody account inside the state
// machine.
func ModuleAddress(name string) Address {
	hash := ethcrypto.Keccak256([]byte("module/" + name))
	return NewAddress(LoanPrefix, hash[len(hash)-20:])
}
