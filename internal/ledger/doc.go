// Package ledger implements the append-only, hash-linked vote ledger.
//
// # Core Components
//
// Block: one vote event with its position in the chain, the hash of its
// predecessor and its own SHA-256 hash, computed once at construction.
//
// Chain: the ordered sequence of blocks, anchored by a genesis block whose
// previous hash is "0". Blocks are added with AddBlock, and a whole stored
// sequence can be swapped in with LoadChain.
//
// # Verification
//
// Verify walks the chain and reports every violation it finds: a wrong
// genesis sentinel, a gap in indices, a broken previousHash link, or a stored
// hash that no longer matches the block contents. IsChainValid reduces the
// report to a boolean.
//
// A Chain does no locking of its own. Callers that share one between
// goroutines serialize access themselves.
package ledger
