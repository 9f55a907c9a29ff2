/*
Package blockstore implements Blockstore contract storing content-addressed
data blocks.

Blocks are not put into the contract storage: each block is kept in the
invocation script of the transaction calling putBlock, the contract only
verifies the call and announces the block. Contract owner is the account that
deployed the contract, only it can store blocks and update the contract.

Batches of blocks may also be sent to an address with no contract at all. Such
transactions fault but still persist the block data, so the contract is
optional.

# Contract notifications

BlockStored notification. This notification is produced when a block is stored
by the owner.

	BlockStored
	  - name: hash
	    type: Hash256
	  - name: size
	    type: Integer
*/
package blockstore

/*
Contract storage model.

# Summary
Key-value storage format:
 - 'owner' -> interop.Hash160
   account which deployed the contract
 - 'version' -> int
   version of the deployed contract code
*/
