/*
Package block describes content-addressed data blocks and the sources they are
read from.
*/
package block

import (
	"github.com/ipfs/go-cid"
)

// Block is a single content-addressed unit of data. Blocks are immutable once
// read from a Source: callers must not modify Data.
type Block struct {
	// Content identifier derived from Data.
	ID cid.Cid

	// Raw block bytes.
	Data []byte
}

// Size returns length of the block data in bytes.
func (b Block) Size() int {
	return len(b.Data)
}

// Source produces an ordered sequence of blocks.
type Source interface {
	// Blocks returns all blocks of the source in their original order.
	Blocks() ([]Block, error)
}

// IDs returns content identifiers of the given blocks keeping their order.
func IDs(blocks []Block) []cid.Cid {
	res := make([]cid.Cid, len(blocks))
	for i := range blocks {
		res[i] = blocks[i].ID
	}
	return res
}
