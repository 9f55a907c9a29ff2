package block

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car"
)

// CAR is a Source reading blocks from a CARv1 archive. The archive header is
// not a block and is never returned.
type CAR struct {
	r io.Reader
}

// NewCAR returns Source reading CARv1 archive from r. The reader is consumed
// by the first Blocks call.
func NewCAR(r io.Reader) *CAR {
	return &CAR{r: r}
}

// Blocks implements [Source] interface.
func (x *CAR) Blocks() ([]Block, error) {
	res, _, err := ReadCAR(x.r)
	return res, err
}

// ReadCAR reads all blocks of CARv1 archive from r in archive order and
// returns them along with the roots listed in the archive header. Integrity of
// every block is verified against its identifier.
func ReadCAR(r io.Reader) ([]Block, []cid.Cid, error) {
	cr, err := car.NewCarReaderWithOptions(r, car.WithErrorOnEmptyRoots(false))
	if err != nil {
		return nil, nil, fmt.Errorf("read CAR header: %w", err)
	}

	var res []Block

	for {
		b, err := cr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, nil, fmt.Errorf("read CAR block #%d: %w", len(res), err)
		}

		res = append(res, Block{
			ID:   b.Cid(),
			Data: b.RawData(),
		})
	}

	return res, cr.Header.Roots, nil
}

// ReadCARFile is the same as ReadCAR but reads archive from the file by path.
func ReadCARFile(path string) ([]Block, []cid.Cid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open CAR file: %w", err)
	}
	defer f.Close()

	return ReadCAR(f)
}
