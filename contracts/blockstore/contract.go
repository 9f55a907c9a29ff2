package blockstore

import (
	"github.com/nspcc-dev/blockpush/common"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/crypto"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

const (
	ownerKey   = "owner"
	versionKey = "version"
)

// ErrEmptyBlock is thrown by PutBlock on empty data.
const ErrEmptyBlock = "empty block"

// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	ctx := storage.GetContext()

	if isUpdate {
		common.CheckUpdate(storage.Get(ctx, versionKey).(int))
		storage.Put(ctx, versionKey, common.Version)
		return
	}

	tx := runtime.GetScriptContainer()

	storage.Put(ctx, ownerKey, tx.Sender)
	storage.Put(ctx, versionKey, common.Version)

	runtime.Log("blockstore contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by the contract owner.
func Update(script []byte, manifest []byte, data any) {
	common.CheckOwnerWitness(Owner())

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, script, manifest, data)
	runtime.Log("blockstore contract updated")
}

// PutBlock accepts single data block. The block itself stays in the
// transaction script, PutBlock only produces BlockStored notification with
// SHA-256 hash of the data. Can be invoked only by the contract owner.
func PutBlock(data []byte) {
	if len(data) == 0 {
		panic(ErrEmptyBlock)
	}

	common.CheckOwnerWitness(Owner())

	runtime.Notify("BlockStored", crypto.Sha256(data), len(data))
}

// Owner returns account allowed to store blocks.
func Owner() interop.Hash160 {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, ownerKey).(interop.Hash160)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}
