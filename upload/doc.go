/*
Package upload implements uploading of content-addressed blocks into the
fee-metered blockchain storage.

Upload runs the whole procedure: each block is probed for existence at the
destination read endpoint, blocks which are still missing are split into
batches limited by both action count and cumulative size, the fee of the batch
set is estimated and, after confirmation, batches are submitted one by one.
Benign rejections of a batch (e.g. there is no storage contract at the target
address) do not interrupt the procedure.

The package is independent of the concrete ledger: transaction composition and
fee schedule retrieval are abstracted by [Submitter] and [FeeSource].
*/
package upload
