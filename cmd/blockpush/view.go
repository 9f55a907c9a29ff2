package main

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/nspcc-dev/blockpush/chain"
	"github.com/nspcc-dev/blockpush/gateway"
	"github.com/nspcc-dev/blockpush/internal/output"
	"github.com/nspcc-dev/blockpush/upload"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
)

type uploadView struct {
	Run            string              `json:"run" yaml:"run"`
	Total          int                 `json:"total" yaml:"total"`
	AlreadyPresent int                 `json:"already_present" yaml:"already_present"`
	Uploaded       int                 `json:"uploaded" yaml:"uploaded"`
	Benign         int                 `json:"benign" yaml:"benign"`
	Batches        int                 `json:"batches" yaml:"batches"`
	Estimate       uint64              `json:"estimate" yaml:"estimate"`
	GAS            string              `json:"gas" yaml:"gas"`
	DryRun         bool                `json:"dry_run" yaml:"dry_run"`
	Transactions   []string            `json:"transactions,omitempty" yaml:"transactions,omitempty"`
	Unresolved     map[string][]string `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`

	verified bool
}

func newUploadView(s upload.Summary) *uploadView {
	v := &uploadView{
		Run:            s.Run.String(),
		Total:          s.Total,
		AlreadyPresent: s.AlreadyPresent,
		Uploaded:       s.Uploaded,
		Benign:         s.Benign,
		Batches:        s.Batches,
		Estimate:       s.Estimate,
		DryRun:         s.DryRun,
		Transactions:   s.Transactions,
	}

	if s.Price != nil {
		v.GAS = fixedn.ToString(s.Price, chain.GASDecimals)
	}

	return v
}

func (v *uploadView) addReport(r gateway.Report) {
	v.verified = true
	v.Unresolved = unresolvedStrings(r)
}

func (v *uploadView) Header() []string {
	return output.KeyValue{}.Header()
}

func (v *uploadView) Rows() [][]string {
	var kv output.KeyValue
	kv.Add("Run", v.Run)
	kv.Add("Blocks", strconv.Itoa(v.Total))
	kv.Add("Already present", strconv.Itoa(v.AlreadyPresent))
	kv.Add("Uploaded", strconv.Itoa(v.Uploaded))
	kv.Add("Benignly rejected", strconv.Itoa(v.Benign))
	kv.Add("Batches", strconv.Itoa(v.Batches))
	kv.Add("Estimated fee units", strconv.FormatUint(v.Estimate, 10))
	if v.GAS != "" {
		kv.Add("Estimated GAS", v.GAS)
	}
	if v.DryRun {
		kv.Add("Dry run", "yes")
	}
	for i, tx := range v.Transactions {
		kv.Add("Transaction #"+strconv.Itoa(i), tx)
	}
	if v.verified {
		kv.Add("Gateways", availability(len(v.Unresolved)))
		eps := make([]string, 0, len(v.Unresolved))
		for ep := range v.Unresolved {
			eps = append(eps, ep)
		}
		slices.Sort(eps)
		for _, ep := range eps {
			kv.Add("Unresolved at "+ep, strings.Join(v.Unresolved[ep], ", "))
		}
	}
	return kv.Rows()
}

type checkView struct {
	Blocks     int                 `json:"blocks" yaml:"blocks"`
	Endpoints  []string            `json:"endpoints" yaml:"endpoints"`
	Unresolved map[string][]string `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}

func newCheckView(ids []cid.Cid, endpoints []string, r gateway.Report) *checkView {
	v := &checkView{
		Blocks:     len(ids),
		Unresolved: unresolvedStrings(r),
	}

	for _, ep := range endpoints {
		ep = gateway.NormalizeEndpoint(ep)
		if !slices.Contains(v.Endpoints, ep) {
			v.Endpoints = append(v.Endpoints, ep)
		}
	}

	return v
}

func (v *checkView) Header() []string {
	return []string{"Endpoint", "Retrieved", "Unresolved"}
}

func (v *checkView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Endpoints))
	for _, ep := range v.Endpoints {
		missed := v.Unresolved[ep]
		rows = append(rows, []string{
			ep,
			strconv.Itoa(v.Blocks-len(missed)) + "/" + strconv.Itoa(v.Blocks),
			strings.Join(missed, ", "),
		})
	}
	return rows
}

func unresolvedStrings(r gateway.Report) map[string][]string {
	if r.OK() {
		return nil
	}

	res := make(map[string][]string, len(r.Unresolved))
	for ep, ids := range r.Unresolved {
		ss := make([]string, len(ids))
		for i := range ids {
			ss[i] = ids[i].String()
		}
		res[ep] = ss
	}

	return res
}

func availability(failed int) string {
	if failed == 0 {
		return "all blocks available"
	}
	return strconv.Itoa(failed) + " endpoint(s) miss blocks"
}
