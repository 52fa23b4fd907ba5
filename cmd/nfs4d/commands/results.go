package commands

import (
	"strconv"

	"github.com/marmos91/nfs4d/internal/cli/output"
	"github.com/marmos91/nfs4d/internal/cli/script"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// compoundResult is the printable form of a script outcome.
type compoundResult struct {
	Index  int        `json:"index" yaml:"index"`
	Tag    string     `json:"tag,omitempty" yaml:"tag,omitempty"`
	Minor  uint32     `json:"minor" yaml:"minor"`
	Status string     `json:"status" yaml:"status"`
	Ops    []opResult `json:"ops" yaml:"ops"`
}

type opResult struct {
	Op     string `json:"op" yaml:"op"`
	Status string `json:"status" yaml:"status"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type compoundResults []compoundResult

func newCompoundResults(outcomes []*script.Outcome) compoundResults {
	res := make(compoundResults, 0, len(outcomes))
	for i, o := range outcomes {
		c := compoundResult{
			Index:  i,
			Tag:    o.Tag,
			Minor:  o.Minor,
			Status: types.StatusName(o.Status),
			Ops:    make([]opResult, 0, len(o.Ops)),
		}
		for _, op := range o.Ops {
			c.Ops = append(c.Ops, opResult{Op: op.Op, Status: types.StatusName(op.Status), Detail: op.Detail})
		}
		res = append(res, c)
	}
	return res
}

// Table lists one row per operation; the compound columns are only filled
// on its first row.
func (r compoundResults) Table() *output.Table {
	t := output.NewTable("#", "TAG", "MINOR", "OP", "STATUS", "DETAIL")
	for _, c := range r {
		if len(c.Ops) == 0 {
			t.Append(strconv.Itoa(c.Index), c.Tag, strconv.Itoa(int(c.Minor)), "", c.Status)
			continue
		}
		for i, op := range c.Ops {
			if i == 0 {
				t.Append(strconv.Itoa(c.Index), c.Tag, strconv.Itoa(int(c.Minor)), op.Op, op.Status, op.Detail)
			} else {
				t.Append("", "", "", op.Op, op.Status, op.Detail)
			}
		}
	}
	return t
}

// failed reports whether any compound ended with an error status.
func (r compoundResults) failed() bool {
	for _, c := range r {
		if c.Status != types.StatusName(types.NFS4_OK) {
			return true
		}
	}
	return false
}
