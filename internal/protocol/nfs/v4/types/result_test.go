package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/pkg/bufpool"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

func ownedResponse() *Compound4Response {
	return &Compound4Response{
		Status: NFS4_OK,
		Tag:    []byte("tag"),
		Results: []Result{
			{OpCode: OP_GETFH, Body: &GetFHRes{Handle: bufpool.Clone([]byte{1, 2, 3})}},
			{OpCode: OP_READLINK, Body: &ReadlinkRes{Link: bufpool.Clone([]byte("target"))}},
			{OpCode: OP_GETATTR, Body: &GetAttrRes{Mask: []uint32{1}, Vals: bufpool.Clone([]byte{0, 0, 0, 2})}},
			{OpCode: OP_EXCHANGE_ID, Body: &ExchangeIDRes{OwnerMajor: bufpool.Clone([]byte("owner")), Scope: bufpool.Clone([]byte("scope"))}},
			{OpCode: OP_SECINFO, Body: NewSecInfoRes(AUTH_SYS, AUTH_NONE)},
			{OpCode: OP_REMOVE, Body: &ChangeInfoRes{CInfo: ChangeInfo{Before: 1, After: 2}}},
			NewStatus(OP_SAVEFH, NFS4_OK),
		},
	}
}

// ============================================================================
// Result Lifecycle Tests
// ============================================================================

func TestResponseFreeReturnsEveryBuffer(t *testing.T) {
	baseline := bufpool.Outstanding()

	resp := ownedResponse()
	assert.Equal(t, baseline+6, bufpool.Outstanding())

	resp.Free()
	assert.Equal(t, baseline, bufpool.Outstanding())
	assert.True(t, resp.Freed())

	resp.Free()
	assert.Equal(t, baseline, bufpool.Outstanding(), "second Free must be a no-op")
}

func TestResponseCloneIsIndependent(t *testing.T) {
	baseline := bufpool.Outstanding()

	orig := ownedResponse()
	dup := orig.Clone()
	assert.Equal(t, baseline+12, bufpool.Outstanding())

	origFH := orig.Results[0].Body.(*GetFHRes).Handle
	dupFH := dup.Results[0].Body.(*GetFHRes).Handle
	require.Equal(t, origFH, dupFH)
	origFH[0] = 0xFF
	assert.Equal(t, byte(1), dupFH[0])

	assert.Equal(t, []uint32{AUTH_SYS, AUTH_NONE}, dup.Results[4].Body.(*SecInfoRes).Flavors())

	orig.Free()
	assert.Equal(t, baseline+6, bufpool.Outstanding())
	assert.False(t, dup.Freed())
	dup.Free()
	assert.Equal(t, baseline, bufpool.Outstanding())
}

func TestReadlinkEmptyTargetOwnsNothing(t *testing.T) {
	baseline := bufpool.Outstanding()

	r := Result{OpCode: OP_READLINK, Body: &ReadlinkRes{Link: bufpool.Clone(nil)}}
	c := r.Clone()
	r.Free()
	c.Free()
	assert.Equal(t, baseline, bufpool.Outstanding())
}

func TestLastStatus(t *testing.T) {
	resp := &Compound4Response{}
	assert.Equal(t, uint32(NFS4_OK), resp.LastStatus())

	resp.Results = []Result{NewStatus(OP_PUTROOTFH, NFS4_OK), NewStatus(OP_LOOKUP, NFS4ERR_NOENT)}
	assert.Equal(t, uint32(NFS4ERR_NOENT), resp.LastStatus())
}

// ============================================================================
// Encoding Tests
// ============================================================================

func TestResultEncode(t *testing.T) {
	t.Run("StatusOnly", func(t *testing.T) {
		var buf bytes.Buffer
		NewStatus(OP_PUTFH, NFS4ERR_STALE).Encode(&buf)
		assert.Equal(t, []byte{0, 0, 0, 22, 0, 0, 0, 70}, buf.Bytes())
	})

	t.Run("GetFHPadsHandle", func(t *testing.T) {
		var buf bytes.Buffer
		Result{OpCode: OP_GETFH, Body: &GetFHRes{Handle: []byte{7}}}.Encode(&buf)
		assert.Equal(t, []byte{0, 0, 0, 10, 0, 0, 0, 0, 0, 0, 0, 1, 7, 0, 0, 0}, buf.Bytes())
	})
}

// ============================================================================
// Name Tests
// ============================================================================

func TestOpNames(t *testing.T) {
	assert.Equal(t, 3, OP_ACCESS)
	assert.Equal(t, 39, OP_RELEASE_LOCKOWNER)
	assert.Equal(t, 40, OP_BACKCHANNEL_CTL)
	assert.Equal(t, 58, OP_RECLAIM_COMPLETE)

	for op := uint32(OP_ACCESS); op <= OP_LAST_V41; op++ {
		name := OpName(op)
		require.NotEqual(t, "UNKNOWN", name, "op %d", op)
		back, ok := OpNameToNum(name)
		require.True(t, ok)
		assert.Equal(t, op, back)
	}
	assert.Equal(t, "UNKNOWN", OpName(2))
	assert.Equal(t, "NFS4ERR_STALE", StatusName(NFS4ERR_STALE))
	assert.Equal(t, "NFS4ERR(99999)", StatusName(99999))
}

// ============================================================================
// Error Mapping Tests
// ============================================================================

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want uint32
	}{
		{"Nil", nil, NFS4_OK},
		{"NotFound", objstore.NewNotFoundError("x"), NFS4ERR_NOENT},
		{"Stale", objstore.NewStaleError(3), NFS4ERR_STALE},
		{"Exists", objstore.NewExistsError("x"), NFS4ERR_EXIST},
		{"NotEmpty", objstore.NewNotEmptyError("x"), NFS4ERR_NOTEMPTY},
		{"IsDir", objstore.NewIsDirError("x"), NFS4ERR_ISDIR},
		{"NotDir", objstore.NewNotDirError("x"), NFS4ERR_NOTDIR},
		{"Invalid", objstore.NewInvalidError("x"), NFS4ERR_INVAL},
		{"ReadOnly", objstore.NewReadOnlyError(), NFS4ERR_ROFS},
		{"IO", objstore.NewIOError(assert.AnError), NFS4ERR_IO},
		{"Foreign", assert.AnError, NFS4ERR_SERVERFAULT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapStoreError(tt.err))
		})
	}
}

func TestValidateComponentName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want uint32
	}{
		{"Valid", "file.txt", NFS4_OK},
		{"Empty", "", NFS4ERR_INVAL},
		{"TooLong", string(bytes.Repeat([]byte("a"), MaxNameLen+1)), NFS4ERR_NAMETOOLONG},
		{"MaxLen", string(bytes.Repeat([]byte("a"), MaxNameLen)), NFS4_OK},
		{"BadUTF8", "\xff\xfe", NFS4ERR_INVAL},
		{"Dot", ".", NFS4ERR_BADNAME},
		{"DotDot", "..", NFS4ERR_BADNAME},
		{"Slash", "a/b", NFS4ERR_BADCHAR},
		{"Nul", "a\x00b", NFS4ERR_BADCHAR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateComponentName(tt.in))
		})
	}
}
