// Package types holds the NFSv4 wire constants, the decoded argument shapes
// of every operation the engine implements, and the result values the
// engine hands back to its caller.
//
// Results own pooled buffers (see pkg/bufpool). A Compound4Response must be
// freed exactly once by whoever ends up holding it.
package types

// ============================================================================
// Protocol Limits
// ============================================================================

const (
	// NFS4_FHSIZE is the largest filehandle a client may send (RFC 7530).
	NFS4_FHSIZE = 128

	// NFS4_OPAQUE_LIMIT bounds owner ids and similar opaque fields.
	NFS4_OPAQUE_LIMIT = 1024

	// NFS4_VERIFIER_SIZE is the size of verifier4.
	NFS4_VERIFIER_SIZE = 8

	// NFS4_SESSIONID_SIZE is the size of sessionid4.
	NFS4_SESSIONID_SIZE = 16

	// MaxCompoundOps is the hard ceiling on operations per COMPOUND.
	MaxCompoundOps = 30

	// MaxNameLen is the longest component name accepted.
	MaxNameLen = 255

	// MaxTagLen bounds the COMPOUND tag.
	MaxTagLen = 1024
)

const (
	NFS4_MINOR_VERSION_0 = 0
	NFS4_MINOR_VERSION_1 = 1
)

// nfs_ftype4
const (
	NF4REG       = 1
	NF4DIR       = 2
	NF4BLK       = 3
	NF4CHR       = 4
	NF4LNK       = 5
	NF4SOCK      = 6
	NF4FIFO      = 7
	NF4ATTRDIR   = 8
	NF4NAMEDATTR = 9
)

// fh_expire_type4
const FH4_PERSISTENT = 0x00

// Security flavors returned by SECINFO.
const (
	AUTH_NONE  = 0
	AUTH_SYS   = 1
	RPCSEC_GSS = 6
)

// ============================================================================
// Operation Numbers (nfs_opnum4)
// ============================================================================

// NFSv4.0 operations, RFC 7530 Section 16. Numbering starts at 3.
const (
	OP_ACCESS = iota + 3
	OP_CLOSE
	OP_COMMIT
	OP_CREATE
	OP_DELEGPURGE
	OP_DELEGRETURN
	OP_GETATTR
	OP_GETFH
	OP_LINK
	OP_LOCK
	OP_LOCKT
	OP_LOCKU
	OP_LOOKUP
	OP_LOOKUPP
	OP_NVERIFY
	OP_OPEN
	OP_OPENATTR
	OP_OPEN_CONFIRM
	OP_OPEN_DOWNGRADE
	OP_PUTFH
	OP_PUTPUBFH
	OP_PUTROOTFH
	OP_READ
	OP_READDIR
	OP_READLINK
	OP_REMOVE
	OP_RENAME
	OP_RENEW
	OP_RESTOREFH
	OP_SAVEFH
	OP_SECINFO
	OP_SETATTR
	OP_SETCLIENTID
	OP_SETCLIENTID_CONFIRM
	OP_VERIFY
	OP_WRITE
	OP_RELEASE_LOCKOWNER

	// NFSv4.1 operations, RFC 8881 Section 18.
	OP_BACKCHANNEL_CTL
	OP_BIND_CONN_TO_SESSION
	OP_EXCHANGE_ID
	OP_CREATE_SESSION
	OP_DESTROY_SESSION
	OP_FREE_STATEID
	OP_GET_DIR_DELEGATION
	OP_GETDEVICEINFO
	OP_GETDEVICELIST
	OP_LAYOUTCOMMIT
	OP_LAYOUTGET
	OP_LAYOUTRETURN
	OP_SECINFO_NO_NAME
	OP_SEQUENCE
	OP_SET_SSV
	OP_TEST_STATEID
	OP_WANT_DELEGATION
	OP_DESTROY_CLIENTID
	OP_RECLAIM_COMPLETE
)

const (
	// OP_LAST_V40 is the highest opcode defined for minor version 0.
	OP_LAST_V40 = OP_RELEASE_LOCKOWNER

	// OP_LAST_V41 is the highest opcode defined for minor version 1.
	OP_LAST_V41 = OP_RECLAIM_COMPLETE

	// OP_ILLEGAL is reported for opcodes outside the defined range.
	OP_ILLEGAL = 10044
)

// ============================================================================
// Status Codes (nfsstat4)
// ============================================================================

const (
	NFS4_OK = 0

	NFS4ERR_PERM        = 1
	NFS4ERR_NOENT       = 2
	NFS4ERR_IO          = 5
	NFS4ERR_NXIO        = 6
	NFS4ERR_ACCESS      = 13
	NFS4ERR_EXIST       = 17
	NFS4ERR_XDEV        = 18
	NFS4ERR_NOTDIR      = 20
	NFS4ERR_ISDIR       = 21
	NFS4ERR_INVAL       = 22
	NFS4ERR_FBIG        = 27
	NFS4ERR_NOSPC       = 28
	NFS4ERR_ROFS        = 30
	NFS4ERR_MLINK       = 31
	NFS4ERR_NAMETOOLONG = 63
	NFS4ERR_NOTEMPTY    = 66
	NFS4ERR_DQUOT       = 69
	NFS4ERR_STALE       = 70

	NFS4ERR_BADHANDLE           = 10001
	NFS4ERR_BAD_COOKIE          = 10003
	NFS4ERR_NOTSUPP             = 10004
	NFS4ERR_TOOSMALL            = 10005
	NFS4ERR_SERVERFAULT         = 10006
	NFS4ERR_BADTYPE             = 10007
	NFS4ERR_DELAY               = 10008
	NFS4ERR_SAME                = 10009
	NFS4ERR_DENIED              = 10010
	NFS4ERR_EXPIRED             = 10011
	NFS4ERR_LOCKED              = 10012
	NFS4ERR_GRACE               = 10013
	NFS4ERR_FHEXPIRED           = 10014
	NFS4ERR_SHARE_DENIED        = 10015
	NFS4ERR_WRONGSEC            = 10016
	NFS4ERR_CLID_INUSE          = 10017
	NFS4ERR_RESOURCE            = 10018
	NFS4ERR_MOVED               = 10019
	NFS4ERR_NOFILEHANDLE        = 10020
	NFS4ERR_MINOR_VERS_MISMATCH = 10021
	NFS4ERR_STALE_CLIENTID      = 10022
	NFS4ERR_STALE_STATEID       = 10023
	NFS4ERR_OLD_STATEID         = 10024
	NFS4ERR_BAD_STATEID         = 10025
	NFS4ERR_BAD_SEQID           = 10026
	NFS4ERR_NOT_SAME            = 10027
	NFS4ERR_LOCK_RANGE          = 10028
	NFS4ERR_SYMLINK             = 10029
	NFS4ERR_RESTOREFH           = 10030
	NFS4ERR_LEASE_MOVED         = 10031
	NFS4ERR_ATTRNOTSUPP         = 10032
	NFS4ERR_NO_GRACE            = 10033
	NFS4ERR_RECLAIM_BAD         = 10034
	NFS4ERR_RECLAIM_CONFLICT    = 10035
	NFS4ERR_BADXDR              = 10036
	NFS4ERR_LOCKS_HELD          = 10037
	NFS4ERR_OPENMODE            = 10038
	NFS4ERR_BADOWNER            = 10039
	NFS4ERR_BADCHAR             = 10040
	NFS4ERR_BADNAME             = 10041
	NFS4ERR_BAD_RANGE           = 10042
	NFS4ERR_LOCK_NOTSUPP        = 10043
	NFS4ERR_OP_ILLEGAL          = 10044
	NFS4ERR_DEADLOCK            = 10045
	NFS4ERR_FILE_OPEN           = 10046
	NFS4ERR_ADMIN_REVOKED       = 10047
	NFS4ERR_CB_PATH_DOWN        = 10048

	// NFSv4.1
	NFS4ERR_BADIOMODE                 = 10049
	NFS4ERR_BADLAYOUT                 = 10050
	NFS4ERR_BAD_SESSION_DIGEST        = 10051
	NFS4ERR_BADSESSION                = 10052
	NFS4ERR_BADSLOT                   = 10053
	NFS4ERR_COMPLETE_ALREADY          = 10054
	NFS4ERR_CONN_NOT_BOUND_TO_SESSION = 10055
	NFS4ERR_DELEG_ALREADY_WANTED      = 10056
	NFS4ERR_BACK_CHAN_BUSY            = 10057
	NFS4ERR_LAYOUTTRYLATER            = 10058
	NFS4ERR_LAYOUTUNAVAILABLE         = 10059
	NFS4ERR_NOMATCHING_LAYOUT         = 10060
	NFS4ERR_RECALLCONFLICT            = 10061
	NFS4ERR_UNKNOWN_LAYOUTTYPE        = 10062
	NFS4ERR_SEQ_MISORDERED            = 10063
	NFS4ERR_SEQUENCE_POS              = 10064
	NFS4ERR_REQ_TOO_BIG               = 10065
	NFS4ERR_REP_TOO_BIG               = 10066
	NFS4ERR_REP_TOO_BIG_TO_CACHE      = 10067
	NFS4ERR_RETRY_UNCACHED_REP        = 10068
	NFS4ERR_UNSAFE_COMPOUND           = 10069
	NFS4ERR_TOO_MANY_OPS              = 10070
	NFS4ERR_OP_NOT_IN_SESSION         = 10071
	NFS4ERR_HASH_ALG_UNSUPP           = 10072
	NFS4ERR_CLIENTID_BUSY             = 10074
	NFS4ERR_PNFS_IO_HOLE              = 10075
	NFS4ERR_SEQ_FALSE_RETRY           = 10076
	NFS4ERR_BAD_HIGH_SLOT             = 10077
	NFS4ERR_DEADSESSION               = 10078
	NFS4ERR_ENCR_ALG_UNSUPP           = 10079
	NFS4ERR_PNFS_NO_LAYOUT            = 10080
	NFS4ERR_NOT_ONLY_OP               = 10081
	NFS4ERR_WRONG_CRED                = 10082
	NFS4ERR_WRONG_TYPE                = 10083
	NFS4ERR_DIRDELEG_UNAVAIL          = 10084
	NFS4ERR_REJECT_DELEG              = 10085
	NFS4ERR_RETURNCONFLICT            = 10086
	NFS4ERR_DELEG_REVOKED             = 10087
)

// ============================================================================
// Session and Client ID Flags
// ============================================================================

// EXCHANGE_ID flags, RFC 8881 Section 18.35.
const (
	EXCHGID4_FLAG_SUPP_MOVED_REFER    = 0x00000001
	EXCHGID4_FLAG_SUPP_MOVED_MIGR     = 0x00000002
	EXCHGID4_FLAG_BIND_PRINC_STATEID  = 0x00000100
	EXCHGID4_FLAG_USE_NON_PNFS        = 0x00010000
	EXCHGID4_FLAG_USE_PNFS_MDS        = 0x00020000
	EXCHGID4_FLAG_USE_PNFS_DS         = 0x00040000
	EXCHGID4_FLAG_MASK_PNFS           = 0x00070000
	EXCHGID4_FLAG_UPD_CONFIRMED_REC_A = 0x40000000
	EXCHGID4_FLAG_CONFIRMED_R         = 0x80000000
	EXCHGID4_FLAG_MASK_A              = 0x40070103
)

// CREATE_SESSION flags.
const (
	CREATE_SESSION4_FLAG_PERSIST        = 0x00000001
	CREATE_SESSION4_FLAG_CONN_BACK_CHAN = 0x00000002
	CREATE_SESSION4_FLAG_CONN_RDMA      = 0x00000004
)

// state_protect_how4
const (
	SP4_NONE      = 0
	SP4_MACH_CRED = 1
	SP4_SSV       = 2
)

// SEQUENCE status flags (subset reported by this server).
const (
	SEQ4_STATUS_CB_PATH_DOWN           = 0x00000001
	SEQ4_STATUS_RESTART_RECLAIM_NEEDED = 0x00000100
)

// stable_how4, reported by COMMIT through the write verifier only.
const (
	UNSTABLE4  = 0
	DATA_SYNC4 = 1
	FILE_SYNC4 = 2
)
