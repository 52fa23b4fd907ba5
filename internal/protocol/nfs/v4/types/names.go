package types

import "fmt"

var opNames = map[uint32]string{
	OP_ACCESS:               "ACCESS",
	OP_CLOSE:                "CLOSE",
	OP_COMMIT:               "COMMIT",
	OP_CREATE:               "CREATE",
	OP_DELEGPURGE:           "DELEGPURGE",
	OP_DELEGRETURN:          "DELEGRETURN",
	OP_GETATTR:              "GETATTR",
	OP_GETFH:                "GETFH",
	OP_LINK:                 "LINK",
	OP_LOCK:                 "LOCK",
	OP_LOCKT:                "LOCKT",
	OP_LOCKU:                "LOCKU",
	OP_LOOKUP:               "LOOKUP",
	OP_LOOKUPP:              "LOOKUPP",
	OP_NVERIFY:              "NVERIFY",
	OP_OPEN:                 "OPEN",
	OP_OPENATTR:             "OPENATTR",
	OP_OPEN_CONFIRM:         "OPEN_CONFIRM",
	OP_OPEN_DOWNGRADE:       "OPEN_DOWNGRADE",
	OP_PUTFH:                "PUTFH",
	OP_PUTPUBFH:             "PUTPUBFH",
	OP_PUTROOTFH:            "PUTROOTFH",
	OP_READ:                 "READ",
	OP_READDIR:              "READDIR",
	OP_READLINK:             "READLINK",
	OP_REMOVE:               "REMOVE",
	OP_RENAME:               "RENAME",
	OP_RENEW:                "RENEW",
	OP_RESTOREFH:            "RESTOREFH",
	OP_SAVEFH:               "SAVEFH",
	OP_SECINFO:              "SECINFO",
	OP_SETATTR:              "SETATTR",
	OP_SETCLIENTID:          "SETCLIENTID",
	OP_SETCLIENTID_CONFIRM:  "SETCLIENTID_CONFIRM",
	OP_VERIFY:               "VERIFY",
	OP_WRITE:                "WRITE",
	OP_RELEASE_LOCKOWNER:    "RELEASE_LOCKOWNER",
	OP_BACKCHANNEL_CTL:      "BACKCHANNEL_CTL",
	OP_BIND_CONN_TO_SESSION: "BIND_CONN_TO_SESSION",
	OP_EXCHANGE_ID:          "EXCHANGE_ID",
	OP_CREATE_SESSION:       "CREATE_SESSION",
	OP_DESTROY_SESSION:      "DESTROY_SESSION",
	OP_FREE_STATEID:         "FREE_STATEID",
	OP_GET_DIR_DELEGATION:   "GET_DIR_DELEGATION",
	OP_GETDEVICEINFO:        "GETDEVICEINFO",
	OP_GETDEVICELIST:        "GETDEVICELIST",
	OP_LAYOUTCOMMIT:         "LAYOUTCOMMIT",
	OP_LAYOUTGET:            "LAYOUTGET",
	OP_LAYOUTRETURN:         "LAYOUTRETURN",
	OP_SECINFO_NO_NAME:      "SECINFO_NO_NAME",
	OP_SEQUENCE:             "SEQUENCE",
	OP_SET_SSV:              "SET_SSV",
	OP_TEST_STATEID:         "TEST_STATEID",
	OP_WANT_DELEGATION:      "WANT_DELEGATION",
	OP_DESTROY_CLIENTID:     "DESTROY_CLIENTID",
	OP_RECLAIM_COMPLETE:     "RECLAIM_COMPLETE",
	OP_ILLEGAL:              "ILLEGAL",
}

var opNumbers = func() map[string]uint32 {
	m := make(map[string]uint32, len(opNames))
	for num, name := range opNames {
		m[name] = num
	}
	return m
}()

// OpName returns the protocol name of an operation number.
func OpName(op uint32) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// OpNameToNum converts an operation name back to its number.
func OpNameToNum(name string) (uint32, bool) {
	num, ok := opNumbers[name]
	return num, ok
}

var statusNames = map[uint32]string{
	NFS4_OK:                     "NFS4_OK",
	NFS4ERR_PERM:                "NFS4ERR_PERM",
	NFS4ERR_NOENT:               "NFS4ERR_NOENT",
	NFS4ERR_IO:                  "NFS4ERR_IO",
	NFS4ERR_ACCESS:              "NFS4ERR_ACCESS",
	NFS4ERR_EXIST:               "NFS4ERR_EXIST",
	NFS4ERR_XDEV:                "NFS4ERR_XDEV",
	NFS4ERR_NOTDIR:              "NFS4ERR_NOTDIR",
	NFS4ERR_ISDIR:               "NFS4ERR_ISDIR",
	NFS4ERR_INVAL:               "NFS4ERR_INVAL",
	NFS4ERR_NOSPC:               "NFS4ERR_NOSPC",
	NFS4ERR_ROFS:                "NFS4ERR_ROFS",
	NFS4ERR_NAMETOOLONG:         "NFS4ERR_NAMETOOLONG",
	NFS4ERR_NOTEMPTY:            "NFS4ERR_NOTEMPTY",
	NFS4ERR_STALE:               "NFS4ERR_STALE",
	NFS4ERR_BADHANDLE:           "NFS4ERR_BADHANDLE",
	NFS4ERR_NOTSUPP:             "NFS4ERR_NOTSUPP",
	NFS4ERR_SERVERFAULT:         "NFS4ERR_SERVERFAULT",
	NFS4ERR_DELAY:               "NFS4ERR_DELAY",
	NFS4ERR_EXPIRED:             "NFS4ERR_EXPIRED",
	NFS4ERR_GRACE:               "NFS4ERR_GRACE",
	NFS4ERR_CLID_INUSE:          "NFS4ERR_CLID_INUSE",
	NFS4ERR_RESOURCE:            "NFS4ERR_RESOURCE",
	NFS4ERR_NOFILEHANDLE:        "NFS4ERR_NOFILEHANDLE",
	NFS4ERR_MINOR_VERS_MISMATCH: "NFS4ERR_MINOR_VERS_MISMATCH",
	NFS4ERR_STALE_CLIENTID:      "NFS4ERR_STALE_CLIENTID",
	NFS4ERR_NOT_SAME:            "NFS4ERR_NOT_SAME",
	NFS4ERR_SYMLINK:             "NFS4ERR_SYMLINK",
	NFS4ERR_RESTOREFH:           "NFS4ERR_RESTOREFH",
	NFS4ERR_ATTRNOTSUPP:         "NFS4ERR_ATTRNOTSUPP",
	NFS4ERR_BADXDR:              "NFS4ERR_BADXDR",
	NFS4ERR_BADCHAR:             "NFS4ERR_BADCHAR",
	NFS4ERR_BADNAME:             "NFS4ERR_BADNAME",
	NFS4ERR_OP_ILLEGAL:          "NFS4ERR_OP_ILLEGAL",
	NFS4ERR_BADSESSION:          "NFS4ERR_BADSESSION",
	NFS4ERR_BADSLOT:             "NFS4ERR_BADSLOT",
	NFS4ERR_COMPLETE_ALREADY:    "NFS4ERR_COMPLETE_ALREADY",
	NFS4ERR_SEQ_MISORDERED:      "NFS4ERR_SEQ_MISORDERED",
	NFS4ERR_SEQUENCE_POS:        "NFS4ERR_SEQUENCE_POS",
	NFS4ERR_RETRY_UNCACHED_REP:  "NFS4ERR_RETRY_UNCACHED_REP",
	NFS4ERR_TOO_MANY_OPS:        "NFS4ERR_TOO_MANY_OPS",
	NFS4ERR_OP_NOT_IN_SESSION:   "NFS4ERR_OP_NOT_IN_SESSION",
	NFS4ERR_CLIENTID_BUSY:       "NFS4ERR_CLIENTID_BUSY",
	NFS4ERR_BAD_HIGH_SLOT:       "NFS4ERR_BAD_HIGH_SLOT",
	NFS4ERR_DEADSESSION:         "NFS4ERR_DEADSESSION",
	NFS4ERR_NOT_ONLY_OP:         "NFS4ERR_NOT_ONLY_OP",
	NFS4ERR_WRONG_CRED:          "NFS4ERR_WRONG_CRED",
	NFS4ERR_ENCR_ALG_UNSUPP:     "NFS4ERR_ENCR_ALG_UNSUPP",
}

// StatusName returns the symbolic name of an nfsstat4 value.
func StatusName(status uint32) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("NFS4ERR(%d)", status)
}
