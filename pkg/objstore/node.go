package objstore

import "time"

// FileType is the kind of a stored object. Values match nfs_ftype4.
type FileType uint32

const (
	TypeRegular   FileType = 1
	TypeDirectory FileType = 2
	TypeBlock     FileType = 3
	TypeChar      FileType = 4
	TypeSymlink   FileType = 5
	TypeSocket    FileType = 6
	TypeFIFO      FileType = 7
)

// String returns the lowercase name used in config files and scripts.
func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeDirectory:
		return "dir"
	case TypeBlock:
		return "block"
	case TypeChar:
		return "char"
	case TypeSymlink:
		return "symlink"
	case TypeSocket:
		return "socket"
	case TypeFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseFileType is the inverse of FileType.String.
func ParseFileType(s string) (FileType, bool) {
	for t := TypeRegular; t <= TypeFIFO; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// RootID is the object id of every store's root directory.
const RootID uint64 = 1

// Node is the persisted form of an object.
type Node struct {
	ID       uint64            `json:"id"`
	Type     FileType          `json:"type"`
	Mode     uint32            `json:"mode"`
	UID      uint32            `json:"uid"`
	GID      uint32            `json:"gid"`
	Nlink    uint32            `json:"nlink"`
	Size     uint64            `json:"size"`
	Change   uint64            `json:"change"`
	Mtime    time.Time         `json:"mtime"`
	Parent   uint64            `json:"parent,omitempty"`
	Children map[string]uint64 `json:"children,omitempty"`
	Target   string            `json:"target,omitempty"`
}

// Attr is the attribute snapshot returned by Store.GetAttr.
type Attr struct {
	Type   FileType
	FileID uint64
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Change uint64
	Mtime  time.Time
}

func (n *Node) attr() Attr {
	return Attr{
		Type:   n.Type,
		FileID: n.ID,
		Mode:   n.Mode,
		Nlink:  n.Nlink,
		UID:    n.UID,
		GID:    n.GID,
		Size:   n.Size,
		Change: n.Change,
		Mtime:  n.Mtime,
	}
}

func (n *Node) touch() {
	n.Change++
	n.Mtime = time.Now()
}
