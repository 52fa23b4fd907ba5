// Package script runs COMPOUND requests described in YAML against an
// in-process engine.
//
// A script is a list of compounds. Each operation is either a bare name or
// a mapping with an "op" key and its arguments:
//
//	compounds:
//	  - tag: walk
//	    minor: 0
//	    ops:
//	      - putrootfh
//	      - {op: lookup, name: data}
//	      - {op: getattr, attrs: [type, size, mounted_on_fileid]}
//	      - getfh
//
// Client ids, confirm verifiers, session ids and slot sequence ids are
// carried from one compound to the next, so a script can establish a
// session with exchange_id and create_session and then use sequence
// without spelling out any of them. A filehandle of "$last" refers to the
// handle returned by the most recent GETFH.
//
// Every compound goes through the XDR codec in both directions, so the
// runner also produces the exact request and reply bytes.
package script

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
)

// LastHandle names the handle of the most recent GETFH in a fh argument.
const LastHandle = "$last"

// Script is a sequence of compounds sharing client state.
type Script struct {
	Credentials Credentials `yaml:"credentials"`
	Compounds   []Compound  `yaml:"compounds"`
}

// Credentials is the RPC identity every compound is sent with.
type Credentials struct {
	// Flavor is "sys" (the default) or "none".
	Flavor string `yaml:"flavor"`
	UID    uint32 `yaml:"uid"`
	GID    uint32 `yaml:"gid"`
}

// Compound is one COMPOUND request.
type Compound struct {
	Tag   string `yaml:"tag"`
	Minor uint32 `yaml:"minor"`
	Ops   []Op   `yaml:"ops"`
}

// Op is one operation and the arguments it may take. Fields an operation
// does not use are ignored.
type Op struct {
	Op string `yaml:"op"`

	// Name is the component of LOOKUP, SECINFO, REMOVE and LINK and the
	// old name of RENAME.
	Name    string `yaml:"name"`
	NewName string `yaml:"newname"`

	// FH is a hex filehandle for PUTFH, or LastHandle.
	FH string `yaml:"fh"`

	// Attrs are GETATTR attribute names; empty requests every supported
	// attribute.
	Attrs []string `yaml:"attrs"`

	Offset uint64 `yaml:"offset"`
	Count  uint32 `yaml:"count"`

	// Owner is the client owner of SETCLIENTID and EXCHANGE_ID or the lock
	// owner of RELEASE_LOCKOWNER.
	Owner string `yaml:"owner"`

	Slot      uint32 `yaml:"slot"`
	CacheThis bool   `yaml:"cache_this"`
	OneFS     bool   `yaml:"one_fs"`
}

// opKeys holds the yaml keys of Op. Node.Decode does not inherit the
// decoder's KnownFields setting, so UnmarshalYAML checks keys itself.
var opKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Op{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("yaml"); tag != "" {
			keys[strings.Split(tag, ",")[0]] = true
		}
	}
	return keys
}()

// UnmarshalYAML accepts a bare operation name as shorthand.
func (o *Op) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		o.Op = n.Value
		return nil
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i < len(n.Content); i += 2 {
			k := n.Content[i]
			if !opKeys[k.Value] {
				return fmt.Errorf("line %d: unknown operation key %q", k.Line, k.Value)
			}
		}
	}
	type plain Op
	return n.Decode((*plain)(o))
}

// OpCode resolves the operation name. Numeric opcodes are accepted so a
// script can send operations this server does not know.
func (o Op) OpCode() (uint32, error) {
	if num, ok := types.OpNameToNum(strings.ToUpper(o.Op)); ok {
		return num, nil
	}
	if num, err := strconv.ParseUint(o.Op, 10, 32); err == nil {
		return uint32(num), nil
	}
	return 0, fmt.Errorf("unknown operation %q", o.Op)
}

// Load parses and checks a script. Unknown keys are rejected.
func Load(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	switch s.Credentials.Flavor {
	case "", "sys", "none":
	default:
		return fmt.Errorf("credentials: unknown flavor %q (valid: sys, none)", s.Credentials.Flavor)
	}
	if len(s.Compounds) == 0 {
		return fmt.Errorf("script has no compounds")
	}
	for i, c := range s.Compounds {
		for j, op := range c.Ops {
			if _, err := op.OpCode(); err != nil {
				return fmt.Errorf("compound %d op %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// Creds converts the script credentials.
func (s *Script) Creds() types.Credentials {
	if s.Credentials.Flavor == "none" {
		return types.Credentials{Flavor: types.AUTH_NONE}
	}
	return types.Credentials{
		Flavor: types.AUTH_SYS,
		UID:    s.Credentials.UID,
		GID:    s.Credentials.GID,
	}
}
