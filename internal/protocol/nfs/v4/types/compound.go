package types

// Compound4Response is the reply to one COMPOUND request.
//
// The engine hands the response to its caller, which owns it and must call
// Free once it has been encoded. Free is idempotent. Clone produces an
// independent copy with its own pooled buffers; the session replay cache
// stores clones so the cache and the caller never share an owner.
type Compound4Response struct {
	Status  uint32
	Tag     []byte
	Results []Result

	freed bool
}

// Free releases every result body. Calling Free again is a no-op.
func (r *Compound4Response) Free() {
	if r == nil || r.freed {
		return
	}
	r.freed = true
	for i := range r.Results {
		r.Results[i].Free()
	}
}

// Freed reports whether Free has run.
func (r *Compound4Response) Freed() bool {
	return r != nil && r.freed
}

// Clone deep-copies the response.
func (r *Compound4Response) Clone() *Compound4Response {
	if r == nil {
		return nil
	}
	c := &Compound4Response{
		Status: r.Status,
		Tag:    append([]byte(nil), r.Tag...),
	}
	if r.Results != nil {
		c.Results = make([]Result, len(r.Results))
		for i, res := range r.Results {
			c.Results[i] = res.Clone()
		}
	}
	return c
}

// LastStatus returns the status of the final result, or NFS4_OK when there
// are no results.
func (r *Compound4Response) LastStatus() uint32 {
	if len(r.Results) == 0 {
		return NFS4_OK
	}
	return r.Results[len(r.Results)-1].Status
}
