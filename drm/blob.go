package drm

// blobSet is a scoped "pending blobs" builder (spec §9 "DRM blob
// ownership transfer"): blobs created while building an atomic
// transaction are owned by the transaction until Commit transfers
// them to the CRTCs that now reference them, or Rollback destroys
// them. Destructors never silently leak blobs — every blobSet must be
// either committed or rolled back exactly once.
type blobSet struct {
	kms     KMS
	created []uint32
	// failed is set the first time an operation on the set fails, so
	// later calls short-circuit without issuing further kernel calls
	// (spec §5 "Locks and transactions": "a sticky failed flag so
	// errors short-circuit without aborting the whole frame").
	failed error
}

func newBlobSet(kms KMS) *blobSet {
	return &blobSet{kms: kms}
}

// New uploads data as a new blob and tracks it as pending. If the set
// has already failed, it returns the prior error without issuing a
// kernel call.
func (s *blobSet) New(data []byte) (uint32, error) {
	if s.failed != nil {
		return 0, s.failed
	}
	id, err := s.kms.CreateBlob(data)
	if err != nil {
		s.failed = err
		return 0, err
	}
	s.created = append(s.created, id)
	return id, nil
}

// Failed reports the sticky error, if any.
func (s *blobSet) Failed() error { return s.failed }

// Commit transfers ownership of every blob created through this set
// to whatever CRTC property referenced it in the just-accepted atomic
// commit, and destroys the ids supplied in superseded (the blobs the
// new commit replaced, e.g. a connector's previous mode or gamma
// blob). The set itself becomes inert afterwards.
func (s *blobSet) Commit(superseded []uint32) {
	for _, id := range superseded {
		if id != 0 {
			s.kms.DestroyBlob(id)
		}
	}
	s.created = nil
	s.failed = nil
}

// Rollback destroys every blob created through this set, leaving
// kernel state as though the transaction never happened.
func (s *blobSet) Rollback() {
	for _, id := range s.created {
		s.kms.DestroyBlob(id)
	}
	s.created = nil
	s.failed = nil
}
