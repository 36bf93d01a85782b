package drm

// fakeKMS is an in-memory KMS used by package tests: it records the
// calls made to it without touching any kernel object, so the
// atomic/legacy/liftoff commit algorithms can be exercised without a
// real DRM device.
type fakeKMS struct {
	nextBlobID uint32
	blobs      map[uint32][]byte

	nextLeaseID uint32
	leases      map[uint32]bool

	commits      []fakeCommit
	setCrtcCalls []fakeSetCrtc
	pageFlips    []fakePageFlip
	cursorSets   []fakeCursorSet
	cursorMoves  []fakeCursorMove
	gammaSets    []fakeGammaSet

	refuseAtomic bool // simulate ErrHardwareRefused on AtomicCommit
}

type fakeCommit struct {
	props                            []PropValue
	testOnly, nonblock, allowModeset bool
	events                           bool
}

type fakeSetCrtc struct {
	crtcID, fbID uint32
	mode         *KernelMode
	connIDs      []uint32
}

type fakePageFlip struct {
	crtcID, fbID uint32
	async, event bool
}

type fakeCursorSet struct {
	crtcID, fbID uint32
	hotX, hotY   int
}

type fakeCursorMove struct {
	crtcID uint32
	x, y   int
}

type fakeGammaSet struct {
	crtcID  uint32
	r, g, b []uint16
}

func newFakeKMS() *fakeKMS {
	return &fakeKMS{
		blobs:       make(map[uint32][]byte),
		leases:      make(map[uint32]bool),
		nextBlobID:  1,
		nextLeaseID: 1,
	}
}

func (f *fakeKMS) CreateBlob(data []byte) (uint32, error) {
	id := f.nextBlobID
	f.nextBlobID++
	cp := make([]byte, len(data))
	copy(cp, data)
	f.blobs[id] = cp
	return id, nil
}

func (f *fakeKMS) DestroyBlob(id uint32) error {
	delete(f.blobs, id)
	return nil
}

func (f *fakeKMS) AtomicCommit(props []PropValue, testOnly, nonblock, allowModeset, events bool) error {
	if f.refuseAtomic {
		return ErrHardwareRefused
	}
	f.commits = append(f.commits, fakeCommit{props, testOnly, nonblock, allowModeset, events})
	return nil
}

func (f *fakeKMS) SetCrtc(crtcID, fbID uint32, mode *KernelMode, connIDs []uint32) error {
	f.setCrtcCalls = append(f.setCrtcCalls, fakeSetCrtc{crtcID, fbID, mode, connIDs})
	return nil
}

func (f *fakeKMS) PageFlip(crtcID, fbID uint32, async, event bool) error {
	f.pageFlips = append(f.pageFlips, fakePageFlip{crtcID, fbID, async, event})
	return nil
}

func (f *fakeKMS) SetCursor(crtcID, fbID uint32, hotX, hotY int) error {
	f.cursorSets = append(f.cursorSets, fakeCursorSet{crtcID, fbID, hotX, hotY})
	return nil
}

func (f *fakeKMS) MoveCursor(crtcID uint32, x, y int) error {
	f.cursorMoves = append(f.cursorMoves, fakeCursorMove{crtcID, x, y})
	return nil
}

func (f *fakeKMS) SetGamma(crtcID uint32, r, g, b []uint16) error {
	f.gammaSets = append(f.gammaSets, fakeGammaSet{crtcID, r, g, b})
	return nil
}

func (f *fakeKMS) AddFB(width, height int, format uint32, modifier uint64, planes []FBPlane) (uint32, error) {
	id := f.nextBlobID
	f.nextBlobID++
	return id, nil
}

func (f *fakeKMS) RmFB(fbID uint32) error { return nil }

func (f *fakeKMS) CreateLease(objIDs []uint32) (fd int, leaseID uint32, err error) {
	id := f.nextLeaseID
	f.nextLeaseID++
	f.leases[id] = true
	return int(id) + 100, id, nil
}

func (f *fakeKMS) RevokeLease(leaseID uint32) error {
	delete(f.leases, leaseID)
	return nil
}
