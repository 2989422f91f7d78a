package fw

import (
	"testing"
	"time"

	"github.com/named-data/yanfd/fw/core"
	"github.com/named-data/yanfd/fw/defn"
	"github.com/named-data/yanfd/fw/face"
	"github.com/named-data/yanfd/fw/scheduler"
	enc "github.com/named-data/yanfd/std/encoding"
	"github.com/named-data/yanfd/std/types/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestForwarder builds a Forwarder on a virtual clock so tests can step
// through suppression windows and timers deterministically.
func newTestForwarder(t *testing.T) (*Forwarder, *scheduler.TestClock) {
	t.Helper()
	clock, sched := scheduler.NewTestClock(time.Unix(1600000000, 0))
	fwd, err := NewForwarderWithScheduler(core.DefaultConfig(), face.NewTable(), sched)
	require.NoError(t, err)
	return fwd, clock
}

func addTestFace(fwd *Forwarder, scope defn.Scope) *face.TestFace {
	f := face.NewTestFace(scope, defn.PointToPoint)
	fwd.Faces.Add(f)
	return f
}

func makeInterest(name string, nonce uint32) *defn.FwInterest {
	n, _ := enc.NameFromStr(name)
	return &defn.FwInterest{NameV: n, NonceV: optional.Some(nonce)}
}

func mustName(t *testing.T, s string) enc.Name {
	t.Helper()
	n, err := enc.NameFromStr(s)
	require.NoError(t, err)
	return n
}

// Best-route forwards a new Interest to the lowest-cost next hop that is
// not the downstream, suppresses a quick retransmission, and rotates
// through the remaining next hops on later retransmissions.
func TestBestRouteBasic(t *testing.T) {
	fwd, clock := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)
	f3 := addTestFace(fwd, defn.NonLocal)

	root := enc.Name{}
	fwd.AddRoute(root, f1.FaceId(), 10)
	fwd.AddRoute(root, f2.FaceId(), 20)
	fwd.AddRoute(root, f3.FaceId(), 30)

	// new Interest from f1: the lowest-cost hop is f1 itself (downstream),
	// so f2 is chosen
	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/BzgFBchqA", 1), nil)
	assert.Equal(t, 1, len(f2.OutInterests))
	assert.Equal(t, 0, len(f3.OutInterests))
	assert.Equal(t, 0, len(f1.OutInterests))

	// retransmission inside the suppression window is dropped
	clock.Advance(500 * time.Microsecond)
	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/BzgFBchqA", 2), nil)
	assert.Equal(t, 1, len(f2.OutInterests))
	assert.Equal(t, 0, len(f3.OutInterests))

	// at 12ms the retransmission passes suppression and rotates to f3
	clock.Advance(11500 * time.Microsecond)
	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/BzgFBchqA", 3), nil)
	assert.Equal(t, 1, len(f2.OutInterests))
	assert.Equal(t, 1, len(f3.OutInterests))

	// at 24ms the rotation wraps past the downstream back to f2
	clock.Advance(12 * time.Millisecond)
	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/BzgFBchqA", 4), nil)
	assert.Equal(t, 2, len(f2.OutInterests))
	assert.Equal(t, 1, len(f3.OutInterests))
	assert.Equal(t, 0, len(f1.OutInterests))
}

// Best-route with no usable next hop returns Nack(NoRoute) downstream and
// rejects the entry.
func TestBestRouteNoRoute(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/nowhere", 1), nil)
	require.Equal(t, 1, len(f1.OutNacks))
	assert.Equal(t, defn.NackReasonNoRoute, f1.OutNacks[0].Reason)
	assert.Equal(t, 0, len(fwd.Pit.All()))
}

// A /localhop Interest arriving on a non-local face must not be forwarded
// out another non-local face; the entry is rejected.
func TestLocalhopScopeViolation(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)

	fwd.AddRoute(mustName(t, "/localhop/uS09bub6tm"), f2.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/localhop/uS09bub6tm/eG3MMoP6z", 1), nil)
	assert.Equal(t, 0, len(f2.OutInterests))
	assert.Equal(t, 0, len(fwd.Pit.All()))
}

// A /localhost Interest from a non-local face is dropped at the first
// pipeline step, before any table is touched.
func TestLocalhostScopeViolation(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.Local)

	fwd.AddRoute(mustName(t, "/localhost/app"), f2.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/localhost/app/x", 1), nil)
	assert.Equal(t, 0, len(f2.OutInterests))
	assert.Equal(t, 0, len(fwd.Pit.All()))
}

// The same Nonce arriving back on the face it was sent out of is a loop
// and draws Nack(Duplicate); from a third face it is recorded but not
// forwarded again.
func TestDuplicateNonceHandling(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)
	f3 := addTestFace(fwd, defn.NonLocal)

	fwd.AddRoute(enc.Name{}, f2.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/loop/detect", 7), nil)
	require.Equal(t, 1, len(f2.OutInterests))

	// same Nonce from another downstream: record, suppress
	fwd.OnIncomingInterest(f3.FaceId(), makeInterest("/loop/detect", 7), nil)
	assert.Equal(t, 1, len(f2.OutInterests))
	entries := fwd.Pit.All()
	require.Equal(t, 1, len(entries))
	assert.Equal(t, 2, len(entries[0].InRecords()))

	// same Nonce coming back on the upstream face: loop
	fwd.OnIncomingInterest(f2.FaceId(), makeInterest("/loop/detect", 7), nil)
	require.Equal(t, 1, len(f2.OutNacks))
	assert.Equal(t, defn.NackReasonDuplicate, f2.OutNacks[0].Reason)
}

// After a PIT entry dies, its Nonces live on in the DeadNonceList and a
// late looping arrival still draws Nack(Duplicate) exactly once.
func TestDeadNonceListLoop(t *testing.T) {
	fwd, clock := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)

	fwd.AddRoute(enc.Name{}, f2.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/dead/nonce", 42), nil)
	require.Equal(t, 1, len(f2.OutInterests))

	// expire the entry: lifetime (4s) + straggler
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, len(fwd.Pit.All()))
	assert.True(t, fwd.DeadNonceList.Has(mustName(t, "/dead/nonce"), 42))

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/dead/nonce", 42), nil)
	require.Equal(t, 1, len(f1.OutNacks))
	assert.Equal(t, defn.NackReasonDuplicate, f1.OutNacks[0].Reason)
	assert.Equal(t, 1, len(f2.OutInterests)) // no new forward
}

// Data satisfies the entry, fans out to every downstream except the
// producer, carries back each downstream's own PIT token, and the entry
// survives only the straggler window.
func TestDataSatisfactionAndPitToken(t *testing.T) {
	fwd, clock := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)

	fwd.AddRoute(enc.Name{}, f2.FaceId(), 10)

	tokenA := []byte{0xA1, 0xA2, 0xA3}
	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/tok/1", 1), tokenA)
	require.Equal(t, 1, len(f2.OutInterests))
	// the upstream link carries no token
	assert.Nil(t, f2.OutInterestTokens[0])

	data := &defn.FwData{NameV: mustName(t, "/tok/1")}
	fwd.OnIncomingData(f2.FaceId(), data, nil)
	require.Equal(t, 1, len(f1.OutData))
	assert.Equal(t, tokenA, f1.OutDataTokens[0])

	// straggler window: entry still present, then erased
	assert.Equal(t, 1, len(fwd.Pit.All()))
	clock.Advance(fwd.Config().Pit.StragglerTimeout + time.Millisecond)
	assert.Equal(t, 0, len(fwd.Pit.All()))
}

// A Content Store hit replies with the second consumer's own token, not
// the one the Data originally traveled with.
func TestContentStoreHitToken(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)
	fwd.AddRoute(enc.Name{}, f2.FaceId(), 10)

	cached := &defn.FwData{NameV: mustName(t, "/tok/2")}
	fwd.Cs = csStub{name: cached.NameV, data: cached}

	tokenB := []byte{0xB1, 0xB2}
	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/tok/2", 9), tokenB)
	assert.Equal(t, 0, len(f2.OutInterests))
	require.Equal(t, 1, len(f1.OutData))
	assert.Equal(t, tokenB, f1.OutDataTokens[0])
}

type csStub struct {
	name enc.Name
	data *defn.FwData
}

func (c csStub) Find(interest *defn.FwInterest) (*defn.FwData, bool) {
	if interest.NameV.Equal(c.name) {
		return c.data, true
	}
	return nil, false
}

// Unsolicited Data is dropped without reaching any face.
func TestUnsolicitedData(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)

	fwd.OnIncomingData(f2.FaceId(), &defn.FwData{NameV: mustName(t, "/nobody/asked")}, nil)
	assert.Equal(t, 0, len(f1.OutData))
}

// Nacks from every upstream combine: nothing goes downstream until the
// last upstream answers, then exactly one Nack with the most severe
// (dominating) reason.
func TestNackCombination(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f3 := addTestFace(fwd, defn.NonLocal)
	f4 := addTestFace(fwd, defn.NonLocal)
	f5 := addTestFace(fwd, defn.NonLocal)

	prefix := mustName(t, "/P")
	require.NoError(t, fwd.SetStrategy(prefix, mustName(t, "/localhost/nfd/strategy/multicast")))
	fwd.AddRoute(prefix, f3.FaceId(), 10)
	fwd.AddRoute(prefix, f4.FaceId(), 10)
	fwd.AddRoute(prefix, f5.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/P/1", 11), nil)
	require.Equal(t, 1, len(f3.OutInterests))
	require.Equal(t, 1, len(f4.OutInterests))
	require.Equal(t, 1, len(f5.OutInterests))

	nackFrom := func(tf *face.TestFace, reason defn.NackReason) {
		fwd.OnIncomingNack(tf.FaceId(), &defn.FwNack{
			Interest: tf.OutInterests[0],
			Reason:   reason,
		}, nil)
	}

	nackFrom(f3, defn.NackReasonCongestion)
	assert.Equal(t, 0, len(f1.OutNacks))
	nackFrom(f4, defn.NackReasonDuplicate)
	assert.Equal(t, 0, len(f1.OutNacks))
	nackFrom(f5, defn.NackReasonNoRoute)
	require.Equal(t, 1, len(f1.OutNacks))
	assert.Equal(t, defn.NackReasonCongestion, f1.OutNacks[0].Reason)
}

// When the one upstream that has not Nacked is also a downstream of the
// same entry, waiting would deadlock; it gets a Nack immediately.
func TestLiveDeadlockBreak(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)
	f3 := addTestFace(fwd, defn.NonLocal)

	prefix := mustName(t, "/P")
	require.NoError(t, fwd.SetStrategy(prefix, mustName(t, "/localhost/nfd/strategy/multicast")))
	fwd.AddRoute(prefix, f2.FaceId(), 10)
	fwd.AddRoute(prefix, f3.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/P/1", 21), nil)
	require.Equal(t, 1, len(f2.OutInterests))
	require.Equal(t, 1, len(f3.OutInterests))

	// f3 also expresses the same Interest with its own Nonce: recorded as
	// a downstream; the fresh out-records suppress a second fan-out
	fwd.OnIncomingInterest(f3.FaceId(), makeInterest("/P/1", 22), nil)
	require.Equal(t, 1, len(f2.OutInterests))

	fwd.OnIncomingNack(f2.FaceId(), &defn.FwNack{
		Interest: f2.OutInterests[0],
		Reason:   defn.NackReasonNoRoute,
	}, nil)

	require.Equal(t, 1, len(f3.OutNacks))
	assert.Equal(t, defn.NackReasonNoRoute, f3.OutNacks[0].Reason)
}

// A Nack that does not match an out-record Nonce is dropped.
func TestNackNonceMismatch(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)
	fwd.AddRoute(enc.Name{}, f2.FaceId(), 10)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/nack/mismatch", 5), nil)
	require.Equal(t, 1, len(f2.OutInterests))

	bogus := *f2.OutInterests[0]
	bogus.NonceV = optional.Some(uint32(9999))
	fwd.OnIncomingNack(f2.FaceId(), &defn.FwNack{Interest: &bogus, Reason: defn.NackReasonNoRoute}, nil)
	assert.Equal(t, 0, len(f1.OutNacks))
}

// Removing a face purges its FIB next hops and PIT records before any
// later event could reference the dead FaceId.
func TestFaceRemovalCleanup(t *testing.T) {
	fwd, _ := newTestForwarder(t)
	f1 := addTestFace(fwd, defn.NonLocal)
	f2 := addTestFace(fwd, defn.NonLocal)
	f3 := addTestFace(fwd, defn.NonLocal)
	fwd.AddRoute(enc.Name{}, f2.FaceId(), 10)
	fwd.AddRoute(enc.Name{}, f3.FaceId(), 20)

	fwd.OnIncomingInterest(f1.FaceId(), makeInterest("/gone/soon", 3), nil)
	require.Equal(t, 1, len(f2.OutInterests))

	fwd.Faces.Remove(f2.FaceId())

	entries := fwd.Pit.All()
	require.Equal(t, 1, len(entries))
	_, hasOut := entries[0].OutRecords()[f2.FaceId()]
	assert.False(t, hasOut)
	hops := fwd.Fib.FindLongestPrefixMatch(mustName(t, "/gone/soon")).GetNextHops()
	require.Equal(t, 1, len(hops))
	assert.Equal(t, f3.FaceId(), hops[0].Nexthop)
}

// A strategy constructed with an unsupported version or an unknown
// parameter fails with invalid-argument and leaves the old choice alone.
func TestStrategyInstantiationErrors(t *testing.T) {
	fwd, _ := newTestForwarder(t)

	_, err := fwd.InstantiateStrategy(mustName(t, "/localhost/nfd/strategy/best-route/v=99"))
	assert.Error(t, err)

	_, err = fwd.InstantiateStrategy(mustName(t, "/localhost/nfd/strategy/no-such-strategy"))
	assert.Error(t, err)

	_, err = fwd.InstantiateStrategy(mustName(t, "/localhost/nfd/strategy/best-route/v=5/bogus-param~7"))
	assert.Error(t, err)

	_, err = fwd.InstantiateStrategy(mustName(t, "/localhost/nfd/strategy/best-route/v=5/retx-suppression-initial~20"))
	assert.NoError(t, err)

	// the default choice still answers for everything
	assert.NotNil(t, fwd.StrategyChoice.FindEffectiveStrategy(mustName(t, "/any/name")))
}
