package nonce_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/eth/mocks"
	"github.com/airchains-network/txpipe/nonce"
	"github.com/airchains-network/txpipe/types"
)

var addr = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newSequencer(t *testing.T, confirmed uint64) (*nonce.Sequencer, *mocks.MockTransport) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	transport := mocks.NewMockTransport(gomock.NewController(t))
	transport.EXPECT().TransactionCount(gomock.Any(), addr).Return(confirmed, nil).AnyTimes()
	return nonce.NewSequencer(eth.NewClient(transport, eth.WithLogger(log)), log), transport
}

func TestReserveSeedsAndIncrements(t *testing.T) {
	seq, _ := newSequencer(t, 5)
	for want := uint64(5); want < 8; want++ {
		got, err := seq.Reserve(context.Background(), addr)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestConcurrentReservationsAreUnique(t *testing.T) {
	const n = 64
	seq, _ := newSequencer(t, 0)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []uint64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Reserve(context.Background(), addr)
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		require.Equal(t, uint64(i), v)
	}
}

func TestReleasedNonceIsReusedLowestFirst(t *testing.T) {
	ctx := context.Background()
	seq, _ := newSequencer(t, 0)
	for i := 0; i < 4; i++ {
		_, err := seq.Reserve(ctx, addr)
		require.NoError(t, err)
	}
	seq.Release(addr, 2)
	seq.Release(addr, 1)
	seq.Release(addr, 1)

	for _, want := range []uint64{1, 2, 4} {
		got, err := seq.Reserve(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReleasingTheLastNonceShrinks(t *testing.T) {
	ctx := context.Background()
	seq, _ := newSequencer(t, 0)
	for i := 0; i < 3; i++ {
		_, err := seq.Reserve(ctx, addr)
		require.NoError(t, err)
	}
	seq.Release(addr, 1)
	seq.Release(addr, 2)
	seq.Release(addr, 7)

	got, err := seq.Reserve(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got)
	got, err = seq.Reserve(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), got)
}

func TestResyncReseeds(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	transport := mocks.NewMockTransport(gomock.NewController(t))
	gomock.InOrder(
		transport.EXPECT().TransactionCount(gomock.Any(), addr).Return(uint64(0), nil),
		transport.EXPECT().TransactionCount(gomock.Any(), addr).Return(uint64(9), nil),
	)
	seq := nonce.NewSequencer(eth.NewClient(transport, eth.WithLogger(log)), log)

	got, err := seq.Reserve(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(0), got)

	seq.Resync(addr)
	got, err = seq.Reserve(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(9), got)
}

func TestSeedFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	transport := mocks.NewMockTransport(gomock.NewController(t))
	gomock.InOrder(
		transport.EXPECT().TransactionCount(gomock.Any(), addr).Return(uint64(0), errors.New("dial tcp: refused")),
		transport.EXPECT().TransactionCount(gomock.Any(), addr).Return(uint64(3), nil),
	)
	seq := nonce.NewSequencer(eth.NewClient(transport, eth.WithLogger(log)), log)

	_, err := seq.Reserve(ctx, addr)
	require.ErrorIs(t, err, types.ErrNetwork)

	got, err := seq.Reserve(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got)
}
