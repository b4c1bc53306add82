package server_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/airchains-network/txpipe/eth"
	"github.com/airchains-network/txpipe/eth/ethtest"
	"github.com/airchains-network/txpipe/journal"
	"github.com/airchains-network/txpipe/metrics"
	"github.com/airchains-network/txpipe/nonce"
	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/server"
	"github.com/airchains-network/txpipe/types"
	"github.com/airchains-network/txpipe/wallet"
)

var (
	bob         = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	storageAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fixture struct {
	srv   *server.Server
	chain *ethtest.Chain
	key   *wallet.AccountKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, _ := logtest.NewNullLogger()

	chain := ethtest.NewChain(big.NewInt(1337))
	key, err := wallet.GenerateAccountKey()
	require.NoError(t, err)
	chain.Fund(key.Address(), big.NewInt(1e18))
	chain.Deploy(storageAddr, ethtest.NewSimpleStorage(big.NewInt(5)))

	client := eth.NewClient(chain, eth.WithPollInterval(time.Millisecond), eth.WithLogger(log))
	pipe := pipeline.New(client, nonce.NewSequencer(client, log), pipeline.Options{
		ChainID: big.NewInt(1337), GasPrice: big.NewInt(1), ReceiptTimeout: time.Second,
	}, log)

	db, err := journal.NewMemLevelDB()
	require.NoError(t, err)
	jrnl := journal.New(db, log)
	t.Cleanup(func() { jrnl.Close() })

	reg := prometheus.NewRegistry()
	hub := server.NewHub(log)
	pipe.Subscribe(jrnl)
	pipe.Subscribe(metrics.NewCollector(reg))
	pipe.Subscribe(hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := server.New(server.Deps{
		Pipeline:  pipe,
		Signer:    key,
		Journal:   jrnl,
		Hub:       hub,
		Gatherer:  reg,
		Artifacts: []*types.ContractArtifact{ethtest.SimpleStorageArtifact()},
		Log:       log,
	})
	return &fixture{srv: srv, chain: chain, key: key}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestBalanceAndNonce(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/balance/"+f.key.Address().Hex(), "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "1000000000000000000", body["wei"])
	require.Equal(t, "1", body["ether"])

	code, body = f.do(t, http.MethodGet, "/nonce/"+f.key.Address().Hex(), "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), body["nonce"])

	code, _ = f.do(t, http.MethodGet, "/balance/not-an-address", "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestTransferAndLookup(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/transfer", `{"to":"`+bob.Hex()+`","amount":"10000wei"}`)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "confirmed", body["state"])
	hash := body["hash"].(string)
	require.Equal(t, int64(10000), f.chain.Balance(bob).Int64())

	code, body = f.do(t, http.MethodGet, "/tx/"+hash, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "confirmed", body["state"])
	require.Equal(t, "10000", body["value"])

	code, body = f.do(t, http.MethodGet, "/history/"+f.key.Address().Hex(), "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["transactions"], 1)

	code, _ = f.do(t, http.MethodGet, "/tx/"+common.HexToHash("0x01").Hex(), "")
	require.Equal(t, http.StatusNotFound, code)

	code, body = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.Nil(t, body)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"to":"` + bob.Hex() + `","amount":"-1"}`,
		`{"to":"` + bob.Hex() + `","amount":"0.0000000000000000001"}`,
		`{"to":"0x12","amount":"1"}`,
		`{"to":"` + bob.Hex() + `"}`,
		`{"to":"` + bob.Hex() + `","amount":"1","gasPrice":"0"}`,
	} {
		code, _ := f.do(t, http.MethodPost, "/transfer", body)
		require.Equal(t, http.StatusBadRequest, code, body)
	}
	require.Zero(t, f.chain.Submitted())
}

func TestTransferRejected(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/transfer", `{"to":"`+bob.Hex()+`","amount":"5ether"}`)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "rejected", body["state"])
	require.Contains(t, body["error"], "insufficient funds")
}

func TestWebsocketStreamsEvents(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.Hub().Clients() == 1 }, time.Second, 5*time.Millisecond)

	code, _ := f.do(t, http.MethodPost, "/transfer", `{"to":"`+bob.Hex()+`","amount":"1wei"}`)
	require.Equal(t, http.StatusOK, code)

	var states []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(states) < 4 {
		var msg server.EventMessage
		require.NoError(t, conn.ReadJSON(&msg))
		states = append(states, msg.State)
	}
	require.Equal(t, []string{"built", "signed", "submitted", "confirmed"}, states)
}

func TestContractEndpoints(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/contracts", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["contracts"], 1)

	call := `{"contract":"` + storageAddr.Hex() + `","artifact":"SimpleStorage","function":"get"}`
	code, body = f.do(t, http.MethodPost, "/call", call)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, []interface{}{"5"}, body["outputs"])

	code, body = f.do(t, http.MethodPost, "/invoke",
		`{"contract":"`+storageAddr.Hex()+`","artifact":"SimpleStorage","function":"set","args":["12"]}`)
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, "confirmed", body["state"])

	_, body = f.do(t, http.MethodPost, "/call", call)
	require.Equal(t, []interface{}{"12"}, body["outputs"])

	code, body = f.do(t, http.MethodPost, "/invoke",
		`{"contract":"`+storageAddr.Hex()+`","artifact":"SimpleStorage","function":"set","args":["0"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, "reverted", body["state"])

	code, _ = f.do(t, http.MethodPost, "/call",
		`{"contract":"`+storageAddr.Hex()+`","artifact":"Token","function":"get"}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/call",
		`{"contract":"`+storageAddr.Hex()+`","artifact":"SimpleStorage","function":"owner"}`)
	require.Equal(t, http.StatusBadRequest, code)
}
