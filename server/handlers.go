package server

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/airchains-network/txpipe/compiler"
	"github.com/airchains-network/txpipe/contract"
	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/types"
	"github.com/airchains-network/txpipe/units"
)

type transferRequest struct {
	To       string `json:"to" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	GasLimit uint64 `json:"gasLimit"`
	GasPrice string `json:"gasPrice"`
}

type contractRequest struct {
	Contract string   `json:"contract" binding:"required"`
	Artifact string   `json:"artifact" binding:"required"`
	Function string   `json:"function" binding:"required"`
	Args     []string `json:"args"`
	GasLimit uint64   `json:"gasLimit"`
	GasPrice string   `json:"gasPrice"`
}

func (s *Server) handleBalance(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	balance, err := s.deps.Pipeline.Client().GetBalance(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": addr.Hex(),
		"wei":     balance.String(),
		"ether":   units.ToDecimal(balance),
	})
}

func (s *Server) handleNonce(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	nonce, err := s.deps.Pipeline.Client().GetNonce(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr.Hex(), "nonce": nonce})
}

func (s *Server) handleTransfer(c *gin.Context) {
	if s.deps.Signer == nil {
		s.fail(c, fmt.Errorf("signing key: %w", errUnavailable))
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", types.ErrValidation, err))
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		s.fail(c, err)
		return
	}
	value, err := units.ParseAmount(req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	gas, err := gasOptions(req.GasLimit, req.GasPrice)
	if err != nil {
		s.fail(c, err)
		return
	}

	run, err := s.deps.Pipeline.Transfer(c.Request.Context(), s.deps.Signer, to, value, gas)
	if err != nil {
		s.failRun(c, run, err)
		return
	}
	c.JSON(http.StatusOK, runView(run))
}

func (s *Server) handleTx(c *gin.Context) {
	if s.deps.Journal == nil {
		s.fail(c, fmt.Errorf("journal: %w", errUnavailable))
		return
	}
	raw := c.Param("hash")
	if len(common.FromHex(raw)) != common.HashLength {
		s.fail(c, fmt.Errorf("%w: invalid transaction hash %q", types.ErrValidation, raw))
		return
	}
	record, err := s.deps.Journal.Get(common.HexToHash(raw))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.deps.Journal == nil {
		s.fail(c, fmt.Errorf("journal: %w", errUnavailable))
		return
	}
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	records, err := s.deps.Journal.BySender(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr.Hex(), "transactions": records})
}

func (s *Server) handleContracts(c *gin.Context) {
	list := make([]gin.H, 0, len(s.deps.Artifacts))
	for _, art := range s.deps.Artifacts {
		list = append(list, gin.H{
			"name":        art.Name,
			"constructor": art.Constructor,
			"functions":   art.Functions,
			"summary":     art.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"contracts": list})
}

func (s *Server) handleCall(c *gin.Context) {
	target, fn, args, _, err := s.bindContractRequest(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	outputs, err := s.invoker.Call(c.Request.Context(), target, fn, args...)
	if err != nil {
		s.fail(c, err)
		return
	}
	formatted := make([]string, len(outputs))
	for i, out := range outputs {
		formatted[i] = contract.FormatValue(out)
	}
	c.JSON(http.StatusOK, gin.H{"contract": target.String(), "function": fn, "outputs": formatted})
}

func (s *Server) handleInvoke(c *gin.Context) {
	if s.deps.Signer == nil {
		s.fail(c, fmt.Errorf("signing key: %w", errUnavailable))
		return
	}
	target, fn, args, gas, err := s.bindContractRequest(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	run, err := s.deps.Pipeline.ContractCall(c.Request.Context(), s.deps.Signer, target.Address, target.Artifact, fn, args, gas)
	if err != nil {
		s.failRun(c, run, err)
		return
	}
	c.JSON(http.StatusOK, runView(run))
}

func (s *Server) bindContractRequest(c *gin.Context) (contract.Contract, string, []interface{}, pipeline.GasOptions, error) {
	var req contractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return contract.Contract{}, "", nil, pipeline.GasOptions{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	addr, err := parseAddress(req.Contract)
	if err != nil {
		return contract.Contract{}, "", nil, pipeline.GasOptions{}, err
	}
	art, err := compiler.FindByName(req.Artifact, s.deps.Artifacts)
	if err != nil {
		return contract.Contract{}, "", nil, pipeline.GasOptions{}, err
	}
	args, err := contract.ParseArgs(art, req.Function, req.Args)
	if err != nil {
		return contract.Contract{}, "", nil, pipeline.GasOptions{}, err
	}
	gas, err := gasOptions(req.GasLimit, req.GasPrice)
	if err != nil {
		return contract.Contract{}, "", nil, pipeline.GasOptions{}, err
	}
	return contract.Contract{Address: addr, Artifact: art}, req.Function, args, gas, nil
}

// failRun reports err along with whatever the run got to
func (s *Server) failRun(c *gin.Context, run *pipeline.Run, err error) {
	if run == nil {
		s.fail(c, err)
		return
	}
	view := runView(run)
	view["error"] = err.Error()
	c.JSON(statusFor(err), view)
}

func runView(run *pipeline.Run) gin.H {
	view := gin.H{
		"state": run.State().String(),
		"nonce": run.Transaction().Nonce,
	}
	if hash := run.Hash(); hash != (common.Hash{}) {
		view["hash"] = hash.Hex()
	}
	if r := run.Receipt(); r != nil {
		view["receipt"] = receiptView(r)
	}
	return view
}

func gasOptions(limit uint64, price string) (pipeline.GasOptions, error) {
	gas := pipeline.GasOptions{GasLimit: limit}
	if price != "" {
		p, ok := new(big.Int).SetString(price, 0)
		if !ok || p.Sign() <= 0 {
			return gas, fmt.Errorf("%w: invalid gas price %q", types.ErrInvalidTransactionParameters, price)
		}
		gas.GasPrice = p
	}
	return gas, nil
}
