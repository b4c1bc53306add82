// Package compiler turns Solidity sources into contract artifacts using solc.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcompiler "github.com/ethereum/go-ethereum/common/compiler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/airchains-network/txpipe/types"
)

const DefaultSolc = "solc"

var (
	ErrCompilation = fmt.Errorf("%w: compilation failed", types.ErrValidation)
	ErrNoSources   = fmt.Errorf("%w: no solidity sources", types.ErrValidation)
)

// CompileError carries every diagnostic solc reported
type CompileError struct {
	Diagnostics []string
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 0 {
		return ErrCompilation.Error()
	}
	return fmt.Sprintf("%s:\n%s", ErrCompilation.Error(), strings.Join(e.Diagnostics, "\n\n"))
}

func (e *CompileError) Unwrap() error { return ErrCompilation }

type Compiler struct {
	fs   afero.Fs
	solc string
	log  *logrus.Logger
}

// New returns a compiler that discovers sources on fs and runs the solc binary. solc reads
// the files itself, so fs must be backed by the operating system when Compile is used.
func New(fs afero.Fs, solc string, log *logrus.Logger) *Compiler {
	if solc == "" {
		solc = DefaultSolc
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Compiler{fs: fs, solc: solc, log: log}
}

// Sources lists the .sol files below dir in lexical order
func (c *Compiler) Sources(dir string) ([]string, error) {
	var sources []string
	err := afero.Walk(c.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".sol") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources in %s: %w", dir, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSources, dir)
	}
	sort.Strings(sources)
	return sources, nil
}

// Compile compiles every source below dir. A solc failure is a *CompileError.
func (c *Compiler) Compile(ctx context.Context, dir string) ([]*types.ContractArtifact, error) {
	sources, err := c.Sources(dir)
	if err != nil {
		return nil, err
	}
	args := append([]string{"--combined-json", "abi,bin,bin-runtime", "--optimize"}, sources...)
	cmd := exec.CommandContext(ctx, c.solc, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debugf("Running %s on %d sources", c.solc, len(sources))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CompileError{Diagnostics: diagnostics(stderr.String())}
		}
		return nil, fmt.Errorf("failed to run %s: %w", c.solc, err)
	}
	if warnings := diagnostics(stderr.String()); len(warnings) > 0 {
		c.log.Warnf("solc reported %d warnings", len(warnings))
	}

	artifacts, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	c.log.Infof("Compiled %d contracts from %s", len(artifacts), dir)
	return artifacts, nil
}

// Parse reads solc --combined-json output. Artifacts are named after the contract, without
// the source path, and sorted by name.
func Parse(combined []byte) ([]*types.ContractArtifact, error) {
	contracts, err := ethcompiler.ParseCombinedJSON(combined, "", "", "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse solc output: %w", err)
	}
	artifacts := make([]*types.ContractArtifact, 0, len(contracts))
	for fullName, contract := range contracts {
		abiJSON, err := json.Marshal(contract.Info.AbiDefinition)
		if err != nil {
			return nil, fmt.Errorf("failed to encode abi of %s: %w", fullName, err)
		}
		parsed, err := abi.JSON(bytes.NewReader(abiJSON))
		if err != nil {
			return nil, fmt.Errorf("failed to parse abi of %s: %w", fullName, err)
		}
		name := fullName[strings.LastIndex(fullName, ":")+1:]
		artifacts = append(artifacts, types.NewContractArtifact(name, parsed, common.FromHex(contract.Code)))
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// FindByName returns the artifact called name
func FindByName(name string, artifacts []*types.ContractArtifact) (*types.ContractArtifact, error) {
	for _, art := range artifacts {
		if art.Name == name {
			return art, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, name)
}

func diagnostics(stderr string) []string {
	var out []string
	for _, block := range strings.Split(stderr, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}
