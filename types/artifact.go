package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Param is a typed ABI parameter
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (p Param) String() string {
	if p.Name == "" {
		return p.Type
	}
	return fmt.Sprintf("%s: %s", p.Name, p.Type)
}

// Function is one callable entry of a contract
type Function struct {
	Name   string  `json:"name"`
	Inputs []Param `json:"inputs"`
	Output *Param  `json:"output,omitempty"`
}

func (f Function) String() string {
	inputs := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		inputs[i] = in.String()
	}
	output := "Void"
	if f.Output != nil {
		output = f.Output.String()
	}
	return fmt.Sprintf("%s :: [%s] -> %s", f.Name, strings.Join(inputs, ", "), output)
}

// ContractArtifact is the compiled description of a contract. It is read-only once built.
type ContractArtifact struct {
	Name        string
	Constructor *Function
	Functions   []Function
	ABI         abi.ABI
	Bytecode    []byte
}

// NewContractArtifact derives the function table from a parsed ABI
func NewContractArtifact(name string, parsed abi.ABI, bytecode []byte) *ContractArtifact {
	art := &ContractArtifact{
		Name:     name,
		ABI:      parsed,
		Bytecode: bytecode,
	}
	// a missing constructor leaves the zero Method in place
	if parsed.Constructor.StateMutability != "" || len(parsed.Constructor.Inputs) > 0 {
		art.Constructor = &Function{
			Name:   "constructor",
			Inputs: toParams(parsed.Constructor.Inputs),
		}
	}
	// abi.ABI.Methods is a map, so list functions by name for a stable table
	for _, name := range methodOrder(parsed) {
		m := parsed.Methods[name]
		fn := Function{
			Name:   m.Name,
			Inputs: toParams(m.Inputs),
		}
		if len(m.Outputs) > 0 {
			out := toParams(m.Outputs[:1])[0]
			fn.Output = &out
		}
		art.Functions = append(art.Functions, fn)
	}
	return art
}

// Function looks up a function by name
func (c *ContractArtifact) Function(name string) (Function, bool) {
	for _, fn := range c.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return Function{}, false
}

func (c *ContractArtifact) String() string {
	lines := make([]string, 0, len(c.Functions)+1)
	lines = append(lines, fmt.Sprintf("Contract: %s", c.Name))
	for _, fn := range c.Functions {
		lines = append(lines, "\t"+fn.String())
	}
	return strings.Join(lines, "\n")
}

func toParams(args abi.Arguments) []Param {
	params := make([]Param, len(args))
	for i, arg := range args {
		params[i] = Param{Name: arg.Name, Type: arg.Type.String()}
	}
	return params
}

func methodOrder(parsed abi.ABI) []string {
	names := make([]string, 0, len(parsed.Methods))
	for name := range parsed.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
