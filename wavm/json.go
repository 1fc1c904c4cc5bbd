// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type jsonInstruction struct {
	Op    string      `json:"op,omitempty"`
	Arg   json.Number `json:"arg,omitempty"`
	To    string      `json:"to,omitempty"`
	Func  string      `json:"func,omitempty"`
	Label string      `json:"label,omitempty"`
}

type jsonFunction struct {
	Name    string            `json:"name"`
	Params  uint16            `json:"params"`
	Locals  uint16            `json:"locals"`
	Results uint16            `json:"results"`
	Code    []jsonInstruction `json:"code"`
}

type jsonSegment struct {
	Offset uint64        `json:"offset"`
	Bytes  hexutil.Bytes `json:"bytes"`
}

type jsonProgram struct {
	MemoryPages uint64         `json:"memoryPages"`
	Globals     []json.Number  `json:"globals"`
	Data        []jsonSegment  `json:"data"`
	Functions   []jsonFunction `json:"functions"`
}

func parseNumber(n json.Number) (uint64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(string(n), 0, 64); err == nil {
		return uint64(v), nil
	}
	return strconv.ParseUint(string(n), 0, 64)
}

// ParseProgram reads the JSON program format. Functions are laid out in the
// order given; labels are scoped to their function.
func ParseProgram(data []byte) (*Program, error) {
	var jp jsonProgram
	if err := json.Unmarshal(data, &jp); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	b := NewBuilder()
	for _, f := range jp.Functions {
		b.Func(f.Name, f.Params, f.Locals, f.Results)
		for i, ji := range f.Code {
			if ji.Label != "" {
				if ji.Op != "" {
					return nil, fmt.Errorf("%s[%d]: label entries take no op", f.Name, i)
				}
				b.Label(f.Name + "." + ji.Label)
				continue
			}
			op, err := ParseOpcode(ji.Op)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", f.Name, i, err)
			}
			switch {
			case op.isJump():
				b.Jump(op, f.Name+"."+ji.To)
			case op == Call:
				b.Call(ji.Func)
			default:
				arg, err := parseNumber(ji.Arg)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: bad argument %q: %w", f.Name, i, ji.Arg, err)
				}
				if op == I32Const {
					arg = uint64(uint32(arg))
				}
				b.Emit(op, arg)
			}
		}
	}
	code, functions, err := b.Build()
	if err != nil {
		return nil, err
	}
	prog := &Program{
		Code:        code,
		Functions:   functions,
		MemoryPages: jp.MemoryPages,
	}
	for i, g := range jp.Globals {
		v, err := parseNumber(g)
		if err != nil {
			return nil, fmt.Errorf("global %d: %w", i, err)
		}
		prog.Globals = append(prog.Globals, v)
	}
	for _, seg := range jp.Data {
		prog.Data = append(prog.Data, Segment{Offset: seg.Offset, Data: seg.Bytes})
	}
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProgram(data)
}
