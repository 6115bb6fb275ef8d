package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"

	"github.com/pipeshell/pipeshell/core"
	"github.com/pipeshell/pipeshell/core/filter"
)

// tokenize produces the operator-level tokens for a run invocation.
// Multiple arguments arrive already word-split by the caller's shell and
// are taken verbatim, preserving any quoting that shell resolved. A
// single argument is treated as one quoted pipeline string and split
// shell-style.
func tokenize(args []string) ([]string, error) {
	if len(args) == 1 {
		return shlex.Split(args[0], true)
	}
	return args, nil
}

// plan is the parsed form of a run invocation: one or more command chains
// joined with +, optionally ending in an output redirect.
//
// This is token-level splitting only. Quoting is whatever shlex already
// resolved; there is no substitution, no variables, no control flow.
type plan struct {
	chains    []chain
	out       string
	appendOut bool
}

// chain is a sequence of commands connected by pipes, optionally fed by an
// input redirect on its first command.
type chain struct {
	stages []stage
	in     string
}

type stage struct {
	argv []string
}

func parseTokens(tokens []string) (*plan, error) {
	pl := &plan{}
	cur := chain{}
	st := stage{}

	flushStage := func() error {
		if len(st.argv) == 0 {
			return errors.New("missing command")
		}
		cur.stages = append(cur.stages, st)
		st = stage{}
		return nil
	}
	flushChain := func() error {
		if err := flushStage(); err != nil {
			return err
		}
		pl.chains = append(pl.chains, cur)
		cur = chain{}
		return nil
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "|":
			if err := flushStage(); err != nil {
				return nil, fmt.Errorf("before %q: %v", tok, err)
			}

		case "+":
			if err := flushChain(); err != nil {
				return nil, fmt.Errorf("before %q: %v", tok, err)
			}

		case "<":
			if i+1 >= len(tokens) {
				return nil, errors.New("missing path after <")
			}
			if len(cur.stages) > 0 {
				return nil, errors.New("input redirect must precede the first pipe")
			}
			if cur.in != "" {
				return nil, errors.New("duplicate input redirect")
			}
			i++
			cur.in = tokens[i]

		case ">", ">>":
			if i+1 != len(tokens)-1 {
				return nil, fmt.Errorf("output redirect %q must end the pipeline", tok)
			}
			pl.out = tokens[i+1]
			pl.appendOut = tok == ">>"
			i++

		default:
			st.argv = append(st.argv, tok)
		}
	}

	if err := flushChain(); err != nil {
		return nil, err
	}
	return pl, nil
}

// String renders the plan in operator form, one chain per + operand.
func (pl *plan) String() string {
	chains := make([]string, 0, len(pl.chains))
	for _, c := range pl.chains {
		stages := make([]string, 0, len(c.stages))
		for _, s := range c.stages {
			stages = append(stages, strings.Join(s.argv, " "))
		}
		text := strings.Join(stages, " | ")
		if c.in != "" {
			text += " < " + c.in
		}
		chains = append(chains, text)
	}

	out := strings.Join(chains, " + ")
	switch {
	case pl.out != "" && pl.appendOut:
		out += " >> " + pl.out
	case pl.out != "":
		out += " > " + pl.out
	}
	return out
}

// build constructs the filter graph for the plan through p.
func (pl *plan) build(p *core.CommandProcessor) (filter.Filter, error) {
	roots := make([]filter.Filter, 0, len(pl.chains))
	for _, c := range pl.chains {
		var root filter.Filter
		for i, s := range c.stages {
			cmd, err := p.Command(s.argv[0], s.argv[1:]...)
			if err != nil {
				return nil, err
			}
			if i == 0 && c.in != "" {
				if err := p.RedirectIn(cmd, c.in); err != nil {
					return nil, err
				}
			}
			if root == nil {
				root = cmd
			} else {
				root = filter.Pipe(root, cmd)
			}
		}
		roots = append(roots, root)
	}

	if len(roots) == 1 {
		return roots[0], nil
	}
	return p.Concat(roots...), nil
}
