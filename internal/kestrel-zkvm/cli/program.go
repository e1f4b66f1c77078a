package cli

import (
	"fmt"
	"strconv"
	"strings"

	kestrelzkvm "github.com/kestrel-zk/kestrel-zkvm/pkg/kestrel-zkvm"
)

// kestrelConfig aliases the public configuration type for the CLI.
type kestrelConfig = kestrelzkvm.Config

func configFromPath(path string) (*kestrelConfig, error) {
	if path == "" {
		return kestrelzkvm.DefaultConfig(), nil
	}
	return kestrelzkvm.LoadConfig(path)
}

// parseProgram resolves a guest program spec of the form "name" or
// "name:arg[:arg]", e.g. "fib:10", "countdown:500:7", "echo".
func parseProgram(spec string) (*kestrelzkvm.Program, error) {
	parts := strings.Split(spec, ":")
	name, args := parts[0], parts[1:]

	num := func(i int) (uint64, error) {
		if i >= len(args) {
			return 0, fmt.Errorf("program %q needs argument %d", name, i+1)
		}
		v, err := strconv.ParseUint(args[i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("program %q argument %d: %w", name, i+1, err)
		}
		return v, nil
	}

	switch name {
	case "fib":
		n, err := num(0)
		if err != nil {
			return nil, err
		}
		return kestrelzkvm.FibProgram(n), nil
	case "countdown":
		n, err := num(0)
		if err != nil {
			return nil, err
		}
		commit, err := num(1)
		if err != nil {
			return nil, err
		}
		return kestrelzkvm.CountdownProgram(n, commit), nil
	case "echo":
		return kestrelzkvm.EchoProgram(), nil
	default:
		return nil, fmt.Errorf("unknown program %q (want fib:N, countdown:N:COMMIT or echo)", name)
	}
}
