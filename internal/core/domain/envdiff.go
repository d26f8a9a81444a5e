package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"sort"

	"go.trai.ch/zerr"
)

// SentinelVar records the manager's previous environment contribution in
// the shell so the next hook-env invocation can compute a minimal delta.
const SentinelVar = "__MISE_DIFF"

// EnvContribution is what the manager added to a shell environment: the
// PATH entries it prepended and the variables it exported.
type EnvContribution struct {
	Paths []string
	Env   map[string]string
}

// Encode serializes the contribution for storage in the sentinel variable.
func (c EnvContribution) Encode() (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return "", zerr.Wrap(err, "failed to encode env contribution")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeContribution parses a sentinel value. An empty or malformed value
// decodes to the zero contribution; hook-env treats that as first
// activation rather than failing.
func DecodeContribution(s string) EnvContribution {
	if s == "" {
		return EnvContribution{}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return EnvContribution{}
	}
	var c EnvContribution
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&c); err != nil {
		return EnvContribution{}
	}
	return c
}

// EnvOp is one shell instruction emitted by hook-env.
type EnvOp struct {
	Key   string
	Value string
	Unset bool
}

// DiffEnv computes the set/unset instructions that transform the old
// variable map into the new one. Keys present in both with equal values
// produce no op. Output is sorted by key for deterministic emission.
func DiffEnv(oldEnv, newEnv map[string]string) []EnvOp {
	var ops []EnvOp
	for k, v := range newEnv {
		if prev, ok := oldEnv[k]; !ok || prev != v {
			ops = append(ops, EnvOp{Key: k, Value: v})
		}
	}
	for k := range oldEnv {
		if _, ok := newEnv[k]; !ok {
			ops = append(ops, EnvOp{Key: k, Unset: true})
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Key < ops[j].Key })
	return ops
}

// ApplyEnvOps applies instructions to a variable map, mutating it. Used by
// tests to check hook-env reversibility and by `mise x` to build the child
// environment.
func ApplyEnvOps(env map[string]string, ops []EnvOp) {
	for _, op := range ops {
		if op.Unset {
			delete(env, op.Key)
		} else {
			env[op.Key] = op.Value
		}
	}
}
