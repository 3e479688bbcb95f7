package wam

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

func (a RegAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a StackAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a QueryAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (op Opcode) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (c *Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// MarshalJSON encodes the registers and stacks of the machine. The program
// itself is not included.
func (m *Machine) MarshalJSON() ([]byte, error) {
	enc := newMachineEncoder(m)
	obj := map[string]interface{}{
		"PC":             m.PC,
		"Continuation":   m.Continuation,
		"Args":           m.Args,
		"QueryVars":      m.QueryVars,
		"Trail":          enc.trail(),
		"EnvPos":         enc.getEnvPos(m.Env),
		"Envs":           enc.envs_(),
		"ChoicePos":      enc.getChoicePos(m.ChoicePoint),
		"ChoicePoints":   enc.choices_(),
		"CutPos":         enc.getChoicePos(m.CutPoint),
		"OpCount":        m.OpCount,
		"BacktrackCount": m.BacktrackCount,
		"Failed":         m.Failed,
	}
	return json.Marshal(obj)
}

type machineEncoder struct {
	m         *Machine
	envPos    map[*Env]int
	choicePos map[*ChoicePoint]int
	envs      []*Env
	choices   []*ChoicePoint
}

func newMachineEncoder(m *Machine) *machineEncoder {
	enc := &machineEncoder{
		m:         m,
		envPos:    make(map[*Env]int),
		choicePos: make(map[*ChoicePoint]int),
	}
	for cp := m.ChoicePoint; cp != nil; cp = cp.Prev {
		enc.choicePos[cp] = len(enc.choices)
		enc.choices = append(enc.choices, cp)
	}
	enc.addEnvs(m.Env)
	for _, cp := range enc.choices {
		enc.addEnvs(cp.Env)
	}
	return enc
}

func (enc *machineEncoder) addEnvs(env *Env) {
	for ; env != nil; env = env.Prev {
		if _, ok := enc.envPos[env]; ok {
			return
		}
		enc.envPos[env] = len(enc.envs)
		enc.envs = append(enc.envs, env)
	}
}

func (enc *machineEncoder) getEnvPos(env *Env) interface{} {
	pos, ok := enc.envPos[env]
	if !ok {
		return nil
	}
	return pos
}

func (enc *machineEncoder) getChoicePos(choice *ChoicePoint) interface{} {
	pos, ok := enc.choicePos[choice]
	if !ok {
		return nil
	}
	return pos
}

func (enc *machineEncoder) trail() []string {
	entries := enc.m.Trail.entries
	xs := make([]string, len(entries))
	for i, c := range entries {
		switch {
		case c == nil:
			xs[i] = "<nil>"
		case c.Tag == AssertMark:
			xs[i] = "assert(" + c.Value + ")"
		default:
			xs[i] = c.String()
		}
	}
	return xs
}

func (enc *machineEncoder) envs_() []interface{} {
	envs := make([]interface{}, len(enc.envs))
	for i, env := range enc.envs {
		envs[i] = map[string]interface{}{
			"PrevPos":      enc.getEnvPos(env.Prev),
			"Continuation": env.Continuation,
			"Vars":         env.Vars,
		}
	}
	return envs
}

func (enc *machineEncoder) choices_() []interface{} {
	choices := make([]interface{}, len(enc.choices))
	for i, choice := range enc.choices {
		choices[i] = map[string]interface{}{
			"PrevPos":      enc.getChoicePos(choice.Prev),
			"NextClause":   choice.NextClause,
			"Args":         choice.Args,
			"TrailSize":    choice.TrailSize,
			"EnvPos":       enc.getEnvPos(choice.Env),
			"CutPos":       enc.getChoicePos(choice.CutPoint),
			"Continuation": choice.Continuation,
		}
	}
	return choices
}

// ---- Debug trace

// debugStep is a single record of the JSONL trace.
type debugStep struct {
	Clock     int
	PC        int
	Statement string
	Machine   *Machine `json:",omitempty"`
}

// debugInit opens the trace file for appending, since a query may run
// several times. It returns nil if tracing is disabled.
func (m *Machine) debugInit() io.WriteCloser {
	if m.Debug <= 0 || m.DebugFilename == "" {
		return nil
	}
	if dir := filepath.Dir(m.DebugFilename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.logger().Error("failed to create debug dir", slog.String("dir", dir), slog.Any("err", err))
			return nil
		}
	}
	f, err := os.OpenFile(m.DebugFilename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		m.logger().Error("failed to open debug file", slog.String("file", m.DebugFilename), slog.Any("err", err))
		return nil
	}
	return f
}

func (m *Machine) debugClose(f io.WriteCloser) {
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		m.logger().Error("failed to close debug file", slog.Any("err", err))
	}
}

func (m *Machine) debugWrite(f io.Writer, s *Statement) {
	if f == nil {
		return
	}
	step := debugStep{Clock: m.OpCount, PC: m.PC, Statement: s.String()}
	if m.Debug > 1 {
		step.Machine = m
	}
	data, err := json.Marshal(step)
	if err != nil {
		m.logger().Error("failed to marshal debug step", slog.Any("err", err))
		return
	}
	f.Write(data)
	f.Write([]byte{'\n'})
}
