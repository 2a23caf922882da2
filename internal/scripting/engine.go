// Package scripting runs Lua scenario scripts that drive the simulation
// through the same command path as network clients.
package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rtsgo/server/internal/command"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Submitter accepts commands for the simulation. Implemented by sim.Loop and
// sim.Engine.
type Submitter interface {
	Submit(ctx context.Context, cmd command.Command) error
}

// Engine wraps a single gopher-lua VM. Not safe for concurrent use.
type Engine struct {
	vm     *lua.LState
	target Submitter
	log    *zap.Logger
	ctx    context.Context

	submitted int
}

// NewEngine creates a VM with the `sim` module preloaded as a global table:
//
//	sim.create_unit([id,] x, y) -> id
//	sim.set_destination(id, x, y)
//	sim.reset()
//	sim.new_id() -> id
//	sim.log(msg)
func NewEngine(target Submitter, log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, target: target, log: log, ctx: context.Background()}
	mod := vm.SetFuncs(vm.NewTable(), map[string]lua.LGFunction{
		"create_unit":     e.luaCreateUnit,
		"set_destination": e.luaSetDestination,
		"reset":           e.luaReset,
		"new_id":          e.luaNewID,
		"log":             e.luaLog,
	})
	vm.SetGlobal("sim", mod)
	return e
}

// Close releases the VM.
func (e *Engine) Close() { e.vm.Close() }

// Submitted returns how many commands scripts have issued so far.
func (e *Engine) Submitted() int { return e.submitted }

// RunScenario executes a script file, or every .lua file in a directory in
// name order. Commands are submitted with ctx; cancelling it aborts the
// script at its next call into the sim module.
func (e *Engine) RunScenario(ctx context.Context, path string) error {
	e.ctx = ctx
	e.vm.SetContext(ctx)
	defer func() {
		e.ctx = context.Background()
		e.vm.RemoveContext()
	}()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	before := e.submitted
	if info.IsDir() {
		err = e.loadDir(path)
	} else {
		err = e.doFile(path)
	}
	if err != nil {
		return err
	}
	e.log.Info("scenario finished",
		zap.String("path", path),
		zap.Int("commands", e.submitted-before),
	)
	return nil
}

// RunString executes a chunk of Lua source. Cancelling ctx stops it.
func (e *Engine) RunString(ctx context.Context, src string) error {
	e.ctx = ctx
	e.vm.SetContext(ctx)
	defer func() {
		e.ctx = context.Background()
		e.vm.RemoveContext()
	}()
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("run lua: %w", err)
	}
	return nil
}

func (e *Engine) doFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	e.log.Debug("ran lua script", zap.String("file", path))
	return nil
}

// loadDir runs all .lua files in a directory. os.ReadDir returns them
// sorted by name.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scenario dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		if err := e.doFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) submit(L *lua.LState, cmd command.Command) {
	if err := e.target.Submit(e.ctx, cmd); err != nil {
		L.RaiseError("submit %s: %s", cmd.Kind, err.Error())
		return
	}
	e.submitted++
}

func (e *Engine) luaCreateUnit(L *lua.LState) int {
	var id string
	first := 1
	if L.GetTop() >= 3 {
		id = L.CheckString(1)
		first = 2
	}
	if id == "" {
		id = uuid.NewString()
	}
	x := float32(L.CheckNumber(first))
	y := float32(L.CheckNumber(first + 1))
	e.submit(L, command.CreateUnit(id, x, y))
	L.Push(lua.LString(id))
	return 1
}

func (e *Engine) luaSetDestination(L *lua.LState) int {
	id := L.CheckString(1)
	x := float32(L.CheckNumber(2))
	y := float32(L.CheckNumber(3))
	e.submit(L, command.SetDestination(id, x, y))
	return 0
}

func (e *Engine) luaReset(L *lua.LState) int {
	e.submit(L, command.ResetWorld())
	return 0
}

func (e *Engine) luaNewID(L *lua.LState) int {
	L.Push(lua.LString(uuid.NewString()))
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
