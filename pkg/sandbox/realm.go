package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
)

// scrubbedGlobals are bindings removed from every fresh realm before user
// code runs: dynamic code evaluation, the function constructor, reflection
// and proxy primitives, weak references and finalizers, and the global self
// reference. Removal is preferred over shadowing; an absent capability is the
// only trustworthy state.
var scrubbedGlobals = []string{
	"eval",
	"Function",
	"globalThis",
	"Proxy",
	"Reflect",
	"Symbol",
	"WeakRef",
	"FinalizationRegistry",
}

// Realm is an isolated evaluation environment created for exactly one
// execution. goja builds a complete, independent ECMAScript object graph per
// Runtime, so nothing reachable from inside a Realm resolves to a host type:
// there is no path from script values to the Go runtime, a module loader or a
// process handle. Realms are never pooled or reused; each one is discarded
// when its call returns, which bounds any partial compromise to a single
// request.
type Realm struct {
	vm *goja.Runtime
}

// RealmBuilder constructs a fresh Realm. The engine uses newRealm by default;
// tests substitute builders to observe or fail realm construction.
type RealmBuilder func(cfg Config) (*Realm, error)

// newRealm creates a new goja runtime, caps its call stack and removes the
// reflective globals. Safe self-contained built-ins (Math, JSON, String,
// Number, Date, parseInt, parseFloat) remain available to scripts.
func newRealm(cfg Config) (*Realm, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(cfg.MaxCallStackSize)

	global := vm.GlobalObject()
	for _, name := range scrubbedGlobals {
		if err := global.Delete(name); err != nil {
			// Not deletable on this runtime; shadow it instead.
			if setErr := vm.Set(name, goja.Undefined()); setErr != nil {
				return nil, fmt.Errorf("failed to remove global %q: %w", name, setErr)
			}
		}
	}

	return &Realm{vm: vm}, nil
}

// interrupt aborts in-progress evaluation, including tight loops with no
// suspension points. The cause surfaces from the interpreter as an error.
func (r *Realm) interrupt(cause string) {
	r.vm.Interrupt(cause)
}
