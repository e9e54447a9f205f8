package sandbox

import (
	"encoding/json"

	"github.com/dop251/goja"
)

// dataGlobal is the single binding through which scripts reach the
// caller-supplied data value.
const dataGlobal = "$"

// inject moves the caller's data into the realm. The value is serialized to
// JSON text on the host side (nil becomes the null literal) and materialized
// by the realm's own JSON.parse, so every object reachable from $ has
// realm-local type identity. Binding a host-constructed object directly would
// leak host type identity through its prototype chain and defeat the
// isolation argument, even with the global scrubbing in place.
func (r *Realm) inject(data interface{}) *ScriptError {
	raw, err := json.Marshal(data)
	if err != nil {
		return NewSerializationError(err)
	}

	jsonValue := r.vm.Get("JSON")
	if jsonValue == nil || goja.IsUndefined(jsonValue) {
		return NewInternalError("realm is missing its JSON facility")
	}

	parse, ok := goja.AssertFunction(jsonValue.ToObject(r.vm).Get("parse"))
	if !ok {
		return NewInternalError("realm JSON.parse is not callable")
	}

	parsed, err := parse(goja.Undefined(), r.vm.ToValue(string(raw)))
	if err != nil {
		return NewInternalError("failed to parse injected data inside realm: " + err.Error())
	}

	if err := r.vm.Set(dataGlobal, parsed); err != nil {
		return NewInternalError("failed to bind injected data: " + err.Error())
	}
	return nil
}
