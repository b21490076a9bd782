package lirasm

import "reflect"

// funcAddr returns the entry address of a Go function value, for
// stashing in a built-in CallInfo's Target. The native emitter treats
// it exactly like a user function's resolved address; there is no
// distinction at the call-emission boundary.
func funcAddr(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
