//go:build tinygo

package volatile

import (
	rtvolatile "runtime/volatile"
	"unsafe"
)

// MMIO is the bus of the running chip. Addresses are physical.
var MMIO Bus = mmio{}

type mmio struct{}

func (mmio) Load(addr uintptr) uint32 {
	return rtvolatile.LoadUint32((*uint32)(unsafe.Pointer(addr)))
}

func (mmio) Store(addr uintptr, value uint32) {
	rtvolatile.StoreUint32((*uint32)(unsafe.Pointer(addr)), value)
}
