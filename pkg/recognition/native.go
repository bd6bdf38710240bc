package recognition

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef void (*recog_fn)(int64_t, int32_t *);

static void call_recog(void *fn, int64_t addr, int32_t *out) {
	((recog_fn)fn)(addr, out);
}

static const char *last_dl_error(void) {
	const char *e = dlerror();
	return e == NULL ? "unknown dynamic loader error" : e;
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/tauraamui/xerror"
)

const DefaultSymbol = "recog"

// Native calls a C routine of the form
//
//	void recog(int64_t mat_addr, int32_t out[10]);
//
// loaded from a shared library. mat_addr is a cv::Mat pointer, so the routine
// reads the image geometry from the matrix itself. The routine runs on the calling goroutine's
// thread. A routine that aborts takes the process down with it, only Go
// side failures can be recovered.
type Native struct {
	mu      sync.Mutex
	library string
	symbol  string
	handle  unsafe.Pointer
	fn      unsafe.Pointer
}

func LoadNative(library, symbol string) (*Native, error) {
	if len(library) == 0 {
		return nil, xerror.New("native recognizer requires a library path")
	}
	if len(symbol) == 0 {
		symbol = DefaultSymbol
	}

	clib := C.CString(library)
	defer C.free(unsafe.Pointer(clib))
	handle := C.dlopen(clib, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return nil, xerror.Errorf(
			"unable to load recognition library %s: %s", library, C.GoString(C.last_dl_error()),
		)
	}

	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))
	C.dlerror()
	fn := C.dlsym(handle, csym)
	if fn == nil {
		msg := C.GoString(C.last_dl_error())
		C.dlclose(handle)
		return nil, xerror.Errorf("unable to resolve symbol %s in %s: %s", symbol, library, msg)
	}

	return &Native{library: library, symbol: symbol, handle: handle, fn: fn}, nil
}

func (n *Native) Recognize(addr uintptr, out *Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fn == nil {
		return xerror.Errorf("native recognizer %s already closed", n.symbol)
	}
	C.call_recog(n.fn, C.int64_t(addr), (*C.int32_t)(unsafe.Pointer(&out[0])))
	return nil
}

func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handle == nil {
		return nil
	}
	n.fn = nil
	if C.dlclose(n.handle) != 0 {
		n.handle = nil
		return xerror.Errorf("unable to unload recognition library %s: %s", n.library, C.GoString(C.last_dl_error()))
	}
	n.handle = nil
	return nil
}
