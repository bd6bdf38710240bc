package pixelbuf

import "github.com/tauraamui/xerror"

const (
	MalformedFrame     = xerror.Kind("malformed_frame")
	ResourceExhaustion = xerror.Kind("resource_exhaustion")
)

var (
	ErrMalformedFrame     = xerror.NewWithKind(MalformedFrame, "malformed frame")
	ErrResourceExhaustion = xerror.NewWithKind(ResourceExhaustion, "unable to allocate pixel buffer")
)
