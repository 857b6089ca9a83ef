package service

const (
	// InlineMaxSize 是内联存储的上限（含）。
	InlineMaxSize int64 = 16 << 20
	// MaxPayloadSize 是允许上传的最大文件大小（含）。
	MaxPayloadSize int64 = 128 << 20
)

// Decision 是按大小选出的存储路径。
type Decision int

const (
	DecisionInline Decision = iota
	DecisionChunked
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionInline:
		return "inline"
	case DecisionChunked:
		return "chunked"
	default:
		return "reject"
	}
}

// Route 只依据字节数决定存储层，边界值归入较小的一档。
func Route(size int64) Decision {
	switch {
	case size > MaxPayloadSize:
		return DecisionReject
	case size > InlineMaxSize:
		return DecisionChunked
	default:
		return DecisionInline
	}
}
