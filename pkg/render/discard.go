package render

import "github.com/tauraamui/dragonlens/pkg/pixelbuf"

func Discard() Sink {
	return discardSink{}
}

type discardSink struct{}

func (discardSink) Show(*pixelbuf.Buffer) error { return nil }
func (discardSink) Poll()                       {}
func (discardSink) Close() error                { return nil }
