package ids

import (
	"github.com/teris-io/shortid"
)

// New returns a short unique id, optionally prefixed ("fi_", "msg_").
func New(prefix string) string {
	return prefix + shortid.MustGenerate()
}
