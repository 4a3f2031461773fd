package reporter

import (
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

var epoch = time.Unix(1700000000, 0)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func tp(segments ...string) types.TestPath {
	return types.NewTestPath("file", segments...)
}

func msg(t types.MessageType) types.Message {
	return types.Message{Type: t}
}

// summarize renders events as "name:type" strings, using the last path
// segment (or the file name) as the name.
func summarize(events []Event) []string {
	var out []string
	for _, e := range events {
		switch e.Kind {
		case EventMessage:
			out = append(out, e.Test.Name()+":"+string(e.Message.Type))
		default:
			out = append(out, string(e.Kind))
		}
	}
	return out
}
