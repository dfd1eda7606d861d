package trace

import (
	"strconv"

	"github.com/google/uuid"
)

// Attr is one key/value annotation on an event. Attributes keep the
// order they were given in.
type Attr struct {
	Key   string
	Value string
}

// Str annotates with a string.
func Str(key, value string) Attr { return Attr{Key: key, Value: value} }

// Int annotates with an integer.
func Int(key string, v int) Attr { return Attr{Key: key, Value: strconv.Itoa(v)} }

// Uint annotates with an unsigned integer.
func Uint(key string, v uint64) Attr { return Attr{Key: key, Value: strconv.FormatUint(v, 10)} }

// Body names the function body an event belongs to.
func Body(name string) Attr { return Attr{Key: "body", Value: name} }

// Act identifies one activation of a body. Every event of a suspended and
// later resumed activation carries the same id.
func Act(id uuid.UUID) Attr { return Attr{Key: "act", Value: id.String()} }

// PC is the instruction position an event refers to.
func PC(pc int) Attr { return Attr{Key: "pc", Value: strconv.Itoa(pc)} }
