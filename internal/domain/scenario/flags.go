package scenario

import (
	"fmt"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

// MemoryFlag selects rows by their use of on-chip local memory.
type MemoryFlag int

const (
	MemoryNone MemoryFlag = iota
	MemoryLocal
	MemoryCache
)

// String returns the command line token of the flag.
func (m MemoryFlag) String() string {
	switch m {
	case MemoryLocal:
		return "local"
	case MemoryCache:
		return "cache"
	default:
		return "none"
	}
}

// SplitFlag selects rows by their time-splitting strategy.
type SplitFlag int

const (
	SplitNone SplitFlag = iota
	SplitSplit
	SplitContinuous
)

// String returns the command line token of the flag.
func (s SplitFlag) String() string {
	switch s {
	case SplitSplit:
		return "split"
	case SplitContinuous:
		return "cont"
	default:
		return "none"
	}
}

// Flags is the optimization strategy selector.
type Flags struct {
	Memory MemoryFlag
	Split  SplitFlag
}

// IsZero reports whether no flag is set.
func (f Flags) IsZero() bool {
	return f.Memory == MemoryNone && f.Split == SplitNone
}

// ParseFlags parses optional flag tokens: at most one of local|cache and one of split|cont.
func ParseFlags(tokens []string) (Flags, error) {
	var flags Flags
	for _, token := range tokens {
		switch token {
		case "local", "cache":
			if flags.Memory != MemoryNone {
				return Flags{}, fmt.Errorf("%w: %q conflicts with %q", ErrInvalidFlag, token, flags.Memory)
			}
			flags.Memory = MemoryLocal
			if token == "cache" {
				flags.Memory = MemoryCache
			}
		case "split", "cont", "continuous":
			if flags.Split != SplitNone {
				return Flags{}, fmt.Errorf("%w: %q conflicts with %q", ErrInvalidFlag, token, flags.Split)
			}
			flags.Split = SplitSplit
			if token != "split" {
				flags.Split = SplitContinuous
			}
		default:
			return Flags{}, fmt.Errorf("%w: %q", ErrInvalidFlag, token)
		}
	}
	return flags, nil
}

// Predicates translates the flags into predicates over the variant's boolean columns.
func (f Flags) Predicates(v *schema.Variant) (Filter, error) {
	var filter Filter

	switch f.Memory {
	case MemoryLocal, MemoryCache:
		if v.MemoryColumn == "" {
			return nil, fmt.Errorf("%w: %s on variant %s", ErrUnsupportedFlag, f.Memory, v.Name)
		}
		value := int64(0)
		if f.Memory == MemoryLocal {
			value = 1
		}
		filter = append(filter, Eq(v.MemoryColumn, value))
	}

	switch f.Split {
	case SplitSplit, SplitContinuous:
		if v.SplitColumn == "" {
			return nil, fmt.Errorf("%w: %s on variant %s", ErrUnsupportedFlag, f.Split, v.Name)
		}
		value := int64(0)
		if f.Split == SplitSplit {
			value = 1
		}
		filter = append(filter, Eq(v.SplitColumn, value))
	}

	return filter, nil
}
