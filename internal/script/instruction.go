package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/assure-cli/internal/otp"
)

// Instruction is a decoded, validated command. The set of implementations is
// closed: Open, Click, Type, Sleep, Expect, EnterOTP, WaitFor and Test.
type Instruction interface {
	// Source returns the command the instruction was decoded from.
	Source() Command
	instruction()
}

type base struct{ cmd Command }

func (b base) Source() Command { return b.cmd }
func (base) instruction()      {}

// Open navigates to URL and waits for the network to settle.
type Open struct {
	base
	URL string
}

// Click clicks the element matching Selector.
type Click struct {
	base
	Selector string
}

// Type replaces the value of the element matching Selector with Text.
type Type struct {
	base
	Selector string
	Text     string
}

// Sleep pauses for a fixed duration (WAIT).
type Sleep struct {
	base
	Duration time.Duration
}

// Subject is what an EXPECT reads.
type Subject string

const (
	SubjectTitle   Subject = "TITLE"
	SubjectURL     Subject = "URL"
	SubjectText    Subject = "TEXT"
	SubjectVisible Subject = "VISIBLE"
)

// Condition is how an EXPECT compares.
type Condition string

const (
	ConditionContains Condition = "CONTAINS"
	ConditionEquals   Condition = "EQUALS"
)

// Expect asserts on page state. Selector is set for TEXT and VISIBLE;
// Condition and Value are unset for VISIBLE.
type Expect struct {
	base
	Subject   Subject
	Condition Condition
	Selector  string
	Value     string
}

// EnterOTP resolves a one-time code and types it into Selector. An empty
// Selector means the configured default.
type EnterOTP struct {
	base
	From     otp.Source
	Selector string
}

// WaitKind selects the WAIT FOR target.
type WaitKind string

const (
	WaitElement WaitKind = "ELEMENT"
	WaitText    WaitKind = "TEXT"
	WaitURL     WaitKind = "URL"
	WaitNetwork WaitKind = "NETWORK"
)

// WaitFor blocks until a page condition holds.
type WaitFor struct {
	base
	Kind     WaitKind
	Selector string
	Value    string
}

// Test labels the tests that follow. It performs no action.
type Test struct {
	base
	Label string
}

// Decode validates commands and converts them to instructions. The first
// invalid command aborts decoding with a *SyntaxError.
func Decode(commands []Command) ([]Instruction, error) {
	out := make([]Instruction, 0, len(commands))
	for _, cmd := range commands {
		ins, err := DecodeCommand(cmd)
		if err != nil {
			return nil, &SyntaxError{Line: cmd.Line, Raw: cmd.Raw, Err: err}
		}
		out = append(out, ins)
	}
	return out, nil
}

// DecodeCommand converts a single command. Errors wrap ErrUnknownCommand or
// ErrInvalidArgument.
func DecodeCommand(cmd Command) (Instruction, error) {
	b := base{cmd: cmd}
	args := cmd.Args

	switch strings.ToUpper(cmd.Action) {
	case "OPEN":
		if len(args) != 1 || args[0] == "" {
			return nil, invalid("OPEN requires exactly one url")
		}
		return Open{base: b, URL: args[0]}, nil

	case "CLICK":
		if len(args) != 1 || args[0] == "" {
			return nil, invalid("CLICK requires exactly one selector; quote selectors that contain spaces")
		}
		return Click{base: b, Selector: args[0]}, nil

	case "TYPE":
		if len(args) < 2 || args[0] == "" {
			return nil, invalid("TYPE requires a selector and text")
		}
		return Type{base: b, Selector: args[0], Text: strings.Join(args[1:], " ")}, nil

	case "WAIT":
		if len(args) > 0 && strings.EqualFold(args[0], "FOR") {
			return decodeWaitFor(b, args[1:])
		}
		return decodeSleep(b, args)

	case "WAIT-FOR":
		return decodeWaitFor(b, args)

	case "EXPECT":
		return decodeExpect(b, args)

	case "OTP":
		return decodeOTP(b, args)

	case "TEST":
		return Test{base: b, Label: strings.Join(args, " ")}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Action)
	}
}

// maxSleepSeconds is the longest WAIT a time.Duration can hold.
const maxSleepSeconds = math.MaxInt64 / float64(time.Second)

func decodeSleep(b base, args []string) (Instruction, error) {
	if len(args) != 1 {
		return nil, invalid("WAIT requires a number of seconds")
	}
	seconds, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, invalid("WAIT requires a valid number, got: %s", args[0])
	}
	if seconds < 0 {
		return nil, invalid("WAIT requires a non-negative number, got: %s", args[0])
	}
	if seconds >= maxSleepSeconds {
		return nil, invalid("WAIT duration is too large, got: %s", args[0])
	}
	return Sleep{base: b, Duration: time.Duration(seconds * float64(time.Second))}, nil
}

func decodeWaitFor(b base, args []string) (Instruction, error) {
	if len(args) == 0 {
		return nil, invalid("WAIT FOR requires ELEMENT, TEXT, URL or NETWORK")
	}
	kind := WaitKind(strings.ToUpper(args[0]))
	rest := args[1:]

	switch kind {
	case WaitElement:
		if len(rest) != 1 || rest[0] == "" {
			return nil, invalid("WAIT FOR ELEMENT requires a selector")
		}
		return WaitFor{base: b, Kind: kind, Selector: rest[0]}, nil
	case WaitText:
		if len(rest) < 2 || rest[0] == "" {
			return nil, invalid("WAIT FOR TEXT requires a selector and text")
		}
		return WaitFor{base: b, Kind: kind, Selector: rest[0], Value: strings.Join(rest[1:], " ")}, nil
	case WaitURL:
		if len(rest) < 1 || rest[0] == "" {
			return nil, invalid("WAIT FOR URL requires a url fragment")
		}
		return WaitFor{base: b, Kind: kind, Value: strings.Join(rest, " ")}, nil
	case WaitNetwork:
		// "WAIT FOR NETWORK IDLE" reads naturally; IDLE is optional.
		if len(rest) > 1 || (len(rest) == 1 && !strings.EqualFold(rest[0], "IDLE")) {
			return nil, invalid("WAIT FOR NETWORK takes no arguments other than IDLE")
		}
		return WaitFor{base: b, Kind: kind}, nil
	default:
		return nil, invalid("unknown WAIT FOR condition: %s", args[0])
	}
}

func parseCondition(word string) (Condition, error) {
	switch c := Condition(strings.ToUpper(word)); c {
	case ConditionContains, ConditionEquals:
		return c, nil
	default:
		return "", invalid("unknown condition %q, use CONTAINS or EQUALS", word)
	}
}

func decodeExpect(b base, args []string) (Instruction, error) {
	if len(args) < 2 {
		return nil, invalid("EXPECT requires at least 2 arguments")
	}
	subject := Subject(strings.ToUpper(args[0]))
	rest := args[1:]

	switch subject {
	case SubjectTitle, SubjectURL:
		cond, err := parseCondition(rest[0])
		if err != nil {
			return nil, err
		}
		return Expect{base: b, Subject: subject, Condition: cond, Value: strings.Join(rest[1:], " ")}, nil
	case SubjectText:
		if len(rest) < 3 {
			return nil, invalid("EXPECT TEXT requires a selector, condition and value")
		}
		cond, err := parseCondition(rest[1])
		if err != nil {
			return nil, err
		}
		return Expect{base: b, Subject: subject, Selector: rest[0], Condition: cond, Value: strings.Join(rest[2:], " ")}, nil
	case SubjectVisible:
		if len(rest) != 1 || rest[0] == "" {
			return nil, invalid("EXPECT VISIBLE requires exactly one selector")
		}
		return Expect{base: b, Subject: subject, Selector: rest[0]}, nil
	default:
		return nil, invalid("unknown EXPECT target: %s", args[0])
	}
}

func decodeOTP(b base, args []string) (Instruction, error) {
	if len(args) < 2 {
		return nil, invalid("OTP requires: OTP FROM <source> [selector] or OTP MANUAL <code> [selector]")
	}

	switch strings.ToUpper(args[0]) {
	case "MANUAL":
		if len(args) > 3 {
			return nil, invalid("OTP MANUAL takes a code and an optional selector")
		}
		if err := otp.ValidateCode(args[1]); err != nil {
			return nil, invalid("%v", err)
		}
		return EnterOTP{base: b, From: otp.Source{Kind: otp.KindManual, Code: args[1]}, Selector: optional(args, 2)}, nil

	case "FROM":
		kind, err := otp.ParseKind(args[1])
		if err != nil {
			return nil, invalid("%v", err)
		}
		if kind == otp.KindFile {
			if len(args) < 3 || args[2] == "" {
				return nil, invalid("OTP FROM FILE requires a file path")
			}
			if len(args) > 4 {
				return nil, invalid("OTP FROM FILE takes a path and an optional selector")
			}
			return EnterOTP{base: b, From: otp.Source{Kind: kind, Path: args[2]}, Selector: optional(args, 3)}, nil
		}
		if len(args) > 3 {
			return nil, invalid("OTP FROM %s takes an optional selector", strings.ToUpper(args[1]))
		}
		return EnterOTP{base: b, From: otp.Source{Kind: kind}, Selector: optional(args, 2)}, nil

	default:
		return nil, invalid("unknown OTP action: %s, use FROM or MANUAL", args[0])
	}
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
